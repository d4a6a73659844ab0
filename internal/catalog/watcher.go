package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadHook is notified after every reload attempt.
type ReloadHook func(c *Catalog, err error)

// Watcher reloads the catalog file into a Holder when it changes on disk.
// A file that fails to load leaves the previous catalog in place.
type Watcher struct {
	path     string
	holder   *Holder
	logger   *zap.Logger
	debounce time.Duration
	onReload ReloadHook
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWatcher creates a watcher for path. It does nothing until Start is called.
func NewWatcher(path string, holder *Holder, onReload ReloadHook, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:     path,
		holder:   holder,
		logger:   logger,
		debounce: 300 * time.Millisecond,
		onReload: onReload,
		done:     make(chan struct{}),
	}
}

// Start begins watching in the background.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory so atomic save-and-rename is seen.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()

		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)

	go w.loop(ctx, fsw)

	w.logger.Info("catalog watcher started", zap.String("path", w.path))

	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	defer fsw.Close()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}

			timer = time.NewTimer(w.debounce)
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil

			w.Reload()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}

			w.logger.Error("catalog watcher error", zap.Error(err))
		}
	}
}

// Reload loads the file and swaps it in on success.
func (w *Watcher) Reload() {
	next, err := Load(w.path)
	if err != nil {
		w.logger.Error("catalog reload failed, keeping previous catalog",
			zap.String("path", w.path),
			zap.Error(err),
		)
		w.notify(nil, err)

		return
	}

	prev := w.holder.Swap(next)

	// Indices are public identifiers; a shorter catalog breaks clients holding the tail ones.
	if prev != nil && next.Len() < prev.Len() {
		w.logger.Warn("catalog shrank on reload",
			zap.Int("previous", prev.Len()),
			zap.Int("current", next.Len()),
		)
	}

	w.logger.Info("catalog reloaded", zap.Int("providers", next.Len()))
	w.notify(next, nil)
}

func (w *Watcher) notify(c *Catalog, err error) {
	if w.onReload != nil {
		w.onReload(c, err)
	}
}

// Shutdown stops the watcher and waits for the loop to exit.
func (w *Watcher) Shutdown() error {
	if w.cancel == nil {
		return nil
	}

	w.cancel()
	<-w.done

	return nil
}

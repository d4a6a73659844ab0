package catalog

import (
	"errors"
	"sync/atomic"
)

var ErrProviderNotFound = errors.New("provider not found")

// Provider is a single catalog entry. Index is its position in the catalog
// and doubles as the public provider identifier.
type Provider struct {
	Index int
	Name  string
	URL   string
	Key   string
}

// PublicProvider is the redacted view of a Provider exposed to clients.
type PublicProvider struct {
	Index int    `doc:"Stable provider identifier" example:"0"                       json:"index"`
	Name  string `doc:"Display name"               example:"Example Cloud"           json:"name"`
	URL   string `doc:"Provider base URL"          example:"https://cloud.example.com" json:"url"`
}

// Catalog is an immutable, ordered list of providers.
type Catalog struct {
	providers []Provider
}

// New builds a catalog from entries in order, assigning each its position as index.
func New(entries []Provider) *Catalog {
	providers := make([]Provider, len(entries))

	for i, p := range entries {
		p.Index = i
		providers[i] = p
	}

	return &Catalog{providers: providers}
}

// Len returns the number of providers.
func (c *Catalog) Len() int {
	return len(c.providers)
}

// Resolve returns the provider at index, keeping the secret key.
func (c *Catalog) Resolve(index int) (Provider, error) {
	if index < 0 || index >= len(c.providers) {
		return Provider{}, ErrProviderNotFound
	}

	return c.providers[index], nil
}

// Redacted returns every provider without its secret key.
func (c *Catalog) Redacted() []PublicProvider {
	out := make([]PublicProvider, len(c.providers))

	for i, p := range c.providers {
		out[i] = PublicProvider{Index: p.Index, Name: p.Name, URL: p.URL}
	}

	return out
}

// Holder shares the current catalog between readers and a reloader.
// Readers always observe one complete catalog.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder creates a holder serving c.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)

	return h
}

// Current returns the catalog in use.
func (h *Holder) Current() *Catalog {
	return h.current.Load()
}

// Swap replaces the catalog and returns the previous one.
func (h *Holder) Swap(c *Catalog) *Catalog {
	return h.current.Swap(c)
}

func (h *Holder) Len() int {
	return h.Current().Len()
}

func (h *Holder) Resolve(index int) (Provider, error) {
	return h.Current().Resolve(index)
}

func (h *Holder) Redacted() []PublicProvider {
	return h.Current().Redacted()
}

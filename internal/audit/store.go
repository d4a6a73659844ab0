package audit

import (
	"context"

	"go.uber.org/zap"
)

// Store persists attempt events.
type Store interface {
	SaveAttempt(ctx context.Context, event *AttemptEvent) error
}

// LogStore writes events to the log instead of persisting them.
type LogStore struct {
	logger *zap.Logger
}

// NewLogStore creates a log-only store.
func NewLogStore(logger *zap.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) SaveAttempt(_ context.Context, event *AttemptEvent) error {
	s.logger.Info("provisioning attempt",
		zap.String("attemptId", event.AttemptID),
		zap.Int("providerIndex", event.ProviderIndex),
		zap.String("providerName", event.ProviderName),
		zap.String("outcome", string(event.Outcome)),
		zap.Int("status", event.Status),
		zap.Time("occurredAt", event.OccurredAt),
	)

	return nil
}

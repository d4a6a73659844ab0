// Package audit records provisioning attempts as events.
//
// Events never carry the requested email address or the client address.
package audit

import "time"

// TopicAttempted is the topic provisioning attempts are published on.
const TopicAttempted = "provisioning.attempted"

// Outcome classifies how an attempt ended.
type Outcome string

const (
	OutcomeCreated         Outcome = "created"
	OutcomeUpstreamError   Outcome = "upstream_error"
	OutcomeTransportError  Outcome = "transport_error"
	OutcomeInvalidResponse Outcome = "invalid_response"
)

// AttemptEvent is emitted once for every attempt that reached the provider.
type AttemptEvent struct {
	AttemptID     string    `json:"attemptId"`
	ProviderIndex int       `json:"providerIndex"`
	ProviderName  string    `json:"providerName"`
	Outcome       Outcome   `json:"outcome"`
	Status        int       `json:"status"`
	Newsletter    bool      `json:"newsletter"`
	OCSAPI        bool      `json:"ocsapi"`
	OccurredAt    time.Time `json:"occurredAt"`
}

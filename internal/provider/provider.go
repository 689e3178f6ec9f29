package provider

import (
	"context"
	"sync"

	"app/internal/model"
)

// OutcomeStatus is the closed set of terminal confirmation results.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeCanceled  OutcomeStatus = "canceled"
)

// Outcome is what the payment provider reports for a confirmation attempt.
// Reason is set only for OutcomeFailed and is surfaced to the user verbatim.
type Outcome struct {
	Status OutcomeStatus
	Reason string
}

// Confirmer resolves an authorization secret into a terminal outcome. The
// provider step may involve the user completing a hosted UI; Confirm is called
// once the return marker comes back and must report a stale or expired secret
// as a failed outcome, never hang on it.
type Confirmer interface {
	Confirm(ctx context.Context, clientSecret string, kind model.ConfirmationKind) (Outcome, error)
}

// MockConfirmer is a test double that returns a configured outcome and records
// every confirmation attempt.
type MockConfirmer struct {
	mu sync.Mutex

	Outcome    Outcome
	ConfirmErr error

	// Secrets collects the client secrets passed to Confirm, in order.
	Secrets []string
	// Kinds collects the matching intent kinds.
	Kinds []model.ConfirmationKind
}

// NewMockConfirmer returns a MockConfirmer that succeeds by default.
func NewMockConfirmer() *MockConfirmer {
	return &MockConfirmer{Outcome: Outcome{Status: OutcomeSucceeded}}
}

func (m *MockConfirmer) Confirm(_ context.Context, clientSecret string, kind model.ConfirmationKind) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Secrets = append(m.Secrets, clientSecret)
	m.Kinds = append(m.Kinds, kind)
	if m.ConfirmErr != nil {
		return Outcome{}, m.ConfirmErr
	}
	return m.Outcome, nil
}

// Count returns how many confirmations were attempted.
func (m *MockConfirmer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Secrets)
}

package service

import (
	"sync"

	"app/internal/model"
)

// BillingView is an immutable snapshot of the cached subscription and payment
// method state. Version increments on every replacement so callers can tell
// whether anything changed underneath them.
type BillingView struct {
	Version        uint64                `json:"version"`
	Subscription   *model.Subscription   `json:"subscription"`
	PaymentMethods []model.PaymentMethod `json:"payment_methods"`
}

// DefaultMethod returns the default payment method, falling back to the first
// stored one. The second return is false when none exist.
func (v BillingView) DefaultMethod() (model.PaymentMethod, bool) {
	for _, pm := range v.PaymentMethods {
		if pm.IsDefault {
			return pm, true
		}
	}
	if len(v.PaymentMethods) > 0 {
		return v.PaymentMethods[0], true
	}
	return model.PaymentMethod{}, false
}

// ViewStore holds the current BillingView. Mutation is replace-only: a new
// snapshot swaps in atomically, never an in-place field write, so a refresh
// can never be observed half-applied.
type ViewStore struct {
	mu   sync.RWMutex
	view BillingView
}

// NewViewStore returns an empty store at version zero.
func NewViewStore() *ViewStore {
	return &ViewStore{}
}

// Current returns a copy of the snapshot.
func (s *ViewStore) Current() BillingView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.PaymentMethods = append([]model.PaymentMethod(nil), s.view.PaymentMethods...)
	if s.view.Subscription != nil {
		sub := *s.view.Subscription
		v.Subscription = &sub
	}
	return v
}

// Replace installs a fresh snapshot from the system of record.
func (s *ViewStore) Replace(sub *model.Subscription, methods []model.PaymentMethod) BillingView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = BillingView{
		Version:        s.view.Version + 1,
		Subscription:   sub,
		PaymentMethods: append([]model.PaymentMethod(nil), methods...),
	}
	return s.view
}

// RemoveMethod drops exactly the given method id from the snapshot, leaving
// every other entry untouched. Applied only after the server confirmed the
// deletion.
func (s *ViewStore) RemoveMethod(id string) BillingView {
	s.mu.Lock()
	defer s.mu.Unlock()
	methods := make([]model.PaymentMethod, 0, len(s.view.PaymentMethods))
	for _, pm := range s.view.PaymentMethods {
		if pm.ID != id {
			methods = append(methods, pm)
		}
	}
	s.view = BillingView{
		Version:        s.view.Version + 1,
		Subscription:   s.view.Subscription,
		PaymentMethods: methods,
	}
	return s.view
}

// SetDefaultMethod marks the given id as the sole default. Applied only after
// the server confirmed the change.
func (s *ViewStore) SetDefaultMethod(id string) BillingView {
	s.mu.Lock()
	defer s.mu.Unlock()
	methods := make([]model.PaymentMethod, len(s.view.PaymentMethods))
	for i, pm := range s.view.PaymentMethods {
		pm.IsDefault = pm.ID == id
		methods[i] = pm
	}
	s.view = BillingView{
		Version:        s.view.Version + 1,
		Subscription:   s.view.Subscription,
		PaymentMethods: methods,
	}
	return s.view
}

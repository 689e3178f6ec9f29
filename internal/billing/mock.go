package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"app/internal/model"
)

// Mock is a test double for the billing system of record. It keeps real
// subscription/payment-method state so tests can assert on what the server
// would report back, records every mutating call, and lets tests inject
// errors or a step-up secret per operation.
type Mock struct {
	mu sync.Mutex

	Subscription   *model.Subscription
	PaymentMethods []model.PaymentMethod
	Plans          []model.Plan
	Invoices       []model.Invoice

	// Calls records mutating operations in order, e.g. "subscribe:pro:pm_1".
	Calls []string

	// SubscribeSecret, when set, makes Subscribe demand step-up confirmation
	// instead of activating synchronously.
	SubscribeSecret string
	// SetupSecret is returned by CreateSetupIntent.
	SetupSecret string
	// SubscribeIncomplete, when set, makes Subscribe report an unsettled
	// subscription with no confirmation secret.
	SubscribeIncomplete bool

	GetSubscriptionErr error
	ListPlansErr       error
	ListMethodsErr     error
	ListInvoicesErr    error
	SetupIntentErr     error
	SubscribeErr       error
	ChangePlanErr      error
	CancelErr          error
	ResumeErr          error
	DeleteMethodErr    error
	SetDefaultErr      error

	// Blocking, when non-nil, is received from at the top of every mutating
	// call so tests can hold one in flight.
	Blocking chan struct{}

	nextSubSeq int
}

// NewMock returns a Mock with an empty but usable record.
func NewMock() *Mock {
	return &Mock{
		SetupSecret: "seti_mock_secret",
	}
}

func (m *Mock) record(call string) {
	m.Calls = append(m.Calls, call)
}

func (m *Mock) block() {
	if m.Blocking != nil {
		<-m.Blocking
	}
}

// CallCount returns how many recorded calls start with the given prefix.
func (m *Mock) CallCount(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (m *Mock) GetSubscription(_ context.Context) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetSubscriptionErr != nil {
		return nil, m.GetSubscriptionErr
	}
	if m.Subscription == nil {
		return &model.Subscription{PlanID: "free", Status: model.StatusActive}, nil
	}
	sub := *m.Subscription
	return &sub, nil
}

func (m *Mock) ListPlans(_ context.Context) ([]model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListPlansErr != nil {
		return nil, m.ListPlansErr
	}
	return append([]model.Plan(nil), m.Plans...), nil
}

func (m *Mock) ListPaymentMethods(_ context.Context) ([]model.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListMethodsErr != nil {
		return nil, m.ListMethodsErr
	}
	return append([]model.PaymentMethod(nil), m.PaymentMethods...), nil
}

func (m *Mock) ListInvoices(_ context.Context, limit int) ([]model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListInvoicesErr != nil {
		return nil, m.ListInvoicesErr
	}
	if limit > len(m.Invoices) {
		limit = len(m.Invoices)
	}
	return append([]model.Invoice(nil), m.Invoices[:limit]...), nil
}

func (m *Mock) CreateSetupIntent(_ context.Context) (*SetupIntentResult, error) {
	m.block()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetupIntentErr != nil {
		return nil, m.SetupIntentErr
	}
	m.record("create_setup_intent")
	return &SetupIntentResult{ClientSecret: m.SetupSecret, CustomerID: "cus_mock_1"}, nil
}

func (m *Mock) Subscribe(_ context.Context, planID, paymentMethodID string) (*SubscribeResult, error) {
	m.block()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	m.record("subscribe:" + planID + ":" + paymentMethodID)

	m.nextSubSeq++
	id := fmt.Sprintf("sub_mock_%d", m.nextSubSeq)
	if m.SubscribeIncomplete {
		return &SubscribeResult{SubscriptionID: id, Status: model.StatusPastDue}, nil
	}
	if m.SubscribeSecret != "" {
		return &SubscribeResult{SubscriptionID: id, Status: model.StatusPastDue, ClientSecret: m.SubscribeSecret}, nil
	}

	end := time.Now().Add(30 * 24 * time.Hour)
	m.Subscription = &model.Subscription{PlanID: planID, Status: model.StatusActive, PeriodEnd: &end}
	return &SubscribeResult{SubscriptionID: id, Status: model.StatusActive}, nil
}

// ActivatePending flips the record to active on planID, simulating the
// provider-side confirmation having settled into the system of record.
func (m *Mock) ActivatePending(planID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := time.Now().Add(30 * 24 * time.Hour)
	m.Subscription = &model.Subscription{PlanID: planID, Status: model.StatusActive, PeriodEnd: &end}
}

// ConfirmSetupMethod appends a confirmed payment method, simulating the
// outcome of a successful setup confirmation.
func (m *Mock) ConfirmSetupMethod(pm model.PaymentMethod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.PaymentMethods) == 0 {
		pm.IsDefault = true
	}
	m.PaymentMethods = append(m.PaymentMethods, pm)
}

func (m *Mock) ChangePlan(_ context.Context, planID string) error {
	m.block()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ChangePlanErr != nil {
		return m.ChangePlanErr
	}
	m.record("change_plan:" + planID)
	if m.Subscription == nil {
		return fmt.Errorf("change_plan: %w", ErrConflict)
	}
	sub := *m.Subscription
	sub.PlanID = planID
	m.Subscription = &sub
	return nil
}

func (m *Mock) Cancel(_ context.Context, immediately bool) (*CancelResult, error) {
	m.block()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CancelErr != nil {
		return nil, m.CancelErr
	}
	m.record(fmt.Sprintf("cancel:%t", immediately))
	if m.Subscription == nil {
		return nil, fmt.Errorf("cancel: %w", ErrConflict)
	}
	sub := *m.Subscription
	if immediately {
		sub.Status = model.StatusCanceled
		sub.CancelAtPeriodEnd = false
	} else {
		sub.CancelAtPeriodEnd = true
	}
	m.Subscription = &sub
	return &CancelResult{Success: true, CanceledImmediately: immediately}, nil
}

func (m *Mock) Resume(_ context.Context) error {
	m.block()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ResumeErr != nil {
		return m.ResumeErr
	}
	m.record("resume")
	if m.Subscription == nil || !m.Subscription.CancelAtPeriodEnd {
		return fmt.Errorf("resume: %w", ErrConflict)
	}
	sub := *m.Subscription
	sub.CancelAtPeriodEnd = false
	m.Subscription = &sub
	return nil
}

func (m *Mock) DeletePaymentMethod(_ context.Context, id string) error {
	m.block()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteMethodErr != nil {
		return m.DeleteMethodErr
	}
	m.record("delete_payment_method:" + id)
	for i, pm := range m.PaymentMethods {
		if pm.ID == id {
			if pm.IsDefault && len(m.PaymentMethods) > 1 {
				return fmt.Errorf("delete_payment_method: %w", ErrConflict)
			}
			m.PaymentMethods = append(m.PaymentMethods[:i:i], m.PaymentMethods[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete_payment_method: unknown method %s", id)
}

func (m *Mock) SetDefaultPaymentMethod(_ context.Context, id string) error {
	m.block()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetDefaultErr != nil {
		return m.SetDefaultErr
	}
	m.record("set_default_payment_method:" + id)
	found := false
	methods := make([]model.PaymentMethod, len(m.PaymentMethods))
	for i, pm := range m.PaymentMethods {
		pm.IsDefault = pm.ID == id
		if pm.IsDefault {
			found = true
		}
		methods[i] = pm
	}
	if !found {
		return fmt.Errorf("set_default_payment_method: unknown method %s", id)
	}
	m.PaymentMethods = methods
	return nil
}

package model

import "time"

// Unlimited marks a quota with no cap (-1 chosen so zero stays a valid limit).
const Unlimited int64 = -1

// SubscriptionStatus is the closed set of subscription states reported by the
// billing system of record.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Settled reports whether the subscription is usable without any further
// payment confirmation.
func (s SubscriptionStatus) Settled() bool {
	return s == StatusActive || s == StatusTrialing
}

// UsageLimits holds the per-feature quotas attached to a plan.
type UsageLimits struct {
	PostsAnalyzed int64 `json:"posts_analyzed"`
	Workspaces    int64 `json:"workspaces"`
	AIRewrites    int64 `json:"ai_rewrites"`
}

// Plan is an entry in the billing catalog.
type Plan struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	PriceMonthly int64       `json:"price_monthly"` // cents
	Features     []string    `json:"features,omitempty"`
	Popular      bool        `json:"popular,omitempty"`
	Limits       UsageLimits `json:"limits"`
}

// Free reports whether the plan carries no charge.
func (p Plan) Free() bool {
	return p.PriceMonthly == 0
}

// Subscription is the cached view of the user's billing relationship. The
// billing API owns the record; this struct is replaced wholesale on refresh,
// never mutated field by field.
type Subscription struct {
	PlanID string             `json:"plan_id"`
	Status SubscriptionStatus `json:"status"`
	// CancelAtPeriodEnd is distinct from Status == canceled: the subscription
	// stays active until PeriodEnd but will not renew. The transition to
	// canceled at PeriodEnd happens server-side.
	CancelAtPeriodEnd bool        `json:"cancel_at_period_end"`
	PeriodEnd         *time.Time  `json:"period_end,omitempty"`
	Limits            UsageLimits `json:"limits"`
}

// PaymentMethod is a stored, provider-confirmed means of payment.
type PaymentMethod struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int    `json:"exp_month"`
	ExpYear   int    `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
}

// InvoiceStatus is the closed set of invoice states this system cares about.
type InvoiceStatus string

const (
	InvoicePaid  InvoiceStatus = "paid"
	InvoiceOpen  InvoiceStatus = "open"
	InvoiceOther InvoiceStatus = "other"
)

// NormalizeInvoiceStatus collapses the billing API's free-form invoice status
// into the closed set.
func NormalizeInvoiceStatus(s string) InvoiceStatus {
	switch InvoiceStatus(s) {
	case InvoicePaid:
		return InvoicePaid
	case InvoiceOpen:
		return InvoiceOpen
	default:
		return InvoiceOther
	}
}

// Invoice is an immutable historical record. DocumentKey points at the stored
// invoice document; DocumentURL is filled in with a presigned link when the
// invoice is served.
type Invoice struct {
	ID          string        `json:"id"`
	Number      string        `json:"number"`
	Amount      int64         `json:"amount"` // cents
	Currency    string        `json:"currency"`
	Status      InvoiceStatus `json:"status"`
	Created     time.Time     `json:"created"`
	DocumentKey string        `json:"-"`
	DocumentURL string        `json:"pdf_url,omitempty"`
}

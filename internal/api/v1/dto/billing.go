package dto

import (
	"app/internal/model"
	"app/internal/service"
)

// UpgradeRequest asks for a subscription on the given plan.
type UpgradeRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// ChangePlanRequest switches an existing paid subscription.
type ChangePlanRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// CancelRequest ends a subscription. Confirmed is the irreversible-intent
// gate; the request is rejected before any billing call without it.
type CancelRequest struct {
	Immediately bool `json:"immediately"`
	Confirmed   bool `json:"confirmed"`
}

// ConfirmationCompleteRequest is posted on return from the provider's hosted
// confirmation step. Outcome is only a hint: anything but "canceled" is
// verified against the provider before state changes.
type ConfirmationCompleteRequest struct {
	TicketID string `json:"ticket_id" validate:"required"`
	Outcome  string `json:"outcome" validate:"required,oneof=succeeded failed canceled"`
}

// OverviewResponse is the cached billing view.
type OverviewResponse struct {
	Version        uint64                    `json:"version"`
	Subscription   *model.Subscription       `json:"subscription"`
	PaymentMethods []model.PaymentMethod     `json:"payment_methods"`
	Pending        *ConfirmationResponseBody `json:"pending_confirmation,omitempty"`
}

// ConfirmationResponseBody hands the presentation layer what it needs to
// drive the provider's confirmation UI.
type ConfirmationResponseBody struct {
	TicketID     string `json:"ticket_id"`
	ClientSecret string `json:"client_secret"`
	Kind         string `json:"kind"`
	PlanID       string `json:"plan_id,omitempty"`
}

// NewConfirmationResponse converts a pending confirmation for the wire.
func NewConfirmationResponse(p *model.PendingConfirmation) *ConfirmationResponseBody {
	if p == nil {
		return nil
	}
	return &ConfirmationResponseBody{
		TicketID:     p.TicketID,
		ClientSecret: p.ClientSecret,
		Kind:         string(p.Kind),
		PlanID:       p.PlanID,
	}
}

// NewOverviewResponse converts a billing view for the wire.
func NewOverviewResponse(v service.BillingView, pending *model.PendingConfirmation) OverviewResponse {
	return OverviewResponse{
		Version:        v.Version,
		Subscription:   v.Subscription,
		PaymentMethods: v.PaymentMethods,
		Pending:        NewConfirmationResponse(pending),
	}
}

// PlansResponse wraps the plan catalog.
type PlansResponse struct {
	Plans []model.Plan `json:"plans"`
}

// InvoicesResponse wraps invoice history.
type InvoicesResponse struct {
	Invoices []model.Invoice `json:"invoices"`
}

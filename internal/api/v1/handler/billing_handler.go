package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/billing"
	"app/internal/provider"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingHandler forwards billing intents to the orchestrator. It owns no
// business rules: every precondition and busy check lives below it.
type BillingHandler struct {
	orch     *service.Orchestrator
	invoices *service.InvoiceService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(orch *service.Orchestrator, invoices *service.InvoiceService, v *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{orch: orch, invoices: invoices, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 billing routes.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/billing/overview", authMw(http.HandlerFunc(h.getOverview)))
	mux.Handle("/billing/plans", authMw(http.HandlerFunc(h.getPlans)))
	mux.Handle("/billing/invoices", authMw(http.HandlerFunc(h.getInvoices)))
	mux.Handle("/billing/upgrade", authMw(http.HandlerFunc(h.postUpgrade)))
	mux.Handle("/billing/change-plan", authMw(http.HandlerFunc(h.postChangePlan)))
	mux.Handle("/billing/cancel", authMw(http.HandlerFunc(h.postCancel)))
	mux.Handle("/billing/resume", authMw(http.HandlerFunc(h.postResume)))
	mux.Handle("/billing/payment-methods", authMw(http.HandlerFunc(h.postPaymentMethod)))
	mux.Handle("/billing/payment-methods/", authMw(http.HandlerFunc(h.handlePaymentMethod)))
	mux.Handle("/billing/confirmation/confirm", authMw(http.HandlerFunc(h.postConfirm)))
	mux.Handle("/billing/confirmation/abandon", authMw(http.HandlerFunc(h.postAbandon)))
	mux.Handle("/billing/confirmation/complete", authMw(http.HandlerFunc(h.postComplete)))
}

func (h *BillingHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeActionError maps orchestrator errors onto one user-visible message per
// action. Raw transport errors never reach the client.
func (h *BillingHandler) writeActionError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	var confirmErr *service.ConfirmationFailedError
	var apiErr *billing.APIError
	switch {
	case errors.Is(err, service.ErrActionInFlight), errors.Is(err, service.ErrConfirmationInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, billing.ErrConflict):
		http.Error(w, "billing state changed underneath this request, please retry", http.StatusConflict)
	case errors.Is(err, repository.ErrTicketNotFound):
		http.Error(w, "confirmation ticket not found or already completed", http.StatusNotFound)
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &confirmErr):
		http.Error(w, confirmErr.Error(), http.StatusPaymentRequired)
	case errors.Is(err, service.ErrConfirmationSecretMissing):
		http.Error(w, "billing service returned an unusable subscribe response, please retry", http.StatusBadGateway)
	case errors.As(err, &apiErr) && apiErr.Transient():
		http.Error(w, "billing service is temporarily unavailable, please retry", http.StatusBadGateway)
	default:
		h.logger.Error().Err(err).Msg("billing action failed")
		http.Error(w, "billing action failed", http.StatusInternalServerError)
	}
}

// getOverview godoc
// @Summary Current subscription and payment method snapshot
// @Tags billing
// @Produce json
// @Success 200 {object} dto.OverviewResponse
// @Failure 401 {string} string "unauthorized"
// @Router /billing/overview [get]
func (h *BillingHandler) getOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if err := h.orch.Refresh(r.Context()); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewOverviewResponse(h.orch.View(), h.orch.Pending()))
}

// getPlans godoc
// @Summary List the plan catalog
// @Tags billing
// @Produce json
// @Success 200 {object} dto.PlansResponse
// @Router /billing/plans [get]
func (h *BillingHandler) getPlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	plans, err := h.orch.Plans(r.Context())
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.PlansResponse{Plans: plans})
}

// getInvoices godoc
// @Summary Invoice history with download links
// @Tags billing
// @Produce json
// @Param limit query int false "maximum invoices returned" default(10)
// @Success 200 {object} dto.InvoicesResponse
// @Router /billing/invoices [get]
func (h *BillingHandler) getInvoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	invoices, err := h.invoices.List(r.Context(), limit)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.InvoicesResponse{Invoices: invoices})
}

// postUpgrade godoc
// @Summary Subscribe to a plan
// @Description Subscribes with the stored default payment method. Returns 200
// @Description with the refreshed snapshot when activation is synchronous, or
// @Description 202 with a pending confirmation when the provider requires a
// @Description step-up, or when a payment method must be set up first.
// @Tags billing
// @Accept json
// @Produce json
// @Param upgrade body dto.UpgradeRequest true "target plan"
// @Success 200 {object} dto.OverviewResponse
// @Success 202 {object} dto.ConfirmationResponseBody
// @Failure 400 {string} string "invalid request"
// @Failure 409 {string} string "action already in progress"
// @Router /billing/upgrade [post]
func (h *BillingHandler) postUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req dto.UpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	pending, err := h.orch.RequestUpgrade(r.Context(), req.PlanID)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	if pending != nil {
		h.writeJSON(w, http.StatusAccepted, dto.NewConfirmationResponse(pending))
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewOverviewResponse(h.orch.View(), nil))
}

// postChangePlan godoc
// @Summary Change the plan of an active paid subscription
// @Tags billing
// @Accept json
// @Produce json
// @Param change body dto.ChangePlanRequest true "target plan"
// @Success 200 {object} dto.OverviewResponse
// @Failure 409 {string} string "same change already in progress"
// @Router /billing/change-plan [post]
func (h *BillingHandler) postChangePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req dto.ChangePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.orch.ChangePlan(r.Context(), req.PlanID); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewOverviewResponse(h.orch.View(), nil))
}

// postCancel godoc
// @Summary Cancel the subscription
// @Description Requires confirmed=true; without it the billing API is never
// @Description contacted. immediately=false keeps access until period end.
// @Tags billing
// @Accept json
// @Produce json
// @Param cancel body dto.CancelRequest true "cancel options"
// @Success 200 {object} dto.OverviewResponse
// @Failure 400 {string} string "cancellation not confirmed"
// @Router /billing/cancel [post]
func (h *BillingHandler) postCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req dto.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.orch.CancelSubscription(r.Context(), req.Immediately, req.Confirmed); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewOverviewResponse(h.orch.View(), nil))
}

// postResume godoc
// @Summary Resume a subscription pending cancellation
// @Tags billing
// @Produce json
// @Success 200 {object} dto.OverviewResponse
// @Failure 400 {string} string "not pending cancellation"
// @Router /billing/resume [post]
func (h *BillingHandler) postResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.orch.ResumeSubscription(r.Context()); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewOverviewResponse(h.orch.View(), nil))
}

// postPaymentMethod godoc
// @Summary Add a payment method
// @Description Always opens a provider confirmation; a payment method is only
// @Description trustworthy after the step-up check.
// @Tags billing
// @Produce json
// @Success 202 {object} dto.ConfirmationResponseBody
// @Router /billing/payment-methods [post]
func (h *BillingHandler) postPaymentMethod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	pending, err := h.orch.AddPaymentMethod(r.Context())
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, dto.NewConfirmationResponse(pending))
}

// handlePaymentMethod routes /billing/payment-methods/{id} and
// /billing/payment-methods/{id}/default.
func (h *BillingHandler) handlePaymentMethod(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/billing/payment-methods/")
	switch {
	case r.Method == http.MethodDelete && rest != "" && !strings.Contains(rest, "/"):
		h.deletePaymentMethod(w, r, rest)
	case r.Method == http.MethodPost && strings.HasSuffix(rest, "/default"):
		h.setDefaultPaymentMethod(w, r, strings.TrimSuffix(rest, "/default"))
	default:
		http.NotFound(w, r)
	}
}

// deletePaymentMethod godoc
// @Summary Delete a stored payment method
// @Tags billing
// @Produce json
// @Param id path string true "payment method id"
// @Success 200 {object} dto.OverviewResponse
// @Failure 409 {string} string "method is the default; pick another default first"
// @Router /billing/payment-methods/{id} [delete]
func (h *BillingHandler) deletePaymentMethod(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.orch.DeletePaymentMethod(r.Context(), id); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewOverviewResponse(h.orch.View(), nil))
}

// setDefaultPaymentMethod godoc
// @Summary Make a stored payment method the default
// @Tags billing
// @Produce json
// @Param id path string true "payment method id"
// @Success 200 {object} dto.OverviewResponse
// @Router /billing/payment-methods/{id}/default [post]
func (h *BillingHandler) setDefaultPaymentMethod(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.orch.SetDefaultPaymentMethod(r.Context(), id); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewOverviewResponse(h.orch.View(), nil))
}

// postConfirm godoc
// @Summary Resolve the open confirmation with the provider
// @Tags billing
// @Produce json
// @Success 200 {object} dto.OverviewResponse
// @Failure 402 {string} string "confirmation failed"
// @Router /billing/confirmation/confirm [post]
func (h *BillingHandler) postConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	err := h.orch.ConfirmPending(r.Context())
	if errors.Is(err, service.ErrConfirmationAbandoned) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
		return
	}
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewOverviewResponse(h.orch.View(), h.orch.Pending()))
}

// postAbandon godoc
// @Summary Abandon the open confirmation
// @Description Discards the pending confirmation without touching the billing
// @Description record. Not treated as an error.
// @Tags billing
// @Produce json
// @Success 200 {object} map[string]string
// @Router /billing/confirmation/abandon [post]
func (h *BillingHandler) postAbandon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.orch.AbandonPending(r.Context()); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}

// postComplete godoc
// @Summary Complete a confirmation after a provider redirect
// @Description Re-derives the pending intent from its persisted ticket, so the
// @Description flow completes even if the process restarted mid-confirmation.
// @Tags billing
// @Accept json
// @Produce json
// @Param completion body dto.ConfirmationCompleteRequest true "return marker"
// @Success 200 {object} dto.OverviewResponse
// @Failure 404 {string} string "unknown ticket"
// @Router /billing/confirmation/complete [post]
func (h *BillingHandler) postComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req dto.ConfirmationCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	err := h.orch.CompleteFromTicket(r.Context(), req.TicketID, provider.OutcomeStatus(req.Outcome))
	if errors.Is(err, service.ErrConfirmationAbandoned) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
		return
	}
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewOverviewResponse(h.orch.View(), h.orch.Pending()))
}

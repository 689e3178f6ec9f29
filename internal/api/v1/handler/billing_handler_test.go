package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/billing"
	"app/internal/model"
	"app/internal/provider"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

func passthrough(next http.Handler) http.Handler { return next }

func newTestServer(mock *billing.Mock, confirmer provider.Confirmer) *httptest.Server {
	log := zerolog.Nop()
	flow := service.NewConfirmationFlow(confirmer, log)
	orch := service.NewOrchestrator(mock, flow, nil, nil, "", log)
	orch.SetSettleDelay(time.Millisecond)
	invoices := service.NewInvoiceService(mock, nil, "", time.Minute, log)

	h := NewBillingHandler(orch, invoices, validator.New(validator.WithRequiredStructEnabled()), log)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, passthrough)
	return httptest.NewServer(mux)
}

func seededMock() *billing.Mock {
	mock := billing.NewMock()
	mock.Plans = []model.Plan{
		{ID: "free", Name: "Free"},
		{ID: "pro", Name: "Pro", PriceMonthly: 1500},
	}
	mock.PaymentMethods = []model.PaymentMethod{{ID: "pm_1", Brand: "visa", Last4: "4242", IsDefault: true}}
	return mock
}

func TestUpgradeFastPathReturnsOverview(t *testing.T) {
	srv := newTestServer(seededMock(), provider.NewMockConfirmer())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/billing/upgrade", "application/json", strings.NewReader(`{"plan_id":"pro"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var body dto.OverviewResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Subscription == nil || body.Subscription.PlanID != "pro" {
		t.Fatalf("unexpected overview %+v", body)
	}
	if body.Pending != nil {
		t.Fatal("synchronous activation must not return a pending confirmation")
	}
}

func TestUpgradeStepUpReturnsAccepted(t *testing.T) {
	mock := seededMock()
	mock.SubscribeSecret = "pi_123_secret_abc"
	srv := newTestServer(mock, provider.NewMockConfirmer())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/billing/upgrade", "application/json", strings.NewReader(`{"plan_id":"pro"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.StatusCode)
	}
	var body dto.ConfirmationResponseBody
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Kind != string(model.KindSubscription) || body.TicketID == "" {
		t.Fatalf("unexpected confirmation body %+v", body)
	}
}

func TestUpgradeMissingPlanIsBadRequest(t *testing.T) {
	srv := newTestServer(seededMock(), provider.NewMockConfirmer())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/billing/upgrade", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
}

func TestUnconfirmedCancelIsBadRequest(t *testing.T) {
	mock := seededMock()
	end := time.Now().Add(24 * time.Hour)
	mock.Subscription = &model.Subscription{PlanID: "pro", Status: model.StatusActive, PeriodEnd: &end}
	srv := newTestServer(mock, provider.NewMockConfirmer())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/billing/cancel", "application/json", strings.NewReader(`{"immediately":true}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
	if got := mock.CallCount("cancel"); got != 0 {
		t.Fatalf("unconfirmed cancel must not reach the billing API, got %d calls", got)
	}
}

func TestOpenConfirmationBlocksNewOne(t *testing.T) {
	mock := seededMock()
	mock.SubscribeSecret = "pi_123_secret_abc"
	srv := newTestServer(mock, provider.NewMockConfirmer())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/billing/upgrade", "application/json", strings.NewReader(`{"plan_id":"pro"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.StatusCode)
	}

	res, err = http.Post(srv.URL+"/billing/payment-methods", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while a confirmation is open, got %d", res.StatusCode)
	}
}

func TestCompleteWithoutTicketStore(t *testing.T) {
	mock := seededMock()
	srv := newTestServer(mock, provider.NewMockConfirmer())
	defer srv.Close()

	// Without a ticket store the orchestrator cannot resume anything; the
	// handler surfaces that as a server error rather than a 404.
	res, err := http.Post(srv.URL+"/billing/confirmation/complete", "application/json",
		strings.NewReader(`{"ticket_id":"t-1","outcome":"succeeded"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 without a ticket store, got %d", res.StatusCode)
	}
}

func TestInvoicesRejectsBadLimit(t *testing.T) {
	srv := newTestServer(seededMock(), provider.NewMockConfirmer())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/billing/invoices?limit=zero")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
}

func TestDeletePaymentMethodConflict(t *testing.T) {
	mock := seededMock()
	mock.PaymentMethods = append(mock.PaymentMethods, model.PaymentMethod{ID: "pm_2"})
	srv := newTestServer(mock, provider.NewMockConfirmer())
	defer srv.Close()

	// Prime the cached view.
	res, err := http.Get(srv.URL + "/billing/overview")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/billing/payment-methods/pm_1", nil)
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 deleting the default method, got %d", res.StatusCode)
	}
}

func TestUpgradeWithUnusableSubscribeResponseIsBadGateway(t *testing.T) {
	mock := seededMock()
	mock.SubscribeIncomplete = true
	srv := newTestServer(mock, provider.NewMockConfirmer())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/billing/upgrade", "application/json", strings.NewReader(`{"plan_id":"pro"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 for an unusable subscribe response, got %d", res.StatusCode)
	}
}

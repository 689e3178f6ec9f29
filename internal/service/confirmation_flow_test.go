package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"app/internal/model"
	"app/internal/provider"

	"github.com/rs/zerolog"
)

func TestFlowRejectsSetupSecretOnSubscriptionIntent(t *testing.T) {
	confirmer := provider.NewMockConfirmer()
	flow := NewConfirmationFlow(confirmer, zerolog.Nop())

	_, err := flow.Run(context.Background(), &model.PendingConfirmation{
		ClientSecret: "seti_abc_secret_def",
		Kind:         model.KindSubscription,
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if confirmer.Count() != 0 {
		t.Fatal("mismatched secret must not reach the provider")
	}
}

func TestFlowRejectsPaymentSecretOnSetupIntent(t *testing.T) {
	confirmer := provider.NewMockConfirmer()
	flow := NewConfirmationFlow(confirmer, zerolog.Nop())

	_, err := flow.Run(context.Background(), &model.PendingConfirmation{
		ClientSecret: "pi_abc_secret_def",
		Kind:         model.KindPaymentMethod,
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if confirmer.Count() != 0 {
		t.Fatal("mismatched secret must not reach the provider")
	}
}

func TestFlowRejectsUnknownKind(t *testing.T) {
	flow := NewConfirmationFlow(provider.NewMockConfirmer(), zerolog.Nop())
	_, err := flow.Run(context.Background(), &model.PendingConfirmation{
		ClientSecret: "pi_abc_secret_def",
		Kind:         "mystery",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFlowPassesOutcomeThrough(t *testing.T) {
	confirmer := provider.NewMockConfirmer()
	confirmer.Outcome = provider.Outcome{Status: provider.OutcomeFailed, Reason: "card_declined"}
	flow := NewConfirmationFlow(confirmer, zerolog.Nop())

	out, err := flow.Run(context.Background(), &model.PendingConfirmation{
		ClientSecret: "pi_abc_secret_def",
		Kind:         model.KindSubscription,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out.Status != provider.OutcomeFailed || out.Reason != "card_declined" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if confirmer.Count() != 1 {
		t.Fatalf("expected one confirmation, got %d", confirmer.Count())
	}
}

func TestFlowSurfacesProviderError(t *testing.T) {
	confirmer := provider.NewMockConfirmer()
	confirmer.ConfirmErr = fmt.Errorf("provider unreachable")
	flow := NewConfirmationFlow(confirmer, zerolog.Nop())

	_, err := flow.Run(context.Background(), &model.PendingConfirmation{
		ClientSecret: "seti_abc_secret_def",
		Kind:         model.KindPaymentMethod,
	})
	if err == nil {
		t.Fatal("expected provider error to surface")
	}
}

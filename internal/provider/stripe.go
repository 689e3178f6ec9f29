package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/setupintent"
)

// Secret prefixes identify which intent type minted a client secret.
const (
	setupSecretPrefix   = "seti_"
	paymentSecretPrefix = "pi_"
)

// StripeConfirmer resolves confirmation outcomes against Stripe. The hosted
// confirmation UI (or redirect round-trip) runs on the provider side; this
// client inspects the intent bound to the secret once control returns.
type StripeConfirmer struct {
	logger zerolog.Logger
}

// NewStripeConfirmer initializes the Stripe key and returns a confirmer with a
// scoped logger.
func NewStripeConfirmer(secretKey string, logger zerolog.Logger) *StripeConfirmer {
	stripe.Key = secretKey
	return &StripeConfirmer{logger: logger.With().Str("client", "StripeConfirmer").Logger()}
}

// intentIDFromSecret extracts the intent id from a client secret of the form
// "<id>_secret_<nonce>".
func intentIDFromSecret(clientSecret string) (string, error) {
	idx := strings.Index(clientSecret, "_secret_")
	if idx <= 0 {
		return "", fmt.Errorf("malformed client secret")
	}
	return clientSecret[:idx], nil
}

// Confirm inspects the intent behind clientSecret and maps its state to a
// terminal outcome. An expired or unknown secret yields a failed outcome
// rather than an error so the flow resolves instead of hanging.
func (c *StripeConfirmer) Confirm(ctx context.Context, clientSecret string, kind model.ConfirmationKind) (Outcome, error) {
	switch kind {
	case model.KindPaymentMethod:
		if !strings.HasPrefix(clientSecret, setupSecretPrefix) {
			return Outcome{}, fmt.Errorf("secret is not scoped to payment method setup")
		}
		return c.confirmSetup(ctx, clientSecret)
	case model.KindSubscription:
		if !strings.HasPrefix(clientSecret, paymentSecretPrefix) {
			return Outcome{}, fmt.Errorf("secret is not scoped to a subscription payment")
		}
		return c.confirmPayment(ctx, clientSecret)
	default:
		return Outcome{}, fmt.Errorf("unknown confirmation kind %q", kind)
	}
}

func (c *StripeConfirmer) confirmSetup(ctx context.Context, clientSecret string) (Outcome, error) {
	id, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return Outcome{}, err
	}
	params := &stripe.SetupIntentParams{ClientSecret: stripe.String(clientSecret)}
	params.Context = ctx
	si, err := setupintent.Get(id, params)
	if err != nil {
		return c.stripeErrOutcome("setup intent", id, err)
	}

	switch si.Status {
	case stripe.SetupIntentStatusSucceeded:
		return Outcome{Status: OutcomeSucceeded}, nil
	case stripe.SetupIntentStatusCanceled:
		return Outcome{Status: OutcomeCanceled}, nil
	default:
		reason := "payment method setup was not completed"
		if si.LastSetupError != nil && si.LastSetupError.Msg != "" {
			reason = si.LastSetupError.Msg
		}
		c.logger.Warn().Str("setup_intent", id).Str("status", string(si.Status)).Msg("Setup intent did not succeed")
		return Outcome{Status: OutcomeFailed, Reason: reason}, nil
	}
}

func (c *StripeConfirmer) confirmPayment(ctx context.Context, clientSecret string) (Outcome, error) {
	id, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return Outcome{}, err
	}
	params := &stripe.PaymentIntentParams{ClientSecret: stripe.String(clientSecret)}
	params.Context = ctx
	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return c.stripeErrOutcome("payment intent", id, err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return Outcome{Status: OutcomeSucceeded}, nil
	case stripe.PaymentIntentStatusCanceled:
		return Outcome{Status: OutcomeCanceled}, nil
	default:
		reason := "payment was not completed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			reason = pi.LastPaymentError.Msg
		}
		c.logger.Warn().Str("payment_intent", id).Str("status", string(pi.Status)).Msg("Payment intent did not succeed")
		return Outcome{Status: OutcomeFailed, Reason: reason}, nil
	}
}

// stripeErrOutcome converts a Stripe API error on lookup into a failed
// outcome. Expired secrets land here.
func (c *StripeConfirmer) stripeErrOutcome(what, id string, err error) (Outcome, error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		c.logger.Warn().Err(err).Str("intent", id).Msgf("Stripe rejected %s lookup", what)
		reason := stripeErr.Msg
		if reason == "" {
			reason = string(stripeErr.Code)
		}
		return Outcome{Status: OutcomeFailed, Reason: reason}, nil
	}
	return Outcome{}, fmt.Errorf("fetch %s %s: %w", what, id, err)
}

package service

import (
	"context"
	"strings"

	"app/internal/model"
	"app/internal/provider"

	"github.com/rs/zerolog"
)

// ConfirmationFlow drives the second phase of the two-phase authorization:
// the secret has already been minted by the billing API; the flow hands it to
// the payment provider and reports a single terminal outcome.
type ConfirmationFlow struct {
	confirmer provider.Confirmer
	logger    zerolog.Logger
}

// NewConfirmationFlow creates a flow with a scoped logger.
func NewConfirmationFlow(confirmer provider.Confirmer, logger zerolog.Logger) *ConfirmationFlow {
	return &ConfirmationFlow{
		confirmer: confirmer,
		logger:    logger.With().Str("service", "ConfirmationFlow").Logger(),
	}
}

// checkScope rejects a secret minted for one intent kind being spent on the
// other. The kinds are already distinct types; this is a defensive check on
// the secret itself, since the secret encodes what it was minted for.
func checkScope(pending *model.PendingConfirmation) error {
	if !pending.Kind.Valid() {
		return validationf("unknown confirmation kind %q", pending.Kind)
	}
	switch {
	case strings.HasPrefix(pending.ClientSecret, "seti_"):
		if pending.Kind != model.KindPaymentMethod {
			return validationf("setup secret cannot confirm a %s intent", pending.Kind)
		}
	case strings.HasPrefix(pending.ClientSecret, "pi_"):
		if pending.Kind != model.KindSubscription {
			return validationf("payment secret cannot confirm a %s intent", pending.Kind)
		}
	}
	return nil
}

// Run resolves the pending confirmation with the provider. The provider step
// may have taken arbitrarily long (hosted UI, full redirect); by the time Run
// is called the outcome is decided and only needs to be read back.
func (f *ConfirmationFlow) Run(ctx context.Context, pending *model.PendingConfirmation) (provider.Outcome, error) {
	if err := checkScope(pending); err != nil {
		return provider.Outcome{}, err
	}

	out, err := f.confirmer.Confirm(ctx, pending.ClientSecret, pending.Kind)
	if err != nil {
		f.logger.Error().Err(err).Str("kind", string(pending.Kind)).Msg("Provider confirmation errored")
		return provider.Outcome{}, err
	}

	switch out.Status {
	case provider.OutcomeSucceeded:
		f.logger.Info().Str("kind", string(pending.Kind)).Msg("Confirmation succeeded")
	case provider.OutcomeCanceled:
		// User dismissal, not an error.
		f.logger.Info().Str("kind", string(pending.Kind)).Msg("Confirmation abandoned by user")
	case provider.OutcomeFailed:
		f.logger.Warn().Str("kind", string(pending.Kind)).Str("reason", out.Reason).Msg("Confirmation failed")
	}
	return out, nil
}

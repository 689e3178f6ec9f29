package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"app/internal/billing"
	"app/internal/model"
	"app/internal/provider"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Orchestrator maps each user-initiated billing intent onto a deterministic
// sequence of billing API and confirmation flow calls, and keeps the cached
// view consistent with the system of record. One outbound call is allowed per
// action key at a time; unrelated keys proceed concurrently.
//
// A subscription-affecting intent moves through: idle, awaiting the billing
// API, then either resolved or awaiting provider confirmation. A successful
// payment-method confirmation with a deferred plan loops back into the
// subscribe attempt exactly once.
type Orchestrator struct {
	billing    billing.Client
	flow       *ConfirmationFlow
	view       *ViewStore
	inflight   *inflightSet
	tickets    repository.TicketRepository
	events     pubsub.Publisher
	eventTopic string
	logger     zerolog.Logger

	// settleDelay is how long to wait before the single refresh retry that
	// covers asynchronous provider-to-billing propagation.
	settleDelay time.Duration

	mu      sync.Mutex
	pending *model.PendingConfirmation
}

// NewOrchestrator wires the orchestrator. tickets and events may be nil; the
// orchestrator then runs without durable confirmation resume and without
// event publishing.
func NewOrchestrator(client billing.Client, flow *ConfirmationFlow, tickets repository.TicketRepository, events pubsub.Publisher, eventTopic string, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		billing:     client,
		flow:        flow,
		view:        NewViewStore(),
		inflight:    newInflightSet(),
		tickets:     tickets,
		events:      events,
		eventTopic:  eventTopic,
		logger:      logger.With().Str("service", "Orchestrator").Logger(),
		settleDelay: 2 * time.Second,
	}
}

// SetSettleDelay overrides the post-confirmation settle wait.
func (o *Orchestrator) SetSettleDelay(d time.Duration) {
	o.settleDelay = d
}

// View returns the current cached snapshot.
func (o *Orchestrator) View() BillingView {
	return o.view.Current()
}

// Pending returns a copy of the in-flight confirmation, or nil.
func (o *Orchestrator) Pending() *model.PendingConfirmation {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return nil
	}
	p := *o.pending
	return &p
}

// confirmationOpen reports whether a pending confirmation is held. Operations
// that would open another one check this before touching the billing API, so
// a rejected intent leaves no half-created record behind.
func (o *Orchestrator) confirmationOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending != nil
}

// Plans returns the plan catalog from the system of record.
func (o *Orchestrator) Plans(ctx context.Context) ([]model.Plan, error) {
	plans, err := o.billing.ListPlans(ctx)
	if err != nil {
		return nil, o.apiFailure("list_plans", err)
	}
	return plans, nil
}

// Refresh re-fetches subscription and payment methods and atomically replaces
// the cached view. Safe to call repeatedly.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	sub, err := o.billing.GetSubscription(ctx)
	if err != nil {
		return o.apiFailure("refresh", err)
	}
	methods, err := o.billing.ListPaymentMethods(ctx)
	if err != nil {
		return o.apiFailure("refresh", err)
	}
	v := o.view.Replace(sub, methods)
	o.logger.Debug().Uint64("version", v.Version).Str("plan", sub.PlanID).Msg("Billing view refreshed")
	return nil
}

// ensureView populates the cache on first use so precondition checks have
// something authoritative to look at.
func (o *Orchestrator) ensureView(ctx context.Context) error {
	if o.view.Current().Version > 0 {
		return nil
	}
	return o.Refresh(ctx)
}

// RequestUpgrade starts a subscription on planID. With a confirmed payment
// method on file it subscribes directly; the billing API either activates
// synchronously (nil return) or demands step-up confirmation (a pending
// confirmation of kind subscription is returned). With no method on file it
// opens a payment-method setup confirmation that remembers planID, so the
// upgrade is retried once the method is confirmed.
func (o *Orchestrator) RequestUpgrade(ctx context.Context, planID string) (*model.PendingConfirmation, error) {
	if o.confirmationOpen() {
		return nil, ErrConfirmationInProgress
	}
	if err := o.ensureView(ctx); err != nil {
		return nil, err
	}
	plans, err := o.billing.ListPlans(ctx)
	if err != nil {
		return nil, o.apiFailure("upgrade", err)
	}
	known := false
	for i := range plans {
		if plans[i].ID == planID {
			known = true
			break
		}
	}
	if !known {
		return nil, validationf("unknown plan %q", planID)
	}
	cur := o.view.Current()
	if cur.Subscription != nil && cur.Subscription.PlanID == planID {
		return nil, validationf("already subscribed to plan %q", planID)
	}

	release, err := o.inflight.acquire(ActionKey{Kind: ActionUpgrade, Target: planID})
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok := cur.DefaultMethod(); ok {
		return o.attemptSubscribe(ctx, planID)
	}

	// No confirmed payment method: the method must be set up and confirmed
	// before any charge. The requested plan rides along on the pending record.
	si, err := o.billing.CreateSetupIntent(ctx)
	if err != nil {
		return nil, o.apiFailure("upgrade", err)
	}
	return o.openPending(ctx, model.KindPaymentMethod, si.ClientSecret, planID)
}

// attemptSubscribe issues the subscribe call with the default (or first)
// stored method and reconciles or opens a confirmation as the response
// dictates.
func (o *Orchestrator) attemptSubscribe(ctx context.Context, planID string) (*model.PendingConfirmation, error) {
	method, ok := o.view.Current().DefaultMethod()
	if !ok {
		return nil, validationf("no confirmed payment method available")
	}

	res, err := o.billing.Subscribe(ctx, planID, method.ID)
	if err != nil {
		return nil, o.apiFailure("subscribe", err)
	}

	if res.Status.Settled() {
		if err := o.refreshSettled(ctx); err != nil {
			return nil, err
		}
		o.logger.Info().Str("plan", planID).Str("subscription", res.SubscriptionID).Msg("Subscription active")
		o.publish(ctx, pubsub.BillingEvent{Type: pubsub.EventSubscriptionStarted, PlanID: planID})
		return nil, nil
	}

	if res.ClientSecret == "" {
		return nil, fmt.Errorf("subscription %s in state %s: %w", res.SubscriptionID, res.Status, ErrConfirmationSecretMissing)
	}
	return o.openPending(ctx, model.KindSubscription, res.ClientSecret, planID)
}

// openPending records a new pending confirmation, persisting its ticket so the
// flow survives a redirect or restart. Only one confirmation may be open.
func (o *Orchestrator) openPending(ctx context.Context, kind model.ConfirmationKind, secret, planID string) (*model.PendingConfirmation, error) {
	p := &model.PendingConfirmation{
		TicketID:     uuid.NewString(),
		ClientSecret: secret,
		Kind:         kind,
		PlanID:       planID,
	}

	o.mu.Lock()
	if o.pending != nil {
		o.mu.Unlock()
		return nil, ErrConfirmationInProgress
	}
	o.pending = p
	o.mu.Unlock()

	if o.tickets != nil {
		ticket := &repository.ConfirmationTicket{
			ID:           p.TicketID,
			Kind:         string(kind),
			PlanID:       planID,
			ClientSecret: secret,
		}
		if err := o.tickets.Create(ctx, ticket); err != nil {
			o.mu.Lock()
			o.pending = nil
			o.mu.Unlock()
			return nil, fmt.Errorf("persist confirmation ticket: %w", err)
		}
	}

	o.logger.Info().Str("kind", string(kind)).Str("plan", planID).Str("ticket", p.TicketID).Msg("Confirmation required")
	cp := *p
	return &cp, nil
}

// ConfirmPending resolves the open confirmation with the provider and
// reconciles state. The provider step itself may already have taken
// arbitrarily long on the hosted UI.
func (o *Orchestrator) ConfirmPending(ctx context.Context) error {
	o.mu.Lock()
	p := o.pending
	o.mu.Unlock()
	if p == nil {
		return ErrNoPendingConfirmation
	}

	out, err := o.flow.Run(ctx, p)
	if err != nil {
		// Scope or provider transport error: the pending record stays so the
		// user can retry or abandon.
		return err
	}
	return o.resolve(ctx, p, out)
}

// AbandonPending discards the open confirmation without touching the system
// of record and releases everything held for it.
func (o *Orchestrator) AbandonPending(ctx context.Context) error {
	o.mu.Lock()
	p := o.pending
	o.pending = nil
	o.mu.Unlock()
	if p == nil {
		return ErrNoPendingConfirmation
	}
	o.deleteTicket(ctx, p.TicketID)
	o.logger.Info().Str("kind", string(p.Kind)).Str("ticket", p.TicketID).Msg("Confirmation abandoned before provider step")
	return nil
}

// CompleteFromTicket resumes a confirmation after a provider redirect. The
// in-memory pending record may be gone (full page navigation, process
// restart); the intent is re-derived from the persisted ticket and the real
// outcome is read back from the provider rather than trusted from the return
// marker. outcome "canceled" short-circuits: the user dismissed the hosted UI.
func (o *Orchestrator) CompleteFromTicket(ctx context.Context, ticketID string, outcome provider.OutcomeStatus) error {
	if o.tickets == nil {
		return fmt.Errorf("confirmation tickets are not configured")
	}
	// Consuming the ticket up front makes completion exactly-once: a duplicate
	// return (page refresh, double navigation) finds no ticket and stops here.
	t, err := o.tickets.Consume(ctx, ticketID)
	if err != nil {
		return err
	}
	p := &model.PendingConfirmation{
		TicketID:     t.ID,
		ClientSecret: t.ClientSecret,
		Kind:         model.ConfirmationKind(t.Kind),
		PlanID:       t.PlanID,
	}

	if outcome == provider.OutcomeCanceled {
		return o.resolve(ctx, p, provider.Outcome{Status: provider.OutcomeCanceled})
	}

	out, err := o.flow.Run(ctx, p)
	if err != nil {
		// No outcome was read; put the ticket back so the return can be
		// retried once the provider is reachable again.
		if cerr := o.tickets.Create(ctx, t); cerr != nil {
			o.logger.Warn().Err(cerr).Str("ticket", t.ID).Msg("Failed to restore consumed confirmation ticket")
		}
		return err
	}
	return o.resolve(ctx, p, out)
}

// resolve applies a terminal confirmation outcome: discard the pending record,
// then reconcile on success or surface the distinct failure/abandonment.
func (o *Orchestrator) resolve(ctx context.Context, p *model.PendingConfirmation, out provider.Outcome) error {
	o.mu.Lock()
	if o.pending != nil && o.pending.TicketID == p.TicketID {
		o.pending = nil
	}
	o.mu.Unlock()
	o.deleteTicket(ctx, p.TicketID)

	switch out.Status {
	case provider.OutcomeCanceled:
		return ErrConfirmationAbandoned
	case provider.OutcomeFailed:
		return &ConfirmationFailedError{Reason: out.Reason}
	}

	// Success. The provider confirmation does not itself update the billing
	// record, so re-fetch rather than assume anything client-side.
	if err := o.refreshSettled(ctx); err != nil {
		return err
	}

	switch p.Kind {
	case model.KindSubscription:
		o.publish(ctx, pubsub.BillingEvent{Type: pubsub.EventSubscriptionStarted, PlanID: p.PlanID})
		return nil
	case model.KindPaymentMethod:
		o.publish(ctx, pubsub.BillingEvent{Type: pubsub.EventPaymentMethodAdded})
		if p.PlanID == "" {
			return nil
		}
		return o.retryDeferredUpgrade(ctx, p.PlanID)
	default:
		return validationf("unknown confirmation kind %q", p.Kind)
	}
}

// retryDeferredUpgrade re-enters the subscribe attempt exactly once after a
// payment method confirmation that was opened on behalf of an upgrade.
func (o *Orchestrator) retryDeferredUpgrade(ctx context.Context, planID string) error {
	release, err := o.inflight.acquire(ActionKey{Kind: ActionUpgrade, Target: planID})
	if err != nil {
		return err
	}
	defer release()

	// A completion replayed after the upgrade already settled must not
	// subscribe again.
	if sub := o.view.Current().Subscription; sub != nil && sub.PlanID == planID && sub.Status.Settled() {
		return nil
	}

	// The new method may not be visible in the billing record yet; allow one
	// settling retry before giving up.
	if _, ok := o.view.Current().DefaultMethod(); !ok {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.settleDelay):
		}
		if err := o.Refresh(ctx); err != nil {
			return err
		}
	}

	next, err := o.attemptSubscribe(ctx, planID)
	if err != nil {
		return err
	}
	if next != nil {
		o.logger.Info().Str("plan", planID).Msg("Deferred upgrade needs its own confirmation")
	}
	return nil
}

// ChangePlan switches an existing active paid subscription to planID in a
// single synchronous call; the already-authorized payment method is reused by
// the system of record.
func (o *Orchestrator) ChangePlan(ctx context.Context, planID string) error {
	if err := o.ensureView(ctx); err != nil {
		return err
	}
	sub := o.view.Current().Subscription
	switch {
	case sub == nil || !sub.Status.Settled():
		return validationf("no active subscription to change")
	case sub.PlanID == "" || sub.PlanID == "free":
		return validationf("no paid subscription to change; upgrade instead")
	case sub.PlanID == planID:
		return validationf("already on plan %q", planID)
	case sub.CancelAtPeriodEnd:
		// Deliberate: a subscription wound down for cancellation must be
		// resumed before its plan can change.
		return validationf("subscription is set to cancel at period end; resume it first")
	}

	release, err := o.inflight.acquire(ActionKey{Kind: ActionChangePlan, Target: planID})
	if err != nil {
		return err
	}
	defer release()

	if err := o.billing.ChangePlan(ctx, planID); err != nil {
		return o.apiFailure("change_plan", err)
	}
	if err := o.Refresh(ctx); err != nil {
		return err
	}
	o.publish(ctx, pubsub.BillingEvent{Type: pubsub.EventPlanChanged, PlanID: planID})
	return nil
}

// CancelSubscription ends the subscription. confirmed is the irreversible-
// intent gate: without it the billing API is never contacted. immediately
// false only sets cancel-at-period-end; access runs to the period boundary.
func (o *Orchestrator) CancelSubscription(ctx context.Context, immediately, confirmed bool) error {
	if !confirmed {
		return validationf("cancellation requires explicit confirmation")
	}
	if err := o.ensureView(ctx); err != nil {
		return err
	}
	sub := o.view.Current().Subscription
	if sub == nil || sub.Status == model.StatusCanceled {
		return validationf("no active subscription to cancel")
	}

	release, err := o.inflight.acquire(ActionKey{Kind: ActionCancel})
	if err != nil {
		return err
	}
	defer release()

	res, err := o.billing.Cancel(ctx, immediately)
	if err != nil {
		return o.apiFailure("cancel", err)
	}
	if err := o.Refresh(ctx); err != nil {
		return err
	}
	o.logger.Info().Bool("immediately", res.CanceledImmediately).Msg("Subscription canceled")
	o.publish(ctx, pubsub.BillingEvent{Type: pubsub.EventSubscriptionCanceled, PlanID: sub.PlanID})
	return nil
}

// ResumeSubscription clears a pending cancel-at-period-end.
func (o *Orchestrator) ResumeSubscription(ctx context.Context) error {
	if err := o.ensureView(ctx); err != nil {
		return err
	}
	sub := o.view.Current().Subscription
	if sub == nil || !sub.CancelAtPeriodEnd || sub.Status == model.StatusCanceled {
		return validationf("subscription is not pending cancellation")
	}

	release, err := o.inflight.acquire(ActionKey{Kind: ActionResume})
	if err != nil {
		return err
	}
	defer release()

	if err := o.billing.Resume(ctx); err != nil {
		return o.apiFailure("resume", err)
	}
	if err := o.Refresh(ctx); err != nil {
		return err
	}
	o.publish(ctx, pubsub.BillingEvent{Type: pubsub.EventSubscriptionResumed, PlanID: sub.PlanID})
	return nil
}

// AddPaymentMethod opens a payment-method setup confirmation. There is no
// synchronous path: a method is only trustworthy after the provider's step-up
// check.
func (o *Orchestrator) AddPaymentMethod(ctx context.Context) (*model.PendingConfirmation, error) {
	if o.confirmationOpen() {
		return nil, ErrConfirmationInProgress
	}
	release, err := o.inflight.acquire(ActionKey{Kind: ActionAddMethod})
	if err != nil {
		return nil, err
	}
	defer release()

	si, err := o.billing.CreateSetupIntent(ctx)
	if err != nil {
		return nil, o.apiFailure("add_payment_method", err)
	}
	return o.openPending(ctx, model.KindPaymentMethod, si.ClientSecret, "")
}

// SetDefaultPaymentMethod marks id as default and, only after the server
// confirms, reflects it in the cached view.
func (o *Orchestrator) SetDefaultPaymentMethod(ctx context.Context, id string) error {
	release, err := o.inflight.acquire(ActionKey{Kind: ActionSetDefaultMethod, Target: id})
	if err != nil {
		return err
	}
	defer release()

	if err := o.billing.SetDefaultPaymentMethod(ctx, id); err != nil {
		return o.apiFailure("set_default_payment_method", err)
	}
	o.view.SetDefaultMethod(id)
	return nil
}

// DeletePaymentMethod removes id. The server owns the ordering constraint
// around deleting the default or sole method; a rejection surfaces as a
// conflict rather than being second-guessed locally.
func (o *Orchestrator) DeletePaymentMethod(ctx context.Context, id string) error {
	release, err := o.inflight.acquire(ActionKey{Kind: ActionDeleteMethod, Target: id})
	if err != nil {
		return err
	}
	defer release()

	if err := o.billing.DeletePaymentMethod(ctx, id); err != nil {
		return o.apiFailure("delete_payment_method", err)
	}
	o.view.RemoveMethod(id)
	o.publish(ctx, pubsub.BillingEvent{Type: pubsub.EventPaymentMethodRemoved, MethodID: id})
	return nil
}

// refreshSettled refreshes the view, retrying once after the settle delay to
// tolerate the provider's confirmation not yet being visible in the billing
// record.
func (o *Orchestrator) refreshSettled(ctx context.Context) error {
	if err := o.Refresh(ctx); err == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.settleDelay):
	}
	return o.Refresh(ctx)
}

// apiFailure classifies a billing API error at the orchestrator boundary. The
// cached view is never partially mutated on failure; a conflict forces a full
// refresh so the stale assumption that caused it is corrected.
func (o *Orchestrator) apiFailure(op string, err error) error {
	if isConflict(err) {
		o.logger.Warn().Err(err).Str("op", op).Msg("Stale local state, forcing refresh")
		if rerr := o.Refresh(context.Background()); rerr != nil {
			o.logger.Error().Err(rerr).Msg("Forced refresh after conflict failed")
		}
		return err
	}
	if isTransient(err) {
		o.logger.Warn().Err(err).Str("op", op).Msg("Billing API unavailable")
	} else {
		o.logger.Error().Err(err).Str("op", op).Msg("Billing API call failed")
	}
	return err
}

func (o *Orchestrator) deleteTicket(ctx context.Context, id string) {
	if o.tickets == nil {
		return
	}
	if err := o.tickets.Delete(ctx, id); err != nil {
		o.logger.Warn().Err(err).Str("ticket", id).Msg("Failed to delete confirmation ticket")
	}
}

func (o *Orchestrator) publish(ctx context.Context, ev pubsub.BillingEvent) {
	if o.events == nil {
		return
	}
	if _, err := pubsub.PublishEvent(ctx, o.events, o.eventTopic, ev); err != nil {
		o.logger.Warn().Err(err).Str("type", string(ev.Type)).Msg("Failed to publish billing event")
	}
}

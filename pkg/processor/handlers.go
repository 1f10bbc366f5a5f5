package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/entitlement"
	"github.com/dmitrymomot/billingkit/pkg/event"
)

// handlers owns the per-kind business logic. Every method follows the same
// contract: a nil error means the event's effect is applied (or there was
// legitimately nothing to do); a non-nil error marks the processing record
// failed without blocking acknowledgement.
type handlers struct {
	resolver  *entitlement.Resolver
	directory CustomerDirectory
	log       *slog.Logger
}

// checkout correlates the new customer to an account via the account_id the
// checkout session was created with, links the customer reference for later
// events, and derives the initial entitlement from the purchased price.
func (h *handlers) checkout(ctx context.Context, ev *event.Event) (*HandleResult, error) {
	accountID, err := uuid.Parse(ev.AccountID())
	if err != nil || accountID == uuid.Nil {
		return nil, ErrMissingAccountID
	}

	if ref := ev.CustomerRef(); ref != "" {
		if err := h.directory.Link(ctx, ref, accountID); err != nil {
			return nil, err
		}
	}

	priceRef := ev.PriceRef()
	if priceRef == "" {
		// Checkout without a price (e.g. setup mode): the link alone is the effect.
		return &HandleResult{
			Summary:   "customer linked, no price to resolve",
			AccountID: accountID,
			Handled:   true,
		}, nil
	}

	res, err := h.resolver.ResolveFromPrice(ctx, accountID, priceRef)
	if err != nil {
		return nil, err
	}
	if res.FallbackApplied {
		return nil, fmt.Errorf("price %s unresolvable, account placed on free-tier fallback", priceRef)
	}

	return &HandleResult{
		Summary:   fmt.Sprintf("entitlement set to %s plan from price %s", res.Entitlement.PlanName, priceRef),
		AccountID: accountID,
		Handled:   true,
	}, nil
}

// subscriptionUpsert handles created and updated events identically: the
// record is rederived wholesale from the subscription's current price. A
// canceled subscription, or one without a price, resets the account to the
// free tier.
func (h *handlers) subscriptionUpsert(ctx context.Context, ev *event.Event) (*HandleResult, error) {
	accountID, done, err := h.accountFor(ctx, ev)
	if done != nil || err != nil {
		return done, err
	}

	if canceledStatus(ev.Payload.Status) || ev.PriceRef() == "" {
		if _, err := h.resolver.ResolveDirect(ctx, accountID, entitlement.TierDefaults(entitlement.TierFree)); err != nil {
			return nil, err
		}
		return &HandleResult{
			Summary:   fmt.Sprintf("subscription %s inactive (%s), account reset to free tier", ev.SubscriptionRef(), ev.Payload.Status),
			AccountID: accountID,
			Handled:   true,
		}, nil
	}

	res, err := h.resolver.ResolveFromPrice(ctx, accountID, ev.PriceRef())
	if err != nil {
		return nil, err
	}
	if res.FallbackApplied {
		return nil, fmt.Errorf("price %s unresolvable, account placed on free-tier fallback", ev.PriceRef())
	}

	return &HandleResult{
		Summary:   fmt.Sprintf("entitlement set to %s plan from subscription %s", res.Entitlement.PlanName, ev.SubscriptionRef()),
		AccountID: accountID,
		Handled:   true,
	}, nil
}

// subscriptionDeleted resets the account to the free tier.
func (h *handlers) subscriptionDeleted(ctx context.Context, ev *event.Event) (*HandleResult, error) {
	accountID, done, err := h.accountFor(ctx, ev)
	if done != nil || err != nil {
		return done, err
	}

	if _, err := h.resolver.ResolveDirect(ctx, accountID, entitlement.TierDefaults(entitlement.TierFree)); err != nil {
		return nil, err
	}

	return &HandleResult{
		Summary:   fmt.Sprintf("subscription %s deleted, account reset to free tier", ev.SubscriptionRef()),
		AccountID: accountID,
		Handled:   true,
	}, nil
}

// paymentSucceeded records the renewal. The entitlement is already driven by
// subscription events, so a successful invoice needs no record change.
func (h *handlers) paymentSucceeded(ctx context.Context, ev *event.Event) (*HandleResult, error) {
	accountID, done, err := h.accountFor(ctx, ev)
	if done != nil || err != nil {
		return done, err
	}

	h.log.InfoContext(ctx, "payment succeeded",
		slog.String("account_id", accountID.String()),
		slog.String("invoice_id", ev.Payload.InvoiceID),
		slog.Int64("amount_cents", ev.Payload.AmountCents))

	return &HandleResult{
		Summary:   fmt.Sprintf("payment of %d cents recorded for invoice %s", ev.Payload.AmountCents, ev.Payload.InvoiceID),
		AccountID: accountID,
		Handled:   true,
	}, nil
}

// paymentFailed logs the failure with its attempt count. Downgrading happens
// only when the provider cancels the subscription, not on the first failed
// charge.
func (h *handlers) paymentFailed(ctx context.Context, ev *event.Event) (*HandleResult, error) {
	accountID, done, err := h.accountFor(ctx, ev)
	if done != nil || err != nil {
		return done, err
	}

	h.log.WarnContext(ctx, "payment failed",
		slog.String("account_id", accountID.String()),
		slog.String("invoice_id", ev.Payload.InvoiceID),
		slog.Int("attempt_count", ev.Payload.AttemptCount))

	return &HandleResult{
		Summary:   fmt.Sprintf("payment failure attempt %d recorded for invoice %s", ev.Payload.AttemptCount, ev.Payload.InvoiceID),
		AccountID: accountID,
		Handled:   true,
	}, nil
}

// accountFor resolves the event's customer reference to an account. A
// customer the directory has never seen is not an error: the event is
// acknowledged as handled with nothing to do, matching redeliveries that
// arrive after an account was deleted.
func (h *handlers) accountFor(ctx context.Context, ev *event.Event) (uuid.UUID, *HandleResult, error) {
	ref := ev.CustomerRef()
	if ref == "" {
		return uuid.Nil, &HandleResult{Summary: "event carries no customer reference, nothing to do", Handled: true}, nil
	}

	accountID, err := h.directory.Lookup(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrUnknownCustomer) {
			h.log.WarnContext(ctx, "event for unknown customer",
				slog.String("customer_ref", ref),
				slog.String("event_id", ev.ID))
			return uuid.Nil, &HandleResult{Summary: fmt.Sprintf("customer %s not linked to any account, nothing to do", ref), Handled: true}, nil
		}
		return uuid.Nil, nil, err
	}
	return accountID, nil, nil
}

// canceledStatus reports whether a subscription status means the plan no
// longer grants anything.
func canceledStatus(status string) bool {
	switch status {
	case "canceled", "incomplete_expired", "unpaid":
		return true
	default:
		return false
	}
}

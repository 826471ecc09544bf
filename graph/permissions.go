package graph

import (
	"context"

	"github.com/upb/book-feed/internal/observability"
	"github.com/upb/book-feed/services/permissions"
	"go.uber.org/zap"
)

// RuleCheckBanner is logged on every evaluation of the check rule.
const RuleCheckBanner = "----------- Rule check -----------"

// NewCheckRule returns the rule guarding Subscription.book deliveries.
// It always allows and is never cached.
func NewCheckRule(logger *zap.Logger) *permissions.Rule {
	return permissions.NewRule("check", permissions.CacheNone, func(ctx context.Context, field permissions.FieldRef) (bool, error) {
		observability.WithRequestID(ctx, logger).Info(RuleCheckBanner, zap.Stringer("field", field))
		return true, nil
	})
}

// DefaultPermissions binds the schema fields to their policies. check
// runs on the resolve step of Subscription.book only; opening the
// subscription is not covered by any entry.
func DefaultPermissions(check *permissions.Rule) permissions.Map {
	return permissions.Map{
		Types: map[string]permissions.Policy{
			"Book": permissions.Allow(),
		},
		Fields: map[permissions.FieldRef]permissions.Policy{
			{Type: "Query", Field: "books"}:       permissions.Allow(),
			{Type: "Subscription", Field: "book"}: permissions.Evaluate(check),
		},
	}
}

// NewShield builds the shield with DefaultPermissions and a deny fallback.
func NewShield(check *permissions.Rule, metrics *observability.Metrics, logger *zap.Logger) *permissions.Shield {
	return permissions.NewShield(DefaultPermissions(check), permissions.Deny(), metrics, logger)
}

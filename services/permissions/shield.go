package permissions

import (
	"context"

	"github.com/upb/book-feed/internal/observability"
	"github.com/upb/book-feed/services"
	"go.uber.org/zap"
)

// Shield checks field access against a Map, falling back to a fixed
// policy for fields without an entry.
type Shield struct {
	perms    Map
	fallback Policy
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewShield creates a new Shield
func NewShield(perms Map, fallback Policy, metrics *observability.Metrics, logger *zap.Logger) *Shield {
	for field, policy := range perms.Fields {
		logPolicy(logger, field.String(), policy)
	}
	for typeName, policy := range perms.Types {
		logPolicy(logger, typeName, policy)
	}
	logPolicy(logger, "fallback", fallback)

	return &Shield{
		perms:    perms,
		fallback: fallback,
		metrics:  metrics,
		logger:   logger,
	}
}

func logPolicy(logger *zap.Logger, target string, policy Policy) {
	fields := []zap.Field{
		zap.String("target", target),
		zap.Stringer("decision", policy.Decision()),
	}
	if rule := policy.Rule(); rule != nil {
		fields = append(fields, zap.String("rule", rule.Name()), zap.String("cache", string(rule.Cache())))
	}
	logger.Debug("permission policy", fields...)
}

// PolicyFor returns the effective policy of a field.
func (s *Shield) PolicyFor(field FieldRef) Policy {
	if p, ok := s.perms.Lookup(field); ok {
		return p
	}
	return s.fallback
}

// Check returns nil when access to typeName.fieldName is allowed and
// services.ErrNotAuthorised otherwise. Rule errors and panics deny.
func (s *Shield) Check(ctx context.Context, typeName, fieldName string) error {
	field := FieldRef{Type: typeName, Field: fieldName}
	policy := s.PolicyFor(field)
	logger := observability.WithRequestID(ctx, s.logger).With(zap.Stringer("field", field))

	switch policy.decision {
	case DecisionAllow:
		s.metrics.RecordDecision(typeName, fieldName, "allow")
		return nil

	case DecisionEvaluate:
		ok, hit, err := evaluate(ctx, policy.rule, field)
		s.metrics.RecordRuleEvaluation(policy.rule.name, cacheLabel(hit))
		if err != nil {
			logger.Warn("rule failed, denying",
				zap.String("rule", policy.rule.name),
				zap.Error(err))
			s.metrics.RecordDecision(typeName, fieldName, "deny")
			return services.NotAuthorised(err)
		}
		if !ok {
			logger.Info("rule denied access", zap.String("rule", policy.rule.name))
			s.metrics.RecordDecision(typeName, fieldName, "deny")
			return services.NotAuthorised(nil)
		}
		s.metrics.RecordDecision(typeName, fieldName, "allow")
		return nil

	default:
		logger.Debug("access denied by policy")
		s.metrics.RecordDecision(typeName, fieldName, "deny")
		return services.NotAuthorised(nil)
	}
}

// Guard runs resolve only when typeName.fieldName is allowed.
func Guard[T any](ctx context.Context, s *Shield, typeName, fieldName string, resolve func() (T, error)) (T, error) {
	if err := s.Check(ctx, typeName, fieldName); err != nil {
		var zero T
		return zero, err
	}
	return resolve()
}

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

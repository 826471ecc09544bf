package permissions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// CacheMode controls whether a rule decision may be reused.
type CacheMode string

const (
	// CacheNone re-evaluates the rule on every check.
	CacheNone CacheMode = "no_cache"
	// CacheContextual evaluates the rule once per request context.
	CacheContextual CacheMode = "contextual"
)

// FieldRef identifies a schema field.
type FieldRef struct {
	Type  string
	Field string
}

// String returns the "Type.field" form
func (f FieldRef) String() string {
	return f.Type + "." + f.Field
}

// RuleFunc decides whether access to field is allowed.
type RuleFunc func(ctx context.Context, field FieldRef) (bool, error)

// Rule is a named predicate with a cache mode.
type Rule struct {
	name  string
	cache CacheMode
	fn    RuleFunc
}

// NewRule creates a new Rule. An empty name gets a generated one, since
// contextual caching keys decisions by name.
func NewRule(name string, cache CacheMode, fn RuleFunc) *Rule {
	if name == "" {
		name = "rule-" + uuid.NewString()
	}
	if cache == "" {
		cache = CacheContextual
	}
	return &Rule{name: name, cache: cache, fn: fn}
}

// Name returns the rule name
func (r *Rule) Name() string { return r.name }

// Cache returns the rule cache mode
func (r *Rule) Cache() CacheMode { return r.cache }

// And allows only when every rule allows. Evaluation stops at the first denial.
func And(name string, rules ...*Rule) *Rule {
	return NewRule(name, CacheNone, func(ctx context.Context, field FieldRef) (bool, error) {
		for _, r := range rules {
			ok, _, err := evaluate(ctx, r, field)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

// Or allows when any rule allows. Errors from rules that deny are
// ignored unless every rule fails.
func Or(name string, rules ...*Rule) *Rule {
	return NewRule(name, CacheNone, func(ctx context.Context, field FieldRef) (bool, error) {
		var firstErr error
		for _, r := range rules {
			ok, _, err := evaluate(ctx, r, field)
			if err == nil && ok {
				return true, nil
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return false, firstErr
	})
}

// Not inverts a rule. A failing rule stays a denial.
func Not(name string, rule *Rule) *Rule {
	return NewRule(name, CacheNone, func(ctx context.Context, field FieldRef) (bool, error) {
		ok, _, err := evaluate(ctx, rule, field)
		if err != nil {
			return false, err
		}
		return !ok, nil
	})
}

// cachedDecision is one contextual decision, computed at most once.
type cachedDecision struct {
	once sync.Once
	ok   bool
	err  error
}

// decisionCache holds contextual decisions for one request.
type decisionCache struct {
	mu      sync.Mutex
	results map[string]*cachedDecision
}

func (c *decisionCache) entry(name string) *cachedDecision {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.results[name]
	if !ok {
		d = &cachedDecision{}
		c.results[name] = d
	}
	return d
}

type cacheKey struct{}

// NewContext returns a context carrying an empty decision cache. Rules
// with CacheContextual evaluate at most once per such context, even when
// fields resolve concurrently.
func NewContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheKey{}, &decisionCache{results: make(map[string]*cachedDecision)})
}

func cacheFromContext(ctx context.Context) *decisionCache {
	c, _ := ctx.Value(cacheKey{}).(*decisionCache)
	return c
}

// evaluate runs rule, consulting the contextual cache when allowed. The
// second result reports a cache hit. A panicking rule yields an error.
func evaluate(ctx context.Context, rule *Rule, field FieldRef) (ok bool, hit bool, err error) {
	var c *decisionCache
	if rule.cache == CacheContextual {
		c = cacheFromContext(ctx)
	}
	if c == nil {
		ok, err = run(ctx, rule, field)
		return ok, false, err
	}

	d := c.entry(rule.name)
	hit = true
	d.once.Do(func() {
		hit = false
		d.ok, d.err = run(ctx, rule, field)
	})
	return d.ok, hit, d.err
}

func run(ctx context.Context, rule *Rule, field FieldRef) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			err = fmt.Errorf("rule %s panicked: %v", rule.name, p)
		}
	}()
	if rule.fn == nil {
		return false, fmt.Errorf("rule %s has no predicate", rule.name)
	}
	return rule.fn(ctx, field)
}

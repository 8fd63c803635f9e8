// Package ratelimit implements the rate-limiting core: rule parsing (C1),
// the storage contract's consumer side, and the limiter engine (C6) that
// orchestrates ordered rule evaluation and primary→fallback failover.
package ratelimit

import (
	"context"
	"sync"
	"time"

	rcerrors "github.com/lattice-run/ratecore/pkg/errors"
	"github.com/lattice-run/ratecore/pkg/logger"
	"github.com/lattice-run/ratecore/pkg/ratelimit/observability"
	"github.com/lattice-run/ratecore/pkg/ratelimit/storage"
	"github.com/lattice-run/ratecore/pkg/ratelimit/storage/memory"
	"github.com/lattice-run/ratecore/pkg/ratelimit/storage/redisstore"
	"github.com/lattice-run/ratecore/pkg/resilience"
)

// Engine is the limiter engine (C6): the public entry point that evaluates
// an ordered list of rules against a primary store, failing over to a local
// store and ultimately to fail-open per the configuration record.
type Engine struct {
	cfg         EngineConfig
	globalRules []Rule

	primary  storage.Store
	fallback storage.Store
	sink     observability.Sink

	mu     sync.RWMutex
	closed bool
}

// Option customizes an Engine at construction time.
type Option func(*Engine)

// WithSink overrides the default no-op observability sink.
func WithSink(sink observability.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithFallback sets the local store the engine falls back to, replacing the
// one in_memory_fallback would create; it is installed whether or not
// in_memory_fallback is enabled. Primarily for tests.
func WithFallback(store storage.Store) Option {
	return func(e *Engine) { e.fallback = store }
}

// NewEngine constructs an Engine from cfg: it resolves global_rules (C1),
// builds the Redis-backed remote store (C4) and, if configured, the local
// fallback store (C3), but does not connect to Redis yet — the connection
// is established lazily on first Check, per §5.
func NewEngine(cfg EngineConfig, opts ...Option) (*Engine, error) {
	if err := validateRemote(cfg.Remote); err != nil {
		return nil, err
	}

	rules, err := cfg.resolveRules()
	if err != nil {
		return nil, err
	}

	primary, err := redisstore.New(redisstore.Config{
		Topology:     redisstore.Topology(cfg.Remote.Topology),
		Addrs:        cfg.Remote.Addrs,
		MasterName:   cfg.Remote.PrimaryName,
		Username:     cfg.Remote.Username,
		Password:     cfg.Remote.Password,
		DB:           cfg.Remote.DB,
		TLS:          cfg.Remote.TLS,
		PoolSize:     cfg.Remote.PoolSize,
		DialTimeout:  time.Duration(cfg.Remote.TimeoutSeconds) * time.Second,
		ConnectRetry: retryConfigFor(cfg.Remote),
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		globalRules: rules,
		primary:     primary,
		sink:        observability.NoopSink{},
	}

	if cfg.InMemoryFallback {
		e.fallback = memory.New()
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

func retryConfigFor(r RemoteConfig) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if r.ConnectRetries > 0 {
		cfg.MaxAttempts = r.ConnectRetries
	}
	return cfg
}

// Check is the engine's single public operation. It evaluates rules (or, if
// rules is empty, the engine's global rules) as an ordered conjunction: the
// request is allowed iff every rule admits it. On the first blocking rule,
// evaluation stops and that rule's decision is returned, per §4.6 — later
// rules are never evaluated, so they are never double-counted. When every
// rule admits the request, Remaining is the smallest remaining count among
// the rules.
func (e *Engine) Check(ctx context.Context, identity string, rules []Rule) (Decision, *Rule, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return Decision{}, nil, rcerrors.NewClosedError()
	}

	if !e.cfg.Enabled {
		return Decision{Allowed: true}, nil, nil
	}

	if len(rules) == 0 {
		rules = e.globalRules
	}

	result := Decision{Allowed: true}
	for i := range rules {
		rule := rules[i]
		decision, err := e.checkRule(ctx, identity, rule)
		if err != nil {
			return Decision{}, nil, err
		}
		if !decision.Allowed {
			return decision, &rule, nil
		}
		if i == 0 || decision.Remaining < result.Remaining {
			result.Remaining = decision.Remaining
		}
	}

	return result, nil, nil
}

// checkRule runs the ATTEMPT_PRIMARY / ATTEMPT_FALLBACK state machine for a
// single rule.
func (e *Engine) checkRule(ctx context.Context, identity string, rule Rule) (Decision, error) {
	key := rule.CompositeKey(identity)

	start := time.Now()
	d, err := e.primary.CheckAndIncrement(ctx, key, rule.Requests, rule.Window, storage.Strategy(rule.Strategy), rule.Capacity, 1)
	e.sink.ObserveLatency(ctx, "primary", time.Since(start))

	if err == nil {
		return e.account(ctx, rule, identity, d), nil
	}

	logger.L().WarnContext(ctx, "rate limiter: primary storage error", "rule", rule.String(), "error", err)

	if e.cfg.GracefulDegradation && e.fallback != nil {
		logger.L().InfoContext(ctx, "rate limiter: falling back to local store", "rule", rule.String())
		d, err = e.fallback.CheckAndIncrement(ctx, key, rule.Requests, rule.Window, storage.Strategy(rule.Strategy), rule.Capacity, 1)
		if err == nil {
			return e.account(ctx, rule, identity, d), nil
		}
	}

	if e.cfg.FailOpen {
		return Decision{Allowed: true}, nil
	}

	logger.L().ErrorContext(ctx, "rate limiter: raising storage error", "rule", rule.String(), "error", err)
	return Decision{}, err
}

func (e *Engine) account(ctx context.Context, rule Rule, identity string, d storage.Decision) Decision {
	if d.Allowed {
		e.sink.LogAllowed(ctx, rule.String(), identity)
	} else {
		e.sink.LogViolation(ctx, rule.String(), identity, d.RetryAfter)
	}
	return Decision{
		Allowed:    d.Allowed,
		Remaining:  d.Remaining,
		RetryAfter: d.RetryAfter,
	}
}

// Close drains the remote connection pool and clears the local store.
// Subsequent Check calls fail with a ClosedError.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	if err := e.primary.Close(); err != nil {
		firstErr = err
	}
	if e.fallback != nil {
		if err := e.fallback.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package ratelimit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	rcerrors "github.com/lattice-run/ratecore/pkg/errors"
)

// Strategy identifies one of the four rate-limiting algorithms a Rule is
// evaluated with.
type Strategy string

const (
	StrategySlidingWindow Strategy = "sliding_window"
	StrategyFixedWindow   Strategy = "fixed_window"
	StrategyTokenBucket   Strategy = "token_bucket"
	StrategyLeakyBucket   Strategy = "leaky_bucket"
)

func (s Strategy) valid() bool {
	switch s {
	case StrategySlidingWindow, StrategyFixedWindow, StrategyTokenBucket, StrategyLeakyBucket:
		return true
	default:
		return false
	}
}

// DefaultKeyPrefix is used when a Rule is constructed without an explicit
// key prefix.
const DefaultKeyPrefix = "rl"

// Rule is an immutable rate limit: how many requests, over what window,
// evaluated by which strategy. Capacity defaults to Requests for the two
// bucket strategies, where it means the maximum token/level value rather
// than a per-window count.
type Rule struct {
	Requests      uint32
	Window        time.Duration
	Strategy      Strategy
	Capacity      uint32
	KeyPrefix     string
	originalLimit string // the "<N>/<period>" text, part of the composite key
}

// RuleOption customizes a Rule at construction time.
type RuleOption func(*Rule)

// WithCapacity overrides the bucket capacity for token/leaky bucket rules.
// Window-based strategies keep the value on the Rule but never use it.
func WithCapacity(capacity uint32) RuleOption {
	return func(r *Rule) { r.Capacity = capacity }
}

// WithKeyPrefix overrides the default "rl" key prefix.
func WithKeyPrefix(prefix string) RuleOption {
	return func(r *Rule) { r.KeyPrefix = prefix }
}

// NewRule parses a compact limit spec ("100/minute", "10/s", "5/2h") and
// builds a Rule for the given strategy. It is the only way to construct a
// valid Rule — the zero value is not usable.
func NewRule(limitSpec string, strategy Strategy, opts ...RuleOption) (Rule, error) {
	if !strategy.valid() {
		return Rule{}, rcerrors.NewConfigError("unknown rate limit strategy", "strategy", strategy)
	}

	requests, window, err := ParseLimit(limitSpec)
	if err != nil {
		return Rule{}, err
	}

	r := Rule{
		Requests:      requests,
		Window:        window,
		Strategy:      strategy,
		Capacity:      requests,
		KeyPrefix:     DefaultKeyPrefix,
		originalLimit: strings.ToLower(strings.TrimSpace(limitSpec)),
	}
	for _, opt := range opts {
		opt(&r)
	}
	if r.Capacity == 0 {
		r.Capacity = r.Requests
	}
	return r, nil
}

var periodPattern = regexp.MustCompile(`(?i)^(\d+)?(second|minute|hour|day|s|m|h|d)$`)

var unitSeconds = map[string]int64{
	"second": 1, "s": 1,
	"minute": 60, "m": 60,
	"hour": 3600, "h": 3600,
	"day": 86400, "d": 86400,
}

// ParseLimit translates a compact textual limit ("<N>/<period>") into a
// request count and a window duration (C1 — Limit Spec Parser). N is a
// positive integer. period is a unit word (second|minute|hour|day), a unit
// letter (s|m|h|d), or "<k><unit>" for a positive integer k (default 1).
// Parsing is case-insensitive. Any other shape returns a ConfigError.
func ParseLimit(spec string) (uint32, time.Duration, error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return 0, 0, rcerrors.NewConfigError(`limit spec must be "<N>/<period>"`, "limit", spec)
	}

	n, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil || n == 0 {
		return 0, 0, rcerrors.NewConfigError("limit requests must be a positive integer", "requests", parts[0])
	}

	period := strings.ToLower(strings.TrimSpace(parts[1]))
	m := periodPattern.FindStringSubmatch(period)
	if m == nil {
		return 0, 0, rcerrors.NewConfigError("unrecognized period in limit spec", "period", parts[1])
	}

	k := int64(1)
	if m[1] != "" {
		k, err = strconv.ParseInt(m[1], 10, 64)
		if err != nil || k <= 0 {
			return 0, 0, rcerrors.NewConfigError("period multiplier must be a positive integer", "period", parts[1])
		}
	}

	seconds, ok := unitSeconds[m[2]]
	if !ok {
		return 0, 0, rcerrors.NewConfigError("unrecognized period unit", "unit", m[2])
	}

	return uint32(n), time.Duration(k*seconds) * time.Second, nil
}

// CompositeKey builds the storage key under which this Rule's counter for
// identity is addressed: "{key_prefix}:{identity}:{original_limit_text}".
// Including the original limit text means changing a rule's rate produces
// a fresh counter with no manual invalidation step.
func (r Rule) CompositeKey(identity string) string {
	return fmt.Sprintf("%s:%s:%s", r.KeyPrefix, identity, r.originalLimit)
}

// String returns the rule in the canonical "<N>/<window>s" form — useful
// for logs and for the parser round-trip property.
func (r Rule) String() string {
	return fmt.Sprintf("%d/%ds", r.Requests, int64(r.Window.Seconds()))
}

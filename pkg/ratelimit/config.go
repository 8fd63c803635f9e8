package ratelimit

import (
	rcerrors "github.com/lattice-run/ratecore/pkg/errors"
)

// RuleSpec is the textual, config-file-friendly form of a Rule. Engine
// construction resolves each RuleSpec into an immutable Rule via ParseLimit
// (C1), since global_rules in the configuration record is a list of specs,
// not of already-parsed rules.
type RuleSpec struct {
	Limit     string `env:"LIMIT" validate:"required"`
	Strategy  string `env:"STRATEGY" env-default:"sliding_window"`
	Capacity  uint32 `env:"CAPACITY"`
	KeyPrefix string `env:"KEY_PREFIX" env-default:"rl"`
}

// resolve parses a RuleSpec into a Rule, returning a ConfigError on any
// malformed field.
func (s RuleSpec) resolve() (Rule, error) {
	strategy := Strategy(s.Strategy)
	opts := []RuleOption{WithKeyPrefix(s.KeyPrefix)}
	if s.Capacity > 0 {
		opts = append(opts, WithCapacity(s.Capacity))
	}
	return NewRule(s.Limit, strategy, opts...)
}

// RemoteConfig describes how the engine reaches the networked counter
// store (C4).
type RemoteConfig struct {
	Topology       string        `env:"TOPOLOGY" env-default:"single" validate:"oneof=single sentinel cluster"`
	Addrs          []string      `env:"ADDRS" env-separator:"," env-default:"localhost:6379"`
	DB             int           `env:"DB" env-default:"0"`
	Username       string        `env:"USERNAME"`
	Password       string        `env:"PASSWORD"`
	TLS            bool          `env:"TLS" env-default:"false"`
	PrimaryName    string        `env:"PRIMARY_NAME"`
	PoolSize       int           `env:"POOL_SIZE" env-default:"10"`
	TimeoutSeconds int           `env:"TIMEOUT_SECONDS" env-default:"1"`
	ConnectRetries int           `env:"CONNECT_RETRIES" env-default:"3"`
}

// EngineConfig is the configuration record (§6): the single construction
// input for an Engine.
type EngineConfig struct {
	Enabled             bool         `env:"RATECORE_ENABLED" env-default:"true"`
	Remote              RemoteConfig `env-prefix:"RATECORE_REMOTE_"`
	FailOpen            bool         `env:"RATECORE_FAIL_OPEN" env-default:"true"`
	GracefulDegradation bool         `env:"RATECORE_GRACEFUL_DEGRADATION" env-default:"true"`
	InMemoryFallback    bool         `env:"RATECORE_IN_MEMORY_FALLBACK" env-default:"false"`
	EmitHeaders         bool         `env:"RATECORE_EMIT_HEADERS" env-default:"true"`
	GlobalRules         []RuleSpec
}

// resolveRules parses every RuleSpec in cfg.GlobalRules, failing on the
// first malformed spec — rule parsing is fatal at construction time, never
// raised from Check.
func (cfg EngineConfig) resolveRules() ([]Rule, error) {
	rules := make([]Rule, 0, len(cfg.GlobalRules))
	for _, spec := range cfg.GlobalRules {
		rule, err := spec.resolve()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func validateRemote(r RemoteConfig) error {
	if len(r.Addrs) == 0 {
		return rcerrors.NewConfigError("remote config requires at least one address", "addrs", r.Addrs)
	}
	switch r.Topology {
	case "", "single", "sentinel", "cluster":
	default:
		return rcerrors.NewConfigError("unknown remote topology", "topology", r.Topology)
	}
	if r.Topology == "sentinel" && r.PrimaryName == "" {
		return rcerrors.NewConfigError("sentinel topology requires a primary name", "primary_name", r.PrimaryName)
	}
	return nil
}

package ratelimit

import "time"

// Decision is the engine-level outcome of Check: whether every rule
// admitted the request, how many requests remain (the smallest count among
// the rules when allowed, 0 when blocked), and how long the caller should
// wait before retrying. The blocking rule, if any, is returned by Check
// alongside the Decision.
type Decision struct {
	Allowed    bool
	Remaining  uint32
	RetryAfter time.Duration
}

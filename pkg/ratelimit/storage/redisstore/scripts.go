package redisstore

import goredis "github.com/redis/go-redis/v9"

// The four atomic scripts (C5). Each returns a three-element integer tuple
// {allowed, remaining, retry_after_seconds}. now is always passed in by the
// caller (never read server-side) so that failover between two redis
// primaries with clock skew can't corrupt the decision.
//
// Grounded on the teacher's pkg/api/ratelimit/adapters/redis/redis.go
// scripts, cross-checked against the original py_rate_guard/utils/lua.py
// for the exact tie-break and rounding rules this spec requires.

// slidingWindowScript implements §4.5 "Sliding window".
// KEYS[1]: composite key
// ARGV[1]: now_ms, ARGV[2]: window_ms, ARGV[3]: limit, ARGV[4]: increment
// ARGV[5]: per-insertion disambiguator prefix (to keep ZADD members unique)
var slidingWindowScript = goredis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local increment = tonumber(ARGV[4])
local disambiguator = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now_ms - window_ms)

local c = redis.call('ZCARD', key)

if c + increment <= limit then
    for i = 1, increment do
        redis.call('ZADD', key, now_ms, disambiguator .. '-' .. i)
    end
    redis.call('PEXPIRE', key, window_ms)
    return {1, limit - (c + increment), 0}
else
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local retry_after = 0
    if oldest and #oldest >= 2 then
        local t0 = tonumber(oldest[2])
        retry_after = math.max(0, math.ceil((t0 + window_ms - now_ms) / 1000))
    end
    return {0, 0, retry_after}
end
`)

// fixedWindowScript implements §4.5 "Fixed window".
// KEYS[1]: composite key
// ARGV[1]: window_s, ARGV[2]: limit, ARGV[3]: increment
var fixedWindowScript = goredis.NewScript(`
local key = KEYS[1]
local window_s = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local increment = tonumber(ARGV[3])

local v = tonumber(redis.call('GET', key)) or 0

if v + increment > limit then
    local ttl = redis.call('TTL', key)
    if ttl < 0 then ttl = window_s end
    return {0, 0, ttl}
end

local new_v = redis.call('INCRBY', key, increment)
if new_v == increment then
    redis.call('EXPIRE', key, window_s)
end

return {1, limit - new_v, 0}
`)

// tokenBucketScript implements §4.5 "Token bucket".
// KEYS[1]: composite key
// ARGV[1]: now_s, ARGV[2]: fill_rate, ARGV[3]: capacity, ARGV[4]: increment
var tokenBucketScript = goredis.NewScript(`
local key = KEYS[1]
local now_s = tonumber(ARGV[1])
local fill_rate = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local increment = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(data[1]) or capacity
local last_refill = tonumber(data[2]) or now_s

local elapsed = math.max(0, now_s - last_refill)
tokens = math.min(capacity, tokens + elapsed * fill_rate)

local allowed = 0
local retry_after = 0

if tokens >= increment then
    tokens = tokens - increment
    allowed = 1
else
    retry_after = math.ceil((increment - tokens) / fill_rate)
end

-- last_refill advances to now_s even when blocked: bounds monotonic drift
-- rather than re-accruing the same fractional token on every retry.
redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now_s)
redis.call('EXPIRE', key, math.ceil(capacity / fill_rate) + 10)

return {allowed, math.floor(tokens), retry_after}
`)

// leakyBucketScript implements §4.5 "Leaky bucket".
// KEYS[1]: composite key
// ARGV[1]: now_s, ARGV[2]: leak_rate, ARGV[3]: capacity, ARGV[4]: increment
var leakyBucketScript = goredis.NewScript(`
local key = KEYS[1]
local now_s = tonumber(ARGV[1])
local leak_rate = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local increment = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'level', 'last_leak')
local level = tonumber(data[1]) or 0
local last_leak = tonumber(data[2]) or now_s

local elapsed = math.max(0, now_s - last_leak)
level = math.max(0, level - elapsed * leak_rate)

local allowed = 0
local retry_after = 0

if level + increment <= capacity then
    level = level + increment
    allowed = 1
else
    retry_after = math.ceil((level + increment - capacity) / leak_rate)
end

redis.call('HMSET', key, 'level', level, 'last_leak', now_s)
redis.call('EXPIRE', key, math.ceil(capacity / leak_rate) + 10)

return {allowed, math.floor(capacity - level), retry_after}
`)

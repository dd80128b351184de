package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "artic_rate_limit_remaining",
		Help: "Requests remaining in the current upstream rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artic_rate_limit_blocks_total",
		Help: "Total number of requests blocked because the quota was exhausted",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artic_rate_limit_throttles_total",
		Help: "Total number of requests delayed because the quota was low",
	})
)

// ErrBlocked is returned by Wait when the quota is exhausted.
var ErrBlocked = errors.New("rate limit exhausted")

// DefaultResetWindow is assumed when a response omits X-RateLimit-Reset.
const DefaultResetWindow = 60 * time.Second

// ThrottleDelay is the pause applied in the warning band.
var ThrottleDelay = 1 * time.Second

// Tracker gates requests on the shared quota. A Tracker without a Redis
// client is disabled: it parses headers but stores nothing and never blocks.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// Enabled reports whether state is persisted.
func (t *Tracker) Enabled() bool {
	return t.redis != nil
}

// GetState returns the stored state, or a default healthy state when
// nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	if !t.Enabled() {
		return defaultState(), nil
	}

	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			t.logger.Debug().Msg("No rate limit state in Redis, assuming healthy")
			return defaultState(), nil
		}
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	resetTimestamp, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &State{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()
	return state, nil
}

// UpdateFromHeaders records the quota advertised by a response. Responses
// without the remaining header are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, err := stateFromHeaders(headers, time.Now())
	if err != nil || state == nil {
		return err
	}
	remain := state.Remaining
	rateLimitRemaining.Set(float64(remain))

	if !t.Enabled() {
		return nil
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	// Keys expire with the window so a crashed writer cannot block forever.
	ttl := state.ResetAt.Sub(state.LastUpdate) + time.Minute
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyRemaining, remain, ttl)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().Int("remaining", remain).Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().Int("remaining", remain).Time("reset_at", state.ResetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().Int("remaining", remain).Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}

	return nil
}

// Wait blocks for the throttle delay in the warning band and returns
// ErrBlocked when the quota is exhausted.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit exhausted - blocking request")
		rateLimitBlocksTotal.Inc()
		return ErrBlocked
	}

	if state.NeedsThrottling() {
		t.logger.Debug().Int("remaining", state.Remaining).Msg("Rate limit low - throttling request")
		rateLimitThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ThrottleDelay):
		}
	}

	return nil
}

// stateFromHeaders parses the quota headers as of now. It returns nil when
// the response carries no quota.
func stateFromHeaders(headers http.Header, now time.Time) (*State, error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	reset := DefaultResetWindow
	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		seconds, err := strconv.Atoi(resetStr)
		if err != nil {
			return nil, fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		reset = time.Duration(seconds) * time.Second
	}

	state := &State{
		Remaining:  remain,
		ResetAt:    now.Add(reset),
		LastUpdate: now,
	}
	state.UpdateHealth()
	return state, nil
}

func defaultState() *State {
	now := time.Now()
	return &State{
		Remaining:  defaultRemaining,
		ResetAt:    now.Add(DefaultResetWindow),
		LastUpdate: now,
		IsHealthy:  true,
	}
}

package seats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	seatHoldKeyPrefix = "seat_hold:"
	seatLockKeyPrefix = "seat_lock:"

	// seatLockTTL bounds how long a crashed process can keep a seat's
	// transition section blocked
	seatLockTTL = 5 * time.Second
)

// HoldManager owns the live Redis hold keys. The key's existence and TTL
// are the arbiter for who holds a seat; the database row only mirrors it.
type HoldManager struct {
	redis *redis.Client
}

// NewHoldManager creates a hold manager on the given Redis client
func NewHoldManager(redisClient *redis.Client) *HoldManager {
	return &HoldManager{
		redis: redisClient,
	}
}

// Lua script for atomic hold acquisition - prevents race conditions
const luaAcquireHold = `
-- KEYS[1] = seat_hold:<seat_id>
-- ARGV[1] = user_id
-- ARGV[2] = ttl_seconds

local holder = redis.call("GET", KEYS[1])
if holder and holder ~= ARGV[1] then
    return {0, holder}
end

-- Fresh grant or same-user re-request; either way the TTL restarts
redis.call("SET", KEYS[1], ARGV[1], "EX", tonumber(ARGV[2]))
return {1, ARGV[1]}
`

// Lua script for atomic hold release - only the owner's hold is deleted
const luaReleaseHold = `
-- KEYS[1] = seat_hold:<seat_id>
-- ARGV[1] = user_id

local holder = redis.call("GET", KEYS[1])
if not holder then
    return 0
end
if holder ~= ARGV[1] then
    return -1
end

redis.call("DEL", KEYS[1])
return 1
`

func holdKey(seatID uuid.UUID) string {
	return seatHoldKeyPrefix + seatID.String()
}

func lockKey(seatID uuid.UUID) string {
	return seatLockKeyPrefix + seatID.String()
}

// TryAcquire atomically grants the seat hold to userID for ttl. A repeat
// request by the current holder refreshes the TTL. Returns
// ErrSeatUnavailable when another user holds the seat.
func (h *HoldManager) TryAcquire(ctx context.Context, seatID, userID uuid.UUID, ttl time.Duration) error {
	if h.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	keys := []string{holdKey(seatID)}
	args := []interface{}{
		userID.String(),
		strconv.Itoa(int(ttl.Seconds())),
	}

	result, err := h.redis.EvalSha(ctx, luaAcquireHold, keys, args...).Result()
	if err != nil {
		// If script is not loaded, try to load and execute
		result, err = h.redis.Eval(ctx, luaAcquireHold, keys, args...).Result()
		if err != nil {
			return fmt.Errorf("failed to execute hold acquisition: %w", err)
		}
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return fmt.Errorf("unexpected result format from Lua script")
	}

	success, ok := resultArray[0].(int64)
	if !ok {
		return fmt.Errorf("invalid success flag in Lua script result")
	}

	if success == 0 {
		return ErrSeatUnavailable
	}

	return nil
}

// Release deletes the hold if userID still owns it. Returns ErrHoldExpired
// when no hold exists and ErrHoldMismatch when another user owns it.
func (h *HoldManager) Release(ctx context.Context, seatID, userID uuid.UUID) error {
	if h.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	keys := []string{holdKey(seatID)}
	args := []interface{}{userID.String()}

	result, err := h.redis.EvalSha(ctx, luaReleaseHold, keys, args...).Result()
	if err != nil {
		result, err = h.redis.Eval(ctx, luaReleaseHold, keys, args...).Result()
		if err != nil {
			return fmt.Errorf("failed to execute hold release: %w", err)
		}
	}

	code, ok := result.(int64)
	if !ok {
		return fmt.Errorf("unexpected result format from Lua script")
	}

	switch code {
	case 1:
		return nil
	case 0:
		return ErrHoldExpired
	case -1:
		return ErrHoldMismatch
	default:
		return fmt.Errorf("unexpected release code %d", code)
	}
}

// Drop removes the hold regardless of owner. Used by the single release
// path once the seat's transition lock is held.
func (h *HoldManager) Drop(ctx context.Context, seatID uuid.UUID) error {
	if h.redis == nil {
		return fmt.Errorf("redis client not available")
	}
	return h.redis.Del(ctx, holdKey(seatID)).Err()
}

// Holder returns the user currently holding the seat, or uuid.Nil when
// no live hold exists.
func (h *HoldManager) Holder(ctx context.Context, seatID uuid.UUID) (uuid.UUID, error) {
	if h.redis == nil {
		return uuid.Nil, fmt.Errorf("redis client not available")
	}

	val, err := h.redis.Get(ctx, holdKey(seatID)).Result()
	if err == redis.Nil {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read hold: %w", err)
	}

	holder, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt hold value %q: %w", val, err)
	}

	return holder, nil
}

// AcquireLock takes the short-lived per-seat transition lock. Every state
// transition for a seat runs inside this lock so release and promotion
// never interleave.
func (h *HoldManager) AcquireLock(ctx context.Context, seatID uuid.UUID) (bool, error) {
	if h.redis == nil {
		return false, fmt.Errorf("redis client not available")
	}

	ok, err := h.redis.SetNX(ctx, lockKey(seatID), "1", seatLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire seat lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock frees the per-seat transition lock
func (h *HoldManager) ReleaseLock(ctx context.Context, seatID uuid.UUID) {
	if h.redis == nil {
		return
	}
	h.redis.Del(ctx, lockKey(seatID))
}

// WithSeatLock runs fn inside the seat's transition lock, retrying briefly
// when another transition is in flight.
func (h *HoldManager) WithSeatLock(ctx context.Context, seatID uuid.UUID, fn func() error) error {
	const (
		maxAttempts = 10
		retryDelay  = 50 * time.Millisecond
	)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		acquired, err := h.AcquireLock(ctx, seatID)
		if err != nil {
			return err
		}
		if acquired {
			defer h.ReleaseLock(ctx, seatID)
			return fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return fmt.Errorf("seat %s transition lock is busy", seatID)
}

// PreloadScripts loads Lua scripts into Redis for better performance
func (h *HoldManager) PreloadScripts(ctx context.Context) error {
	if h.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	_, err := h.redis.ScriptLoad(ctx, luaAcquireHold).Result()
	if err != nil {
		return fmt.Errorf("failed to load hold acquisition script: %w", err)
	}

	_, err = h.redis.ScriptLoad(ctx, luaReleaseHold).Result()
	if err != nil {
		return fmt.Errorf("failed to load hold release script: %w", err)
	}

	return nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"
)

// lockTTL bounds how long a crashed replica can keep a job wedged. A lock
// past its expiry is treated as free and stolen by the next acquirer.
const lockTTL = 15 * time.Minute

// lockKey derives the advisory lock record id from a schedule id.
func lockKey(scheduleID string) string {
	h := fnv.New64a()
	h.Write([]byte(scheduleID))
	return fmt.Sprintf("%016x", h.Sum64())
}

// QueryAcquireLock attempts to take the advisory lock for a schedule.
// Non-blocking: returns ErrLockHeld when another holder owns a live lock.
func (c *Client) QueryAcquireLock(ctx context.Context, scheduleID, holder string) error {
	key := lockKey(scheduleID)
	now := time.Now().UTC()

	// Clear an expired lock left behind by a crashed holder.
	_, err := query[any](ctx, c, `
		DELETE type::record("schedule_locks", $key) WHERE expires_at <= $now
	`, map[string]any{"key": key, "now": now})
	if err != nil {
		return fmt.Errorf("reap expired lock: %w", err)
	}

	// CREATE on an existing id fails; that collision is the contention signal.
	_, err = query[any](ctx, c, `
		CREATE type::record("schedule_locks", $key) SET
			schedule_id = $schedule_id,
			holder = $holder,
			acquired_at = $now,
			expires_at = $expires
	`, map[string]any{
		"key":         key,
		"schedule_id": scheduleID,
		"holder":      holder,
		"now":         now,
		"expires":     now.Add(lockTTL),
	})
	if err != nil {
		if errors.Is(wrapQueryError(err), ErrAlreadyExists) {
			return ErrLockHeld
		}
		return fmt.Errorf("acquire lock: %w", err)
	}
	return nil
}

// QueryReleaseLock releases the advisory lock for a schedule. Only the
// current holder's record is removed.
func (c *Client) QueryReleaseLock(ctx context.Context, scheduleID, holder string) error {
	_, err := query[any](ctx, c, `
		DELETE type::record("schedule_locks", $key) WHERE holder = $holder
	`, map[string]any{"key": lockKey(scheduleID), "holder": holder})
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

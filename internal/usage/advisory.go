// Package usage keeps the two generation counters. They are intentionally
// independent: the advisory counter is a device-local nudge shown to
// anonymous users, while Quota is the authoritative per-user limit enforced
// in PostgreSQL. Neither reads the other.
package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const advisoryPrefix = "advisory_usage:"

// Counter is the slice of the device-local key/value store the advisory
// counter needs. *local.KV satisfies it; tests substitute a map fake.
type Counter interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Advisory tracks cosmetic per-device generation counts.
type Advisory struct {
	kv Counter
}

func NewAdvisory(kv Counter) *Advisory {
	return &Advisory{kv: kv}
}

// Count returns the device's current counter value.
func (a *Advisory) Count(ctx context.Context, deviceID string) (int, error) {
	raw, ok, err := a.kv.Get(ctx, advisoryPrefix+deviceID)
	if err != nil {
		return 0, fmt.Errorf("read advisory counter: %w", err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Increment bumps and returns the device's counter.
func (a *Advisory) Increment(ctx context.Context, deviceID string) (int, error) {
	n, err := a.Count(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	n++
	if err := a.kv.Put(ctx, advisoryPrefix+deviceID, strconv.Itoa(n)); err != nil {
		return 0, fmt.Errorf("write advisory counter: %w", err)
	}
	return n, nil
}

// ResetAll clears every device counter. Run daily by the maintenance
// scheduler.
func (a *Advisory) ResetAll(ctx context.Context) error {
	keys, err := a.kv.Keys(ctx, advisoryPrefix)
	if err != nil {
		return fmt.Errorf("list advisory counters: %w", err)
	}
	for _, key := range keys {
		if err := a.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("reset advisory counter %q: %w", key, err)
		}
	}
	return nil
}

// Package guardrails provides the single writer leases around rollup stages
package guardrails

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pulseboard/internal/core/period"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/store"
	"pulseboard/internal/services/rollup/domain"
)

// ErrLeaseHeld signals another worker owns the (organization, stage) already
var ErrLeaseHeld = errors.New("rollup: stage lease already held")

// Lock backends accepted by New
const (
	BackendPG    = "pg"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Owner returns the lease owner label: name, pid and a random suffix
func Owner(name string) string {
	return fmt.Sprintf("%s:%d:%s", name, os.Getpid(), uuid.NewString()[:8])
}

func toInterval(d time.Duration) string { return fmt.Sprintf("%d seconds", int64(d/time.Second)) }

// MakePGLease claims rollup_leases rows; an expired claim is taken over
func MakePGLease(db store.TxRunner, owner string, ttl time.Duration) domain.Lease {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return func(ctx context.Context, org string, stage period.Granularity, do func(context.Context) error) error {
		var claimed bool
		if err := db.Tx(ctx, func(q store.RowQuerier) error {
			_, err := store.One(ctx, q, scanBool, `
				INSERT INTO rollup_leases (organization_id, stage, owner, claimed_at, expires_at)
				VALUES ($1, $2, $3, now(), now() + ($4)::interval)
				ON CONFLICT (organization_id, stage) DO UPDATE
				   SET owner = EXCLUDED.owner, claimed_at = EXCLUDED.claimed_at, expires_at = EXCLUDED.expires_at
				 WHERE rollup_leases.expires_at <= now()
				RETURNING true
			`, org, string(stage), owner, toInterval(ttl))
			switch {
			case err == nil:
				claimed = true
			case errors.Is(err, perr.ErrNotFound):
			default:
				return err
			}
			return nil
		}); err != nil {
			return fmt.Errorf("claim lease %s/%s: %w", org, stage, err)
		}
		if !claimed {
			return ErrLeaseHeld
		}

		defer func() {
			_, _ = db.Exec(context.WithoutCancel(ctx), `
				UPDATE rollup_leases SET expires_at = now()
				 WHERE organization_id = $1 AND stage = $2 AND owner = $3
			`, org, string(stage), owner)
		}()
		return do(ctx)
	}
}

func scanBool(r store.Row) (bool, error) {
	var b bool
	err := r.Scan(&b)
	return b, err
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// LeaseKey is the redis key guarding (org, stage)
func LeaseKey(org string, stage period.Granularity) string {
	return "lock:rollup:" + org + ":" + string(stage)
}

// MakeRedisLease uses SET NX with a ttl and releases only its own claim
func MakeRedisLease(rdb *redis.Client, owner string, ttl time.Duration) domain.Lease {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return func(ctx context.Context, org string, stage period.Granularity, do func(context.Context) error) error {
		key := LeaseKey(org, stage)
		// each claim gets its own token so a stale release never frees a newer holder
		token := owner + ":" + uuid.NewString()
		ok, err := rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("claim lease %s: %w", key, err)
		}
		if !ok {
			return ErrLeaseHeld
		}
		defer func() {
			_ = releaseScript.Run(context.WithoutCancel(ctx), rdb, []string{key}, token).Err()
		}()
		return do(ctx)
	}
}

// NoLease runs do directly; single process deployments and tests
func NoLease(ctx context.Context, _ string, _ period.Granularity, do func(context.Context) error) error {
	return do(ctx)
}

// New picks a backend by name
func New(backend string, db store.TxRunner, rdb *redis.Client, owner string, ttl time.Duration) (domain.Lease, error) {
	switch backend {
	case BackendPG, "":
		if db == nil {
			return nil, perr.InvalidArgf("lease backend pg needs postgres")
		}
		return MakePGLease(db, owner, ttl), nil
	case BackendRedis:
		if rdb == nil {
			return nil, perr.InvalidArgf("lease backend redis needs SERVICE_REDIS_ENABLED")
		}
		return MakeRedisLease(rdb, owner, ttl), nil
	case BackendNone:
		return NoLease, nil
	}
	return nil, perr.InvalidArgf("unknown lease backend %q", backend)
}

package pg

import (
	"context"
	"time"

	"authgate.io/internal/auth"
)

// Revocations is the shared token blacklist. Every API instance consults
// the same table, so a logout on one instance is observed by all of them
// on the next verification (read-committed is enough: the insert commits
// before the revoking request returns).
type Revocations struct {
	store *Store
}

// NewRevocations builds the blacklist on the store's handle.
func NewRevocations(store *Store) *Revocations {
	return &Revocations{store: store}
}

var _ auth.RevocationStore = (*Revocations)(nil)

// Revoke inserts the jti. The "on conflict do nothing" insert is the
// atomic check-and-revoke: exactly one caller observes first=true, which
// refresh rotation relies on to pick a single winner among concurrent
// refreshes of the same token.
func (r *Revocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	res, err := r.store.db.ExecContext(ctx, `
		insert into revoked_tokens (jti, expires_at)
		values ($1, $2)
		on conflict (jti) do nothing
	`, jti, expiresAt.UTC())
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.store.db.QueryRowContext(ctx,
		`select exists(select 1 from revoked_tokens where jti = $1)`, jti).Scan(&revoked)
	if err != nil {
		return false, mapErr(err)
	}
	return revoked, nil
}

// PurgeExpired drops entries whose tokens are past their original
// expiry. Purging never affects correctness: the codec already rejects
// those tokens on expiry grounds.
func (r *Revocations) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.store.db.ExecContext(ctx,
		`delete from revoked_tokens where expires_at < $1`, now.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

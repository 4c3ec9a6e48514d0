package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AcquireLease takes the named lease for owner until ttl elapses. The same
// owner may renew; an expired lease may be taken over by anyone.
func (s *Store) AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leases (name, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE leases.owner = excluded.owner OR leases.expires_at <= ?
	`, name, owner, now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: acquire lease %s: %w", ErrIndexUnavailable, name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: acquire lease %s: %w", ErrIndexUnavailable, name, err)
	}
	if n == 0 {
		holder, _ := s.leaseHolder(ctx, name)
		return fmt.Errorf("%w: %s (held by %s)", ErrLeaseHeld, name, holder)
	}
	return nil
}

// ReleaseLease drops the lease if owner still holds it
func (s *Store) ReleaseLease(ctx context.Context, name, owner string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM leases WHERE name = ? AND owner = ?`, name, owner); err != nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}

// WaitLease retries AcquireLease every poll interval until it succeeds, wait
// elapses or ctx is done
func (s *Store) WaitLease(ctx context.Context, name, owner string, ttl, wait, poll time.Duration) error {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	deadline := time.Now().Add(wait)
	for {
		err := s.AcquireLease(ctx, name, owner, ttl)
		if err == nil || !errors.Is(err, ErrLeaseHeld) || time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

func (s *Store) leaseHolder(ctx context.Context, name string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner FROM leases WHERE name = ?`, name).Scan(&owner)
	return owner, err
}

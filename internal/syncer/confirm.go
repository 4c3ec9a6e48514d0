package syncer

import "context"

// Confirmer approves the removal of sources from the knowledge store
type Confirmer interface {
	Confirm(ctx context.Context, sourceIDs []string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, sourceIDs []string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, ids []string) (bool, error) { return f(ctx, ids) }

// AutoConfirm approves every removal
var AutoConfirm Confirmer = ConfirmFunc(func(context.Context, []string) (bool, error) { return true, nil })

// NeverConfirm declines every removal; the sources stay indexed
var NeverConfirm Confirmer = ConfirmFunc(func(context.Context, []string) (bool, error) { return false, nil })

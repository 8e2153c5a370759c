package database

import "context"

// Source resolves the handle at the moment a repository needs it, so a store
// that is unreachable surfaces on the first operation instead of at wiring.
// Both *Provider and *Handle satisfy it.
type Source interface {
	Get(ctx context.Context) (*Handle, error)
}

// Get lets an already opened handle act as its own Source.
func (h *Handle) Get(context.Context) (*Handle, error) { return h, nil }

package settings

import (
	"context"
	"fmt"
	"slices"
)

// Committer writes a resolved identifier unit plus defaults as one update
type Committer struct {
	store Store
}

// NewCommitter creates a Committer over store
func NewCommitter(store Store) *Committer {
	return &Committer{store: store}
}

// Commit validates ids and merges them with d in a single store update
func (c *Committer) Commit(ctx context.Context, ids Identifiers, d Defaults) error {
	if err := ids.Validate(); err != nil {
		return err
	}

	tracking := slices.Clone(d.TrackingDisabled)
	if tracking == nil {
		tracking = []string{}
	}

	update := Update{
		Identifiers:      &ids,
		UseSnippet:       &d.UseSnippet,
		AnonymizeIP:      &d.AnonymizeIP,
		TrackingDisabled: tracking,
	}
	if err := c.store.Merge(ctx, update); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}

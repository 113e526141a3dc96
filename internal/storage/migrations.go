package storage

import (
	"context"
	"fmt"
)

// Migrate creates the sims table and its unique number index
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&SimCard{}); err != nil {
		return fmt.Errorf("migration sims failed: %w", err)
	}
	return nil
}

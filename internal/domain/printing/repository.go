package printing

import (
	"context"

	"github.com/google/uuid"
)

// DocumentJobRepository holds open dialog sessions. Entries are transient:
// implementations expire them and Delete is called when the dialog closes.
type DocumentJobRepository interface {
	// FindByID returns shared.ErrNotFound when the session is unknown or expired
	FindByID(ctx context.Context, id uuid.UUID) (*DocumentJob, error)
	// Save inserts or replaces the session
	Save(ctx context.Context, job *DocumentJob) error
	// Delete removes the session; deleting an unknown ID is not an error
	Delete(ctx context.Context, id uuid.UUID) error
}

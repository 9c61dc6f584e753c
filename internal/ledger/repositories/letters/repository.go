// Package letters stores letters and their recipient lists. The same queries
// serve PostgreSQL and SQLite; only the placeholder style differs.
package letters

import (
	"context"

	"github.com/dmitrijs2005/sealpost/internal/ledger/models"
)

type Repository interface {
	// Create inserts the letter row and returns the assigned id.
	Create(ctx context.Context, l *models.Letter) (uint64, error)
	AddRecipients(ctx context.Context, letterID uint64, recipients []string) error
	Get(ctx context.Context, id uint64) (*models.Letter, error)
	ListBySender(ctx context.Context, sender string) ([]*models.Letter, error)
	ListByRecipient(ctx context.Context, recipient string) ([]*models.Letter, error)
}

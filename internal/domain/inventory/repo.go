package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, i *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, i *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter) ([]*Item, int, error)
	// ListByNameAndCategory returns items whose name contains name,
	// case-insensitively, ordered by name.
	ListByNameAndCategory(ctx context.Context, name, category string) ([]*Item, error)
	ListByStatus(ctx context.Context, statuses ...string) ([]*Item, error)
	ListExpired(ctx context.Context, now time.Time) ([]*Item, error)
	// RecordUsage decrements quantity by qty only if enough stock is on hand.
	RecordUsage(ctx context.Context, id uuid.UUID, qty int) (*Item, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
}

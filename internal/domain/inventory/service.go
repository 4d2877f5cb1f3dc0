package inventory

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/db"
	"github.com/kanishkgandecha/medilink/internal/platform/metrics"
	"github.com/kanishkgandecha/medilink/internal/platform/notification"
)

// Notifier delivers stock alerts.
type Notifier interface {
	Notify(ctx context.Context, kind string, data map[string]string, payload interface{}) error
}

type Service struct {
	repo     Repository
	tx       db.TxRunner
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, notifier: notifier, logger: logger, now: time.Now}
}

func (s *Service) CreateItem(ctx context.Context, i *Item) error {
	if err := i.Validate(); err != nil {
		return apperr.Invalid(err)
	}
	i.RecomputeStatus(s.now())
	if err := s.repo.Create(ctx, i); err != nil {
		return err
	}
	if i.NeedsReorder() {
		s.alert(ctx, i)
	}
	return nil
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateItem(ctx context.Context, i *Item) error {
	existing, err := s.repo.GetByID(ctx, i.ID)
	if err != nil {
		return err
	}
	if err := i.Validate(); err != nil {
		return apperr.Invalid(err)
	}
	i.RecomputeStatus(s.now())
	if err := s.repo.Update(ctx, i); err != nil {
		return err
	}
	if i.NeedsReorder() && !existing.NeedsReorder() {
		s.alert(ctx, i)
	}
	return nil
}

func (s *Service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, f Filter) ([]*Item, int, error) {
	return s.repo.List(ctx, f)
}

// RecordUsage withdraws stock and re-derives the item status. An item that
// crosses into low-stock or out-of-stock triggers a stock alert.
func (s *Service) RecordUsage(ctx context.Context, id uuid.UUID, u Usage) (*Item, error) {
	if err := u.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}

	var item *Item
	var crossed bool
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.RecordUsage(ctx, id, u.Quantity)
		if err != nil {
			return err
		}
		before := item.Status
		wasReorder := item.NeedsReorder()
		item.RecomputeStatus(s.now())
		crossed = item.NeedsReorder() && !wasReorder
		if item.Status == before {
			return nil
		}
		return s.repo.SetStatus(ctx, item.ID, item.Status)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("item_id", id.String()).
		Int("quantity", u.Quantity).
		Int("remaining", item.Quantity).
		Str("reason", u.Reason).
		Msg("inventory usage recorded")

	if crossed {
		s.alert(ctx, item)
	}
	return item, nil
}

// ListLowStock returns items at or below their reorder level.
func (s *Service) ListLowStock(ctx context.Context) ([]*Item, error) {
	return s.repo.ListByStatus(ctx, StatusLowStock, StatusOutOfStock)
}

func (s *Service) ListExpired(ctx context.Context) ([]*Item, error) {
	return s.repo.ListExpired(ctx, s.now())
}

func (s *Service) alert(ctx context.Context, i *Item) {
	metrics.RecordStockAlert(i.Status)
	if s.notifier == nil {
		return
	}
	data := map[string]string{
		"name":          i.Name,
		"status":        i.Status,
		"quantity":      strconv.Itoa(i.Quantity),
		"reorder_level": strconv.Itoa(i.ReorderLevel),
	}
	if err := s.notifier.Notify(ctx, notification.KindLowStock, data, i); err != nil {
		s.logger.Warn().Err(err).Str("item_id", i.ID.String()).Msg("stock alert delivery failed")
	}
}

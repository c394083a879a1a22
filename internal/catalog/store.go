package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packfinderz-shopper/pkg/db"
	"github.com/angelmondragon/packfinderz-shopper/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
	"github.com/angelmondragon/packfinderz-shopper/pkg/stream"
)

const insertBatchSize = 200

type txRunner interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StoreParams configure the catalog cache store.
type StoreParams struct {
	DB     txRunner
	Logger *logger.Logger
	Now    func() time.Time
}

// Store is the durable local mirror of the remote catalog. Reads are served
// from a live stream primed from the table and republished after every
// committed replace.
type Store struct {
	db   txRunner
	logg *logger.Logger
	now  func() time.Time

	writeMu sync.Mutex
	all     *stream.Value[[]Product]
}

// NewStore loads the cached catalog and returns a store serving it.
func NewStore(ctx context.Context, params StoreParams) (*Store, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		db:   params.DB,
		logg: logg,
		now:  now,
	}
	products, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	s.all = stream.NewValue(products, stream.WithCopy(cloneProducts))
	return s, nil
}

// GetAll returns the live catalog in upstream order.
func (s *Store) GetAll() stream.Source[[]Product] {
	return s.all
}

// GetByCategory returns a live view of products whose category matches
// exactly. stop detaches the view.
func (s *Store) GetByCategory(category string) (stream.Source[[]Product], func()) {
	return stream.Map[[]Product](s.all, func(products []Product) []Product {
		return byCategory(products, category)
	}, stream.WithCopy(cloneProducts))
}

// GetByID returns the cached product or nil when the id is unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*Product, error) {
	var row models.CatalogProduct
	if err := s.db.DB().WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "get product")
	}
	product := fromModel(row)
	return &product, nil
}

// ListByCategory queries the table for one category.
func (s *Store) ListByCategory(ctx context.Context, category string) ([]Product, error) {
	var rows []models.CatalogProduct
	if err := s.db.DB().WithContext(ctx).
		Where("category = ?", category).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "list products by category")
	}
	return fromModels(rows), nil
}

// Count returns the number of cached products.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.DB().WithContext(ctx).Model(&models.CatalogProduct{}).Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStore, err, "count products")
	}
	return count, nil
}

// LastSyncedAt reports when the catalog was last replaced.
func (s *Store) LastSyncedAt(ctx context.Context) (time.Time, bool, error) {
	var state models.CatalogSyncState
	if err := s.db.DB().WithContext(ctx).First(&state, "sync_key = ?", models.CatalogSyncStateKey).Error; err != nil {
		if db.IsNotFound(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, pkgerrors.Wrap(pkgerrors.CodeStore, err, "read sync state")
	}
	return state.LastSyncedAt, true, nil
}

// ReplaceAll swaps the whole catalog for products in one transaction. The
// live stream only changes after commit; on failure nothing changes.
func (s *Store) ReplaceAll(ctx context.Context, products []Product) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	syncedAt := s.now().UTC()
	rows := make([]models.CatalogProduct, 0, len(products))
	for i, product := range products {
		rows = append(rows, toModel(product, i, syncedAt))
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.CatalogProduct{}).Error; err != nil {
			return fmt.Errorf("clear catalog: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(&rows, insertBatchSize).Error; err != nil {
				return fmt.Errorf("insert catalog: %w", err)
			}
		}
		state := models.CatalogSyncState{
			Key:          models.CatalogSyncStateKey,
			LastSyncedAt: syncedAt,
			ProductCount: len(rows),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sync_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_synced_at", "product_count"}),
		}).Create(&state).Error; err != nil {
			return fmt.Errorf("record sync state: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "detail", pkgerrors.Dump(err)), "catalog replace failed", err)
		return replaceFailed(err)
	}

	s.all.Set(cloneProducts(products))
	return nil
}

// replaceFailed flags a full disk or database so callers can tell it apart
// from a transient write failure.
func replaceFailed(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeStore, err, "replace catalog").
		WithDetails(map[string]any{"storage_full": pkgerrors.IsStorageFull(err)})
}

func (s *Store) list(ctx context.Context) ([]Product, error) {
	var rows []models.CatalogProduct
	if err := s.db.DB().WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "load catalog")
	}
	return fromModels(rows), nil
}

func byCategory(products []Product, category string) []Product {
	out := make([]Product, 0, len(products))
	for _, product := range products {
		if product.Category == category {
			out = append(out, product)
		}
	}
	return out
}

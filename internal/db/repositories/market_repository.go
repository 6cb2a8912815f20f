// Package repositories implements the durable mirror:
// gorm-backed CRUD for the markets/orders tables, kept in lock-step with
// the in-memory hot store by internal/store, plus a handful of raw-SQL
// aggregate queries via sqlx for the read-mostly stats endpoints.
package repositories

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/abdoElHodaky/clobcore/internal/db/models"
	"github.com/abdoElHodaky/clobcore/internal/domain"
)

// MarketRepository persists domain.Market rows.
type MarketRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMarketRepository(db *gorm.DB, logger *zap.Logger) *MarketRepository {
	return &MarketRepository{db: db, logger: logger}
}

func toModel(m *domain.Market) *models.Market {
	return &models.Market{
		MarketID:      m.MarketID,
		ConditionID:   m.ConditionID,
		Question:      m.Question,
		Creator:       m.Creator,
		YesPositionID: m.YesPositionID,
		NoPositionID:  m.NoPositionID,
		YesPrice:      float64(m.YesPrice),
		NoPrice:       float64(m.NoPrice),
		Volume24h:     float64(m.Volume24h),
		CreatedAt:     m.CreatedAt,
		Resolved:      m.Resolved,
		Outcome:       m.Outcome,
	}
}

func fromModel(m *models.Market) *domain.Market {
	return &domain.Market{
		MarketID:      m.MarketID,
		ConditionID:   m.ConditionID,
		Question:      m.Question,
		Creator:       m.Creator,
		YesPositionID: m.YesPositionID,
		NoPositionID:  m.NoPositionID,
		YesPrice:      int64(m.YesPrice),
		NoPrice:       int64(m.NoPrice),
		Volume24h:     int64(m.Volume24h),
		CreatedAt:     m.CreatedAt,
		Resolved:      m.Resolved,
		Outcome:       m.Outcome,
	}
}

// Upsert inserts or updates a market row.
func (r *MarketRepository) Upsert(ctx context.Context, m *domain.Market) error {
	row := toModel(m)
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		r.logger.Error("failed to upsert market", zap.Error(err), zap.String("market_id", m.MarketID))
		return err
	}
	return nil
}

// UpdatePrices updates just the price/volume columns, the only fields the
// matching engine mutates on a market.
func (r *MarketRepository) UpdatePrices(ctx context.Context, marketID string, yesPrice, noPrice, volume24h int64) error {
	err := r.db.WithContext(ctx).Model(&models.Market{}).
		Where("market_id = ?", marketID).
		Updates(map[string]interface{}{
			"yes_price":  float64(yesPrice),
			"no_price":   float64(noPrice),
			"volume_24h": float64(volume24h),
		}).Error
	if err != nil {
		r.logger.Error("failed to update market prices", zap.Error(err), zap.String("market_id", marketID))
	}
	return err
}

// FindByID loads a single market, returning (nil, nil) if absent.
func (r *MarketRepository) FindByID(ctx context.Context, marketID string) (*domain.Market, error) {
	var row models.Market
	err := r.db.WithContext(ctx).Where("market_id = ?", marketID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromModel(&row), nil
}

// FindAll loads every market for restoreFromPersistence.
func (r *MarketRepository) FindAll(ctx context.Context) ([]*domain.Market, error) {
	var rows []models.Market
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Market, 0, len(rows))
	for i := range rows {
		out = append(out, fromModel(&rows[i]))
	}
	return out, nil
}

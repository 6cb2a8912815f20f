package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/abdoElHodaky/clobcore/internal/db/models"
	"github.com/abdoElHodaky/clobcore/internal/domain"
)

// OrderRepository persists domain.Order rows via gorm and answers the
// aggregate read queries the admin/stats endpoints need via sqlx, which
// is a better fit than gorm's query builder for GROUP BY aggregates.
type OrderRepository struct {
	db     *gorm.DB
	sqlx   *sqlx.DB
	logger *zap.Logger
}

func NewOrderRepository(db *gorm.DB, sqlxDB *sqlx.DB, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{db: db, sqlx: sqlxDB, logger: logger}
}

func orderToModel(o *domain.Order) *models.Order {
	row := &models.Order{
		OrderID:         o.OrderID,
		Maker:           o.Maker,
		MarketID:        o.MarketID,
		ConditionID:     o.ConditionID,
		MakerPositionID: o.MakerPositionID,
		TakerPositionID: o.TakerPositionID,
		Side:            string(o.Side),
		Price:           float64(o.Price),
		Size:            float64(o.Size),
		FilledSize:      float64(o.FilledSize),
		RemainingSize:   float64(o.RemainingSize),
		Status:          string(o.Status),
		Salt:            o.Salt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Signature:       o.Signature,
		PublicKey:       o.PublicKey,
	}
	if o.Expiration != 0 {
		exp := o.Expiration
		row.Expiration = &exp
	}
	return row
}

func orderFromModel(row *models.Order) *domain.Order {
	o := &domain.Order{
		OrderID:         row.OrderID,
		Maker:           row.Maker,
		MarketID:        row.MarketID,
		ConditionID:     row.ConditionID,
		MakerPositionID: row.MakerPositionID,
		TakerPositionID: row.TakerPositionID,
		Side:            domain.Side(row.Side),
		Price:           int64(row.Price),
		Size:            int64(row.Size),
		FilledSize:      int64(row.FilledSize),
		RemainingSize:   int64(row.RemainingSize),
		Status:          domain.OrderStatus(row.Status),
		Salt:            row.Salt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		Signature:       row.Signature,
		PublicKey:       row.PublicKey,
	}
	if row.Expiration != nil {
		o.Expiration = *row.Expiration
	}
	return o
}

// Upsert inserts or updates an order row; called on every state change so
// the mirror never drifts from the hot store.
func (r *OrderRepository) Upsert(ctx context.Context, o *domain.Order) error {
	if err := r.db.WithContext(ctx).Save(orderToModel(o)).Error; err != nil {
		r.logger.Error("failed to upsert order", zap.Error(err), zap.String("order_id", o.OrderID))
		return err
	}
	return nil
}

// FindByID returns (nil, nil) if the order doesn't exist.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var row models.Order
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return orderFromModel(&row), nil
}

// FindNonTerminal loads every order not in a terminal state, for
// restoreFromPersistence.
func (r *OrderRepository) FindNonTerminal(ctx context.Context) ([]*domain.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(domain.OrderOpen), string(domain.OrderPartiallyFilled)}).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Order, 0, len(rows))
	for i := range rows {
		out = append(out, orderFromModel(&rows[i]))
	}
	return out, nil
}

// StatusCounts aggregates order counts per status (every status, terminal
// ones included) for a market,
// backing GET /api/markets/{id}/stats.
func (r *OrderRepository) StatusCounts(ctx context.Context, marketID string) (map[string]int, error) {
	if r.sqlx == nil {
		return map[string]int{}, nil
	}
	rows, err := r.sqlx.QueryxContext(ctx,
		`SELECT status, COUNT(*) AS cnt FROM orders WHERE market_id = $1 GROUP BY status`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var cnt int
		if err := rows.Scan(&status, &cnt); err != nil {
			return nil, err
		}
		out[status] = cnt
	}
	return out, rows.Err()
}

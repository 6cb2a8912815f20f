package models

// Order mirrors internal/domain.Order for persistence. Prices and sizes
// are stored as float64 columns even though the hot path keeps them as
// int64 micro-sats/units; the repository converts at the boundary.
type Order struct {
	OrderID         string  `gorm:"primaryKey;column:order_id;type:varchar(64)"`
	Maker           string  `gorm:"column:maker;type:varchar(128);index"`
	MarketID        string  `gorm:"column:market_id;type:varchar(64);index"`
	ConditionID     string  `gorm:"column:condition_id;type:varchar(64)"`
	MakerPositionID string  `gorm:"column:maker_position_id;type:varchar(64)"`
	TakerPositionID string  `gorm:"column:taker_position_id;type:varchar(64)"`
	Side            string  `gorm:"column:side;type:varchar(4)"`
	Price           float64 `gorm:"column:price"`
	Size            float64 `gorm:"column:size"`
	FilledSize      float64 `gorm:"column:filled_size"`
	RemainingSize   float64 `gorm:"column:remaining_size"`
	Status          string  `gorm:"column:status;type:varchar(20);index"`
	Salt            string  `gorm:"column:salt;type:varchar(40)"`
	Expiration      *int64  `gorm:"column:expiration"`
	CreatedAt       int64   `gorm:"column:created_at"`
	UpdatedAt       int64   `gorm:"column:updated_at"`
	Signature       string  `gorm:"column:signature;type:varchar(130)"`
	PublicKey       string  `gorm:"column:public_key;type:varchar(80)"`
}

func (Order) TableName() string { return "orders" }

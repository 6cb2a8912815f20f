// Package models holds the gorm row shapes for the durable mirror: one
// table for markets, one for orders, kept in lock-step with the in-memory
// hot store.
package models

// Market mirrors internal/domain.Market for persistence.
type Market struct {
	MarketID      string `gorm:"primaryKey;column:market_id;type:varchar(64)"`
	ConditionID   string `gorm:"column:condition_id;type:varchar(64);index"`
	Question      string `gorm:"column:question;type:text"`
	Creator       string `gorm:"column:creator;type:varchar(128);index"`
	YesPositionID string `gorm:"column:yes_position_id;type:varchar(64)"`
	NoPositionID  string `gorm:"column:no_position_id;type:varchar(64)"`
	YesPrice      float64 `gorm:"column:yes_price"`
	NoPrice       float64 `gorm:"column:no_price"`
	Volume24h     float64 `gorm:"column:volume_24h"`
	CreatedAt     int64   `gorm:"column:created_at"`
	Resolved      bool    `gorm:"column:resolved;index"`
	Outcome       *int    `gorm:"column:outcome"`
}

func (Market) TableName() string { return "markets" }

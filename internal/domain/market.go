package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Market represents one prediction market tracked by the scraper.
type Market struct {
	ID            int64       `gorm:"primaryKey" json:"id"`
	PolymarketID  string      `gorm:"type:text;not null;uniqueIndex:idx_markets_polymarket_id" json:"polymarket_id"`
	Question      string      `gorm:"type:text;not null;index:idx_markets_question" json:"question"`
	Description   string      `gorm:"type:text" json:"description,omitempty"`
	Outcomes      StringArray `gorm:"type:text" json:"outcomes"`
	OutcomePrices StringArray `gorm:"type:text" json:"outcome_prices"`
	EndDate       *time.Time  `json:"end_date,omitempty"`
	Volume        float64     `gorm:"default:0" json:"volume"`
	IsActive      bool        `gorm:"default:true;index:idx_markets_active" json:"is_active"`
	LastScrapedAt *time.Time  `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Market.
func (Market) TableName() string {
	return "markets"
}

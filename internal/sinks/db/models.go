package db

import "time"

// Event is the one-row-per-product table.
type Event struct {
	EventID         string    `gorm:"column:event_id;primaryKey"`
	ProductID       string    `gorm:"column:product_id;index"`
	Cccc            string    `gorm:"column:cccc;index"`
	AwipsID         string    `gorm:"column:awips_id;index"`
	ProductCategory string    `gorm:"column:product_category;index"`
	IssuedAt        time.Time `gorm:"column:issued_at;index"`
	ReceivedAt      time.Time `gorm:"column:received_at"`
	WMO             string    `gorm:"column:wmo"`
	Text            string    `gorm:"column:text"`
}

func (Event) TableName() string { return "events" }

// EventContent is one row per product segment.
type EventContent struct {
	ID           uint       `gorm:"column:id;primaryKey;autoIncrement"`
	EventID      string     `gorm:"column:event_id;index"`
	SegmentIndex int        `gorm:"column:segment_index"`
	UGCExpiresAt *time.Time `gorm:"column:ugc_expires_at;index"`
	// VTECExpiresAt is null when the segment has no VTEC or when any of
	// its events runs until further notice; UntilFurtherNotice tells the
	// two apart for the cleanup rules.
	VTECExpiresAt      *time.Time `gorm:"column:vtec_expires_at;index"`
	UntilFurtherNotice bool       `gorm:"column:until_further_notice"`
	PolygonWKT         *string    `gorm:"column:polygon_wkt"`
	Body               string     `gorm:"column:body"`
}

func (EventContent) TableName() string { return "event_content" }

// EventMetadata is the open-ended key/value table holding decoded VTEC
// strings and IBW tags.
type EventMetadata struct {
	ID      uint   `gorm:"column:id;primaryKey;autoIncrement"`
	EventID string `gorm:"column:event_id;index"`
	Key     string `gorm:"column:key;index"`
	Value   string `gorm:"column:value"`
}

func (EventMetadata) TableName() string { return "event_metadata" }

package types

import "time"

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;uniqueIndex;not null"`
	Value string `gorm:"size:256;not null"`
}

// Upstream fetch log, one row per space and source
type SpaceFetch struct {
	ID          uint64    `gorm:"primaryKey"`
	Space       string    `gorm:"size:128;not null;uniqueIndex:idx_space_source"`
	Source      string    `gorm:"size:16;not null;uniqueIndex:idx_space_source"`
	OrgSlug     string    `gorm:"size:128"`
	Fetches     uint64    `gorm:"not null;default:0"`
	Failures    uint64    `gorm:"not null;default:0"`
	LastCount   int       `gorm:"not null;default:0"`
	LastError   string    `gorm:"size:512"`
	LastTookMs  int64     `gorm:"not null;default:0"`
	LastFetchAt time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

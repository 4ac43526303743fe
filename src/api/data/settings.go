package data

import (
	"sync"

	"gorm.io/gorm"

	"github.com/stake-plus/dao-proposals/src/api/types"
)

// Settings is an in-memory copy of the settings table.
// A nil *Settings behaves as an empty table.
type Settings struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSettings builds a Settings from fixed values.
func NewSettings(values map[string]string) *Settings {
	s := &Settings{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// LoadSettings loads all settings from database into cache
func LoadSettings(db *gorm.DB) (*Settings, error) {
	s := &Settings{}
	if err := s.Refresh(db); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh reloads settings from database
func (s *Settings) Refresh(db *gorm.DB) error {
	var rows []types.Setting
	if err := db.Find(&rows).Error; err != nil {
		return err
	}

	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Name] = r.Value
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Get retrieves a setting value by name
func (s *Settings) Get(name string) string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

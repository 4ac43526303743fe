package data

import (
	"context"
	"errors"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/dao-proposals/src/api/types"
	"github.com/stake-plus/dao-proposals/src/proposals"
)

const maxErrorLen = 512

// FetchLog keeps per-space upstream fetch counters in MySQL.
type FetchLog struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewFetchLog(db *gorm.DB, logger *zap.Logger) *FetchLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchLog{db: db, logger: logger}
}

// RecordFetch upserts the row for the fetched space and source. Write failures
// are logged and never surface to the request.
func (l *FetchLog) RecordFetch(ctx context.Context, rec proposals.FetchRecord) {
	row := fetchRow(rec)

	updates := map[string]interface{}{
		"org_slug":      row.OrgSlug,
		"fetches":       gorm.Expr("fetches + 1"),
		"last_took_ms":  row.LastTookMs,
		"last_fetch_at": row.LastFetchAt,
		"last_error":    row.LastError,
		"updated_at":    row.LastFetchAt,
	}
	if rec.Err != nil {
		updates["failures"] = gorm.Expr("failures + 1")
	} else {
		updates["last_count"] = row.LastCount
	}

	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "space"}, {Name: "source"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&row).Error
	if err != nil {
		l.logger.Warn("fetch log write failed",
			zap.String("space", rec.Space), zap.String("source", string(rec.Mode)), zap.Error(err))
	}
}

// Recent returns the most recently fetched spaces, newest first.
func (l *FetchLog) Recent(ctx context.Context, limit int) ([]types.SpaceFetch, error) {
	if limit <= 0 {
		return nil, errors.New("fetch log: limit must be positive")
	}
	var rows []types.SpaceFetch
	err := l.db.WithContext(ctx).
		Order("last_fetch_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func fetchRow(rec proposals.FetchRecord) types.SpaceFetch {
	row := types.SpaceFetch{
		Space:       rec.Space,
		Source:      string(rec.Mode),
		OrgSlug:     rec.OrgSlug,
		Fetches:     1,
		LastTookMs:  rec.Took.Milliseconds(),
		LastFetchAt: rec.FetchedAt.UTC(),
	}
	if rec.Err != nil {
		row.Failures = 1
		row.LastError = truncate(rec.Err.Error(), maxErrorLen)
	} else {
		row.LastCount = rec.Count
	}
	return row
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

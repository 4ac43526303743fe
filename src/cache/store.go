package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/OneOfOne/xxhash"

	"github.com/stake-plus/dao-proposals/src/shared/gov"
)

const keyPrefix = "proposals:"

// Key identifies one cached proposal page.
type Key struct {
	Mode    gov.Mode
	Space   string
	OrgSlug string
	Order   gov.Order
	Limit   int
	Cursor  *int64
}

// String returns the canonical form of the key. Distinct keys never share a string.
func (k Key) String() string {
	cursor := "latest"
	if k.Cursor != nil {
		cursor = strconv.FormatInt(*k.Cursor, 10)
	}
	return fmt.Sprintf("%s%s:%q:%q:%s:%d:%s", keyPrefix, k.Mode, k.Space, k.OrgSlug, k.Order, k.Limit, cursor)
}

// Digest returns a fixed-length key suitable for external stores.
func (k Key) Digest() string {
	return fmt.Sprintf("%s%016x", keyPrefix, xxhash.ChecksumString64(k.String()))
}

// Entry is a cached proposal page. Entries are immutable once stored.
type Entry struct {
	Page      gov.Page  `json:"page"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns how long ago the entry was fetched, relative to now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Store is a proposal page cache. Get returns (nil, nil) on a miss.
// Freshness is decided by the caller, not the store.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Put(ctx context.Context, key Key, entry *Entry) error
}

// Error reports that the backing store could not serve an operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

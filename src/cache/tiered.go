package cache

import "context"

// Tiered consults a fast local store before a shared one and fills the local
// store on shared hits. Writes go to both; a failing shared write is reported
// after the local write has succeeded.
type Tiered struct {
	local  Store
	shared Store
}

// NewTiered layers local in front of shared.
func NewTiered(local, shared Store) *Tiered {
	return &Tiered{local: local, shared: shared}
}

func (t *Tiered) Get(ctx context.Context, key Key) (*Entry, error) {
	if entry, err := t.local.Get(ctx, key); err == nil && entry != nil {
		return entry, nil
	}

	entry, err := t.shared.Get(ctx, key)
	if err != nil || entry == nil {
		return nil, err
	}
	_ = t.local.Put(ctx, key, entry)
	return entry, nil
}

func (t *Tiered) Put(ctx context.Context, key Key, entry *Entry) error {
	if err := t.local.Put(ctx, key, entry); err != nil {
		return err
	}
	return t.shared.Put(ctx, key, entry)
}

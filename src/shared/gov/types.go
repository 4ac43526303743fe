package gov

import "strings"

// Mode selects which upstream governance source serves a request.
type Mode string

const (
	ModeOffchain Mode = "offchain"
	ModeOnchain  Mode = "onchain"
)

// Order is the direction proposals are paged in, by creation time.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder accepts "asc" or "desc" (case-insensitive). Empty means ascending.
func ParseOrder(raw string) (Order, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "asc":
		return OrderAsc, true
	case "desc":
		return OrderDesc, true
	default:
		return "", false
	}
}

// PageQuery describes one page request against an upstream source.
// Cursor is an exclusive bound on the creation timestamp: a lower bound for
// ascending pages and an upper bound for descending ones. Nil means the first
// page in the chosen order.
type PageQuery struct {
	Cursor *int64
	Limit  int
	Order  Order
}

// Accepts reports whether a proposal created at ts lies past the cursor.
func (q PageQuery) Accepts(ts int64) bool {
	if q.Cursor == nil {
		return true
	}
	if q.Order == OrderDesc {
		return ts < *q.Cursor
	}
	return ts > *q.Cursor
}

// Proposal is the normalized shape returned for both off-chain and on-chain sources.
type Proposal struct {
	ID          string    `json:"id"`
	Source      Mode      `json:"source"`
	Space       string    `json:"space"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Author      string    `json:"author"`
	State       string    `json:"state"`
	Type        string    `json:"type,omitempty"`
	Choices     []string  `json:"choices"`
	Scores      []float64 `json:"scores"`
	ScoresTotal float64   `json:"scores_total"`
	Votes       int       `json:"votes"`
	Quorum      float64   `json:"quorum"`
	Created     int64     `json:"created"`
	Start       int64     `json:"start"`
	End         int64     `json:"end"`
	Snapshot    string    `json:"snapshot,omitempty"`
	Network     string    `json:"network,omitempty"`
	Link        string    `json:"link,omitempty"`
	Discussion  string    `json:"discussion,omitempty"`
	IPFS        string    `json:"ipfs,omitempty"`
	OnchainID   string    `json:"onchain_id,omitempty"`
	Governor    string    `json:"governor,omitempty"`
	Flagged     bool      `json:"flagged,omitempty"`
}

// Page is an ordered run of proposals plus the cursor for the following page.
type Page struct {
	Proposals  []Proposal `json:"proposals"`
	NextCursor *int64     `json:"next_cursor"`
}

// Batch is one upstream response. More is set when the source holds further
// proposals past the last one returned, in the requested order.
type Batch struct {
	Proposals []Proposal
	More      bool
}

package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/stake-plus/dao-proposals/src/shared/gov"
	"github.com/stake-plus/dao-proposals/src/webclient"
)

const (
	DefaultEndpoint = "https://hub.snapshot.org/graphql"
	defaultTimeout  = 30 * time.Second
	maxPageSize     = 1000
)

const proposalsQuery = `
query Proposals($first: Int!, $where: ProposalWhere!, $orderDirection: OrderDirection!) {
  proposals(first: $first, skip: 0, where: $where, orderBy: "created", orderDirection: $orderDirection) {
    id
    ipfs
    author
    created
    updated
    network
    symbol
    type
    title
    body
    discussion
    choices
    start
    end
    quorum
    privacy
    snapshot
    state
    link
    scores
    scores_total
    scores_updated
    votes
    flagged
    space { id }
  }
}`

// Config configures a Snapshot hub client.
type Config struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Client fetches off-chain proposals from a Snapshot hub GraphQL endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	attempts   int
	delay      time.Duration
}

// NewClient creates a Snapshot client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: webclient.NewDefault(cfg.Timeout),
		breaker:    webclient.NewBreaker(webclient.DefaultBreakerConfig("snapshot"), logger),
		attempts:   cfg.RetryAttempts,
		delay:      cfg.RetryDelay,
	}
}

type proposalWhere struct {
	Space     string `json:"space"`
	CreatedGT *int64 `json:"created_gt,omitempty"`
	CreatedLT *int64 `json:"created_lt,omitempty"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// rawProposal mirrors the hub's proposal object.
type rawProposal struct {
	ID          string    `json:"id"`
	IPFS        string    `json:"ipfs"`
	Author      string    `json:"author"`
	Created     int64     `json:"created"`
	Updated     *int64    `json:"updated"`
	Network     string    `json:"network"`
	Symbol      string    `json:"symbol"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Discussion  string    `json:"discussion"`
	Choices     []string  `json:"choices"`
	Start       int64     `json:"start"`
	End         int64     `json:"end"`
	Quorum      float64   `json:"quorum"`
	Privacy     string    `json:"privacy"`
	Snapshot    string    `json:"snapshot"`
	State       string    `json:"state"`
	Link        string    `json:"link"`
	Scores      []float64 `json:"scores"`
	ScoresTotal float64   `json:"scores_total"`
	Votes       int       `json:"votes"`
	Flagged     bool      `json:"flagged"`
	Space       *struct {
		ID string `json:"id"`
	} `json:"space"`
}

// FetchPage returns up to q.Limit proposals of space past the cursor, in q.Order.
// A full page is reported as having more.
func (c *Client) FetchPage(ctx context.Context, space string, q gov.PageQuery) (gov.Batch, error) {
	space = strings.TrimSpace(space)
	if space == "" {
		return gov.Batch{}, gov.Invalid("space", "must not be empty")
	}

	limit := q.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	direction := "asc"
	where := proposalWhere{Space: space}
	if q.Order == gov.OrderDesc {
		direction = "desc"
		where.CreatedLT = q.Cursor
	} else {
		where.CreatedGT = q.Cursor
	}

	req := graphQLRequest{
		Query: proposalsQuery,
		Variables: map[string]any{
			"first":          limit,
			"where":          where,
			"orderDirection": direction,
		},
	}

	body, err := c.execute(ctx, req)
	if err != nil {
		return gov.Batch{}, err
	}

	data := gjson.GetBytes(body, "data.proposals")
	if !data.Exists() {
		return gov.Batch{}, gov.Upstream(gov.ModeOffchain, errors.New("response has no data.proposals"))
	}
	var raws []rawProposal
	if err := json.Unmarshal([]byte(data.Raw), &raws); err != nil {
		return gov.Batch{}, gov.Upstream(gov.ModeOffchain, fmt.Errorf("decode proposals: %w", err))
	}

	out := make([]gov.Proposal, 0, len(raws))
	for _, raw := range raws {
		out = append(out, raw.normalize(space))
	}
	return gov.Batch{Proposals: out, More: len(raws) >= limit}, nil
}

func (c *Client) execute(ctx context.Context, req graphQLRequest) ([]byte, error) {
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["x-api-key"] = c.apiKey
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		status, body, err := webclient.DoWithRetry(ctx, c.attempts, c.delay, func() (int, []byte, error) {
			return webclient.PostJSON(ctx, c.httpClient, c.endpoint, req, headers)
		})
		if err != nil {
			return nil, err
		}
		if status < 200 || status > 299 {
			return nil, &webclient.HTTPError{StatusCode: status, Body: body}
		}
		return body, nil
	})
	if err != nil {
		var httpErr *webclient.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &gov.UpstreamError{Source: gov.ModeOffchain, StatusCode: httpErr.StatusCode, Err: err}
		}
		return nil, gov.Upstream(gov.ModeOffchain, err)
	}

	body := result.([]byte)
	if !gjson.ValidBytes(body) {
		return nil, gov.Upstream(gov.ModeOffchain, errors.New("malformed JSON response"))
	}
	if errs := gjson.GetBytes(body, "errors"); errs.Exists() && len(errs.Array()) > 0 {
		return nil, gov.Upstream(gov.ModeOffchain, fmt.Errorf("graphql: %s", errs.Get("0.message").String()))
	}
	return body, nil
}

func (r rawProposal) normalize(space string) gov.Proposal {
	if r.Space != nil && r.Space.ID != "" {
		space = r.Space.ID
	}
	return gov.Proposal{
		ID:          r.ID,
		Source:      gov.ModeOffchain,
		Space:       space,
		Title:       r.Title,
		Body:        r.Body,
		Author:      r.Author,
		State:       r.State,
		Type:        r.Type,
		Choices:     r.Choices,
		Scores:      r.Scores,
		ScoresTotal: r.ScoresTotal,
		Votes:       r.Votes,
		Quorum:      r.Quorum,
		Created:     r.Created,
		Start:       r.Start,
		End:         r.End,
		Snapshot:    r.Snapshot,
		Network:     r.Network,
		Link:        r.Link,
		Discussion:  r.Discussion,
		IPFS:        r.IPFS,
		Flagged:     r.Flagged,
	}
}

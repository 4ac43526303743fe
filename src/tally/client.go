package tally

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/stake-plus/dao-proposals/src/shared/gov"
	"github.com/stake-plus/dao-proposals/src/webclient"
)

const (
	DefaultEndpoint = "https://api.tally.xyz/query"
	defaultTimeout  = 30 * time.Second
	// upstreamPageSize is the largest page Tally serves per request.
	upstreamPageSize = 20
	defaultMaxPages  = 10
)

const organizationQuery = `
query Organization($input: OrganizationInput!) {
  organization(input: $input) { id slug name }
}`

const proposalsQuery = `
query Proposals($input: ProposalsInput!) {
  proposals(input: $input) {
    nodes {
      ... on Proposal {
        id
        onchainId
        status
        createdAt
        quorum
        metadata { title description discourseURL }
        proposer { address }
        governor { id name chainId }
        voteStats { type votesCount votersCount percent }
        start { ... on Block { timestamp } ... on BlocklessTimestamp { timestamp } }
        end { ... on Block { timestamp } ... on BlocklessTimestamp { timestamp } }
      }
    }
    pageInfo { firstCursor lastCursor count }
  }
}`

// Config configures a Tally API client.
type Config struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxPages caps how many upstream pages one FetchPage call may read while
	// skipping proposals on the wrong side of the cursor.
	MaxPages int
}

// Client fetches on-chain governor proposals for a Tally organization.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	attempts   int
	delay      time.Duration
	maxPages   int

	mu   sync.RWMutex
	orgs map[string]string
}

// NewClient creates a Tally client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: webclient.NewDefault(cfg.Timeout),
		breaker:    webclient.NewBreaker(webclient.DefaultBreakerConfig("tally"), logger),
		attempts:   cfg.RetryAttempts,
		delay:      cfg.RetryDelay,
		maxPages:   cfg.MaxPages,
		orgs:       make(map[string]string),
	}
}

type timestamped struct {
	Timestamp string `json:"timestamp"`
}

type rawProposal struct {
	ID        string `json:"id"`
	OnchainID string `json:"onchainId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	Quorum    string `json:"quorum"`
	Metadata  struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		DiscourseURL string `json:"discourseURL"`
	} `json:"metadata"`
	Proposer *struct {
		Address string `json:"address"`
	} `json:"proposer"`
	Governor *struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		ChainID string `json:"chainId"`
	} `json:"governor"`
	VoteStats []struct {
		Type        string  `json:"type"`
		VotesCount  string  `json:"votesCount"`
		VotersCount int     `json:"votersCount"`
		Percent     float64 `json:"percent"`
	} `json:"voteStats"`
	Start *timestamped `json:"start"`
	End   *timestamped `json:"end"`
}

type proposalsPage struct {
	Nodes    []rawProposal `json:"nodes"`
	PageInfo struct {
		FirstCursor string `json:"firstCursor"`
		LastCursor  string `json:"lastCursor"`
		Count       int    `json:"count"`
	} `json:"pageInfo"`
}

// FetchPage returns up to q.Limit proposals of the organization identified by
// slug whose creation time lies past the cursor, in q.Order.
//
// Tally cannot filter by creation time, so the cursor is applied while
// scanning at most MaxPages upstream pages. A scan that runs out of pages
// before finding anything past the cursor is an error rather than an empty
// page, since the organization may still hold proposals beyond it.
func (c *Client) FetchPage(ctx context.Context, slug string, q gov.PageQuery) (gov.Batch, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return gov.Batch{}, gov.Invalid("onchain", "organization slug must not be empty")
	}
	orgID, err := c.organizationID(ctx, slug)
	if err != nil {
		return gov.Batch{}, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = upstreamPageSize
	}

	out := make([]gov.Proposal, 0, limit)
	after := ""
	exhausted := false
	for page := 0; page < c.maxPages && len(out) < limit; page++ {
		pageInput := map[string]any{"limit": upstreamPageSize}
		if after != "" {
			pageInput["afterCursor"] = after
		}
		input := map[string]any{
			"filters": map[string]any{"organizationId": orgID},
			"sort":    map[string]any{"sortBy": "id", "isDescending": q.Order == gov.OrderDesc},
			"page":    pageInput,
		}

		body, err := c.execute(ctx, proposalsQuery, map[string]any{"input": input})
		if err != nil {
			return gov.Batch{}, err
		}
		data := gjson.GetBytes(body, "data.proposals")
		if !data.Exists() {
			return gov.Batch{}, gov.Upstream(gov.ModeOnchain, errors.New("response has no data.proposals"))
		}
		var res proposalsPage
		if err := json.Unmarshal([]byte(data.Raw), &res); err != nil {
			return gov.Batch{}, gov.Upstream(gov.ModeOnchain, fmt.Errorf("decode proposals: %w", err))
		}

		consumed := 0
		for _, raw := range res.Nodes {
			consumed++
			p, err := raw.normalize(slug)
			if err != nil {
				return gov.Batch{}, gov.Upstream(gov.ModeOnchain, err)
			}
			if !q.Accepts(p.Created) {
				continue
			}
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}

		if len(res.Nodes) < upstreamPageSize || res.PageInfo.LastCursor == "" {
			exhausted = consumed == len(res.Nodes)
			break
		}
		after = res.PageInfo.LastCursor
	}

	if len(out) == 0 && !exhausted {
		return gov.Batch{}, gov.Upstream(gov.ModeOnchain,
			fmt.Errorf("no proposal past the cursor within the first %d scanned", c.maxPages*upstreamPageSize))
	}
	return gov.Batch{Proposals: out, More: !exhausted}, nil
}

func (c *Client) organizationID(ctx context.Context, slug string) (string, error) {
	c.mu.RLock()
	id, ok := c.orgs[slug]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	body, err := c.execute(ctx, organizationQuery, map[string]any{"input": map[string]any{"slug": slug}})
	if err != nil {
		return "", err
	}
	id = gjson.GetBytes(body, "data.organization.id").String()
	if id == "" {
		return "", &gov.UpstreamError{Source: gov.ModeOnchain, StatusCode: http.StatusNotFound, Err: fmt.Errorf("organization %q not found", slug)}
	}

	c.mu.Lock()
	c.orgs[slug] = id
	c.mu.Unlock()
	return id, nil
}

func (c *Client) execute(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Api-Key"] = c.apiKey
	}
	req := map[string]any{"query": query, "variables": variables}

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
			return nil, &gov.UpstreamError{Source: gov.ModeOnchain, StatusCode: httpErr.StatusCode, Err: err}
		}
		return nil, gov.Upstream(gov.ModeOnchain, err)
	}

	body := result.([]byte)
	if !gjson.ValidBytes(body) {
		return nil, gov.Upstream(gov.ModeOnchain, errors.New("malformed JSON response"))
	}
	if errs := gjson.GetBytes(body, "errors"); errs.Exists() && len(errs.Array()) > 0 {
		return nil, gov.Upstream(gov.ModeOnchain, fmt.Errorf("graphql: %s", errs.Get("0.message").String()))
	}
	return body, nil
}

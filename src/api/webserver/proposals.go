package webserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/dao-proposals/src/logging"
	"github.com/stake-plus/dao-proposals/src/proposals"
	"github.com/stake-plus/dao-proposals/src/shared/gov"
	"github.com/stake-plus/dao-proposals/src/webclient"
)

const daostarContext = "http://daostar.org/schemas"

type Proposals struct {
	fetcher Fetcher
	logger  *zap.Logger
}

func NewProposals(fetcher Fetcher, logger *zap.Logger) Proposals {
	return Proposals{fetcher: fetcher, logger: logger}
}

type proposalsResponse struct {
	Context    string         `json:"@context"`
	Name       string         `json:"name"`
	Source     gov.Mode       `json:"source"`
	Proposals  []gov.Proposal `json:"proposals"`
	NextCursor *int64         `json:"next_cursor"`
	FetchedAt  int64          `json:"fetched_at"`
}

func (p Proposals) MissingSpace(c *gin.Context) {
	p.fail(c, gov.Invalid("space", "is required"))
}

func (p Proposals) List(c *gin.Context) {
	req, err := parseRequest(c)
	if err != nil {
		p.fail(c, err)
		return
	}

	res, err := p.fetcher.Fetch(c.Request.Context(), req)
	if err != nil {
		p.fail(c, err)
		return
	}

	body, err := json.Marshal(proposalsResponse{
		Context:    daostarContext,
		Name:       res.Space,
		Source:     res.Mode,
		Proposals:  res.Page.Proposals,
		NextCursor: res.Page.NextCursor,
		FetchedAt:  res.FetchedAt.Unix(),
	})
	if err != nil {
		p.fail(c, fmt.Errorf("encode response: %w", err))
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Checksum64(body))
	c.Header("X-Cache", string(res.Status))
	c.Header("ETag", etag)
	if res.Status == proposals.StatusStale {
		c.Header("Warning", `110 - "Response is Stale"`)
		p.logger.Warn("served stale proposals",
			zap.String("space", res.Space), zap.Error(res.Err))
	}

	if match := c.GetHeader("If-None-Match"); match != "" && etagMatches(match, etag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func parseRequest(c *gin.Context) (proposals.Request, error) {
	req := proposals.Request{
		Space:   c.Param("space"),
		OrgSlug: strings.TrimSpace(c.Query("onchain")),
	}

	if raw := strings.TrimSpace(c.Query("cursor")); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || cursor < 0 {
			return req, gov.Invalid("cursor", "must be a non-negative integer, got %q", raw)
		}
		req.Cursor = &cursor
	}

	if raw := strings.TrimSpace(c.Query("refresh")); raw != "" {
		refresh, err := strconv.ParseBool(raw)
		if err != nil {
			return req, gov.Invalid("refresh", "must be a boolean, got %q", raw)
		}
		req.Refresh = refresh
	}

	order, ok := gov.ParseOrder(c.Query("order"))
	if !ok {
		return req, gov.Invalid("order", "must be asc or desc, got %q", c.Query("order"))
	}
	req.Order = order

	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > proposals.MaxPageSize {
			return req, gov.Invalid("limit", "must be between 1 and %d, got %q", proposals.MaxPageSize, raw)
		}
		req.Limit = limit
	}
	return req, nil
}

func (p Proposals) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var ve *gov.ValidationError
	var ue *gov.UpstreamError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.As(err, &ue):
		switch {
		case webclient.IsBreakerOpen(err):
			status = http.StatusServiceUnavailable
		case logging.IsTimeout(err):
			status = http.StatusGatewayTimeout
		default:
			status = http.StatusBadGateway
		}
	}
	if status >= 500 {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

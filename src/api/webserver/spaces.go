package webserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxSpaces = 500

type Spaces struct {
	history History
}

func NewSpaces(history History) Spaces {
	return Spaces{history: history}
}

type spaceView struct {
	Space       string `json:"space"`
	Source      string `json:"source"`
	OrgSlug     string `json:"onchain,omitempty"`
	Fetches     uint64 `json:"fetches"`
	Failures    uint64 `json:"failures"`
	LastCount   int    `json:"last_count"`
	LastError   string `json:"last_error,omitempty"`
	LastTookMs  int64  `json:"last_took_ms"`
	LastFetchAt int64  `json:"last_fetch_at"`
}

func (s Spaces) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSpaces {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: must be between 1 and " + strconv.Itoa(maxSpaces)})
			return
		}
		limit = n
	}

	rows, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch log unavailable"})
		return
	}

	out := make([]spaceView, 0, len(rows))
	for _, r := range rows {
		out = append(out, spaceView{
			Space:       r.Space,
			Source:      r.Source,
			OrgSlug:     r.OrgSlug,
			Fetches:     r.Fetches,
			Failures:    r.Failures,
			LastCount:   r.LastCount,
			LastError:   r.LastError,
			LastTookMs:  r.LastTookMs,
			LastFetchAt: r.LastFetchAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"spaces": out})
}

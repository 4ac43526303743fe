package webserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func attachRoutes(r *gin.Engine, deps Deps) {
	r.Use(cors.New(corsConfig(deps.Config.CORSOrigins)))

	proposalsH := NewProposals(deps.Fetcher, deps.Logger)
	limited := r.Group("/proposals")
	if deps.Config.RateLimit > 0 {
		limited.Use(RateLimitMiddleware(NewRateLimiter(deps.Config.RateLimit, deps.Config.RateWindow)))
	}
	{
		limited.GET("", proposalsH.MissingSpace)
		limited.GET("/:space", proposalsH.List)
	}

	if deps.History != nil {
		spacesH := NewSpaces(deps.History)
		r.GET("/spaces", spacesH.List)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.GET("/", docs)

	// unknown paths land on the docs
	r.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/")
	})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "If-None-Match", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "ETag", "X-Cache", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func docs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name": "dao-proposals",
		"endpoints": []gin.H{
			{
				"path":        "/proposals/{space}",
				"method":      "GET",
				"description": "Governance proposals for a DAO space, cached.",
				"params": gin.H{
					"cursor":  "unix seconds; only proposals created after it (before it with order=desc)",
					"refresh": "true to bypass the cache",
					"onchain": "Tally organization slug; serves on-chain proposals instead of Snapshot",
					"order":   "asc (default) or desc",
					"limit":   "page size, 1-1000",
				},
				"example": "/proposals/ens.eth?cursor=1609459200",
			},
			{"path": "/spaces", "method": "GET", "description": "Recently fetched spaces."},
			{"path": "/healthz", "method": "GET", "description": "Liveness."},
			{"path": "/metrics", "method": "GET", "description": "Prometheus metrics."},
		},
	})
}

package webserver

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/dao-proposals/src/api/config"
	"github.com/stake-plus/dao-proposals/src/api/types"
	"github.com/stake-plus/dao-proposals/src/metrics"
	"github.com/stake-plus/dao-proposals/src/proposals"
)

// Fetcher serves proposal pages. *proposals.Service implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req proposals.Request) (*proposals.Result, error)
}

// History lists recently fetched spaces. *data.FetchLog implements it.
type History interface {
	Recent(ctx context.Context, limit int) ([]types.SpaceFetch, error)
}

// Deps are the collaborators the HTTP layer needs. History and Metrics are optional.
type Deps struct {
	Config  config.Config
	Fetcher Fetcher
	History History
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// New builds the gin engine with all routes and middleware attached.
func New(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(RequestID())
	r.Use(AccessLog(deps.Logger))
	r.Use(Metrics(deps.Metrics))
	// innermost, so a recovered panic still reaches the access log as a 500
	r.Use(Recovery(deps.Logger))
	attachRoutes(r, deps)
	return r
}

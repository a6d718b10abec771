package transport

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"reactWs/internal/modules/reactive/application/usecase"
	"reactWs/internal/modules/reactive/infrastructure"
)

// Routes is everything the HTTP surface needs.
type Routes struct {
	Dispatcher *infrastructure.Dispatcher
	Handlers   *infrastructure.HandlerRegistry
	PublishUC  *usecase.PublishUseCase
	Websocket  WebsocketOptions
	// Metrics is mounted at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string
}

// Register installs the runtime routes on e. Every bound handler path gets its own route;
// the catch-all also upgrades so unknown paths are closed with a policy violation.
func Register(e *echo.Echo, r Routes) {
	ws := NewWebsocketHandler(r.Dispatcher, r.Websocket)
	for _, path := range r.Handlers.Paths() {
		e.GET(path, ws)
	}
	e.GET("/*", ws)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status": "ok",
			"paths":  r.Handlers.Paths(),
		})
	})
	if r.PublishUC != nil {
		e.GET("/topics", NewTopicsHTTPHandler(r.PublishUC))
		e.POST("/topics/:topic", NewPublishHTTPHandler(r.PublishUC))
	}
	if r.Metrics != nil && r.MetricsPath != "" {
		e.GET(r.MetricsPath, echo.WrapHandler(r.Metrics))
	}
}

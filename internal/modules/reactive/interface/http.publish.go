package transport

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"reactWs/internal/modules/reactive/application/usecase"
	"reactWs/internal/modules/reactive/infrastructure"
)

const maxPublishBody = 1 << 20

// PublishResponse represents the response after publishing into a topic.
type PublishResponse struct {
	Topic     string `json:"topic"`
	Delivered int    `json:"delivered"`
}

var publishErrors = infrastructure.CloseCodes()

// NewPublishHTTPHandler exposes POST /topics/:topic. The raw body is decoded with the topic's
// element type, so a string topic takes plain text and a struct topic takes JSON.
func NewPublishHTTPHandler(publishUC *usecase.PublishUseCase) echo.HandlerFunc {
	return func(c echo.Context) error {
		topic := c.Param("topic")
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPublishBody))
		if err != nil {
			slog.Warn("publish http: invalid request body", slog.Any("error", err))
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		delivered, err := publishUC.Execute(c.Request().Context(), topic, body)
		if err != nil {
			info := publishErrors.Map(err)
			slog.Warn("publish http: failed", slog.String("topic", topic), slog.Int("status", info.Status), slog.Any("error", err))
			return echo.NewHTTPError(info.Status, info.Message)
		}

		slog.Info("publish http: message sent", slog.String("topic", topic), slog.Int("delivered", delivered))
		return c.JSON(http.StatusOK, PublishResponse{Topic: topic, Delivered: delivered})
	}
}

// NewTopicsHTTPHandler exposes GET /topics.
func NewTopicsHTTPHandler(publishUC *usecase.PublishUseCase) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, publishUC.Topics())
	}
}

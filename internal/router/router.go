package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ipgconnect/internal/handler"
	"ipgconnect/internal/handler/api"
	"ipgconnect/internal/middleware"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	callbacks *handler.IPGCallbackHandler,
	records api.CallbackReader,
	logger *zap.Logger,
	apiKey string,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	// Gateway callbacks. IPG Connect posts form-encoded bodies; the browser
	// redirect may arrive as GET depending on the store configuration.
	ipgGroup := e.Group("/ipg")
	ipgGroup.POST("/notification", callbacks.Notification)
	ipgGroup.POST("/response", callbacks.Response)
	ipgGroup.GET("/response", callbacks.Response)

	// Admin API
	callbackHandler := api.NewCallbackHandler(records, logger)

	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.CORS())
	apiGroup.Use(middleware.APIAuth(apiKey))
	apiGroup.POST("/callbacks", callbackHandler.Handle)
	apiGroup.GET("/callbacks", callbackHandler.Handle)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

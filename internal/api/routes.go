package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/adapters/miai"
	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
	"github.com/mihomelab/xiaoai-broadcast/domain/repositories"
	"github.com/mihomelab/xiaoai-broadcast/internal/auth"
)

// Speaker is the slice of the cloud client the control API drives.
type Speaker interface {
	repositories.SpeakerPlayer
	ListDevices(ctx context.Context) ([]entities.Device, error)
}

// Broadcaster runs the full news broadcast pipeline.
type Broadcaster interface {
	Run(ctx context.Context) (*entities.RunReport, error)
}

// InitRoutes initializes all API routes.
func InitRoutes(e *echo.Echo, speaker Speaker, broadcaster Broadcaster, secret []byte, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "xiaoaid",
		})
	})

	v1 := e.Group("/api/v1", requireAuth(secret, logger))

	v1.POST("/speak", func(c echo.Context) error {
		return speak(c, speaker, logger)
	})
	v1.POST("/play", func(c echo.Context) error {
		return play(c, speaker, logger)
	})
	v1.PUT("/volume", func(c echo.Context) error {
		return setVolume(c, speaker, logger)
	})
	v1.GET("/status", func(c echo.Context) error {
		return getStatus(c, speaker, logger)
	})
	v1.GET("/devices", func(c echo.Context) error {
		return listDevices(c, speaker, logger)
	})
	v1.POST("/broadcast", func(c echo.Context) error {
		return broadcast(c, broadcaster, logger)
	})
}

// requireAuth validates the bearer token on every control call.
func requireAuth(secret []byte, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string
			authHeader := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = authHeader[len("Bearer "):]
			}

			if token == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "Bearer token is required in Authorization header",
				})
			}

			claims, err := auth.ValidateToken(secret, token)
			if err != nil {
				logger.Warn("Control request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired bearer token",
				})
			}

			c.Set("client", claims.Client)
			return next(c)
		}
	}
}

func speak(c echo.Context, speaker Speaker, logger *zap.Logger) error {
	var req SpeakRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Text is required",
		})
	}

	if err := speaker.Speak(c.Request().Context(), req.Text); err != nil {
		return remoteFailure(c, "speak", err, logger)
	}
	return c.JSON(http.StatusOK, AckResponse{Status: "sent"})
}

func play(c echo.Context, speaker Speaker, logger *zap.Logger) error {
	var req PlayRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "URL is required",
		})
	}

	if err := speaker.PlayURL(c.Request().Context(), req.URL); err != nil {
		return remoteFailure(c, "play", err, logger)
	}
	return c.JSON(http.StatusOK, AckResponse{Status: "sent"})
}

func setVolume(c echo.Context, speaker Speaker, logger *zap.Logger) error {
	var req VolumeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if err := speaker.SetVolume(c.Request().Context(), req.Level); err != nil {
		return remoteFailure(c, "volume", err, logger)
	}
	return c.JSON(http.StatusOK, AckResponse{Status: "sent"})
}

func getStatus(c echo.Context, speaker Speaker, logger *zap.Logger) error {
	status, err := speaker.GetStatus(c.Request().Context())
	if err != nil {
		return remoteFailure(c, "status", err, logger)
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: status})
}

func listDevices(c echo.Context, speaker Speaker, logger *zap.Logger) error {
	devices, err := speaker.ListDevices(c.Request().Context())
	if err != nil {
		return remoteFailure(c, "devices", err, logger)
	}
	return c.JSON(http.StatusOK, DevicesResponse{Devices: devices})
}

func broadcast(c echo.Context, broadcaster Broadcaster, logger *zap.Logger) error {
	report, err := broadcaster.Run(c.Request().Context())
	if err != nil {
		logger.Error("Broadcast run failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "broadcast_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, RunResponse{Report: report})
}

// remoteFailure maps the client error taxonomy onto HTTP statuses.
func remoteFailure(c echo.Context, op string, err error, logger *zap.Logger) error {
	logger.Error("Speaker command failed", zap.String("op", op), zap.Error(err))

	var authErr *miai.AuthError
	var remoteErr *miai.RemoteError
	switch {
	case errors.Is(err, miai.ErrNotConnected), errors.Is(err, miai.ErrNoDeviceAvailable):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "not_ready",
			Message: err.Error(),
		})
	case errors.As(err, &authErr):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "session_expired",
			Message: err.Error(),
		})
	case errors.As(err, &remoteErr):
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "remote_rejected",
			Message: err.Error(),
		})
	default:
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "speaker_unreachable",
			Message: err.Error(),
		})
	}
}

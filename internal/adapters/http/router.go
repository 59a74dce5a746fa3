// Package http exposes the session to a local rendering layer.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Controller is the part of the orchestrator the API drives.
type Controller interface {
	Join(ctx context.Context, room, userName string) error
	HangUp() error
	ToggleAudio() (bool, error)
	ToggleVideo() (bool, error)
	SendChat(text string) (domain.ChatMessage, error)
	CopyRoomLink() (string, error)
	Session() orch.SessionView
	Participants() []app.ParticipantView
	Chat() []domain.ChatMessage
}

type joinRequest struct {
	Room     string `json:"room"`
	UserName string `json:"userName"`
}

type chatRequest struct {
	Text string `json:"text"`
}

func SetupRouter(mode string, ctl Controller) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")

	api.GET("/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Session())
	})
	api.GET("/participants", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"participants": ctl.Participants()})
	})
	api.GET("/chat", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"messages": ctl.Chat()})
	})
	api.GET("/room-link", func(c *gin.Context) {
		link, err := ctl.CopyRoomLink()
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"link": link})
	})

	api.POST("/join", func(c *gin.Context) {
		var req joinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		if err := ctl.Join(c.Request.Context(), req.Room, req.UserName); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, ctl.Session())
	})
	api.POST("/chat", func(c *gin.Context) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		msg, err := ctl.SendChat(req.Text)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	})
	api.POST("/audio/toggle", func(c *gin.Context) {
		on, err := ctl.ToggleAudio()
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"audioEnabled": on})
	})
	api.POST("/video/toggle", func(c *gin.Context) {
		on, err := ctl.ToggleVideo()
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"videoEnabled": on})
	})
	api.POST("/hangup", func(c *gin.Context) {
		if err := ctl.HangUp(); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	log.Info().Str("module", "adapters.http").Str("mode", mode).Msg("router setup")
	return r
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	var (
		merr *domain.MediaAcquisitionError
		serr *domain.SignalingChannelError
	)
	switch {
	case errors.Is(err, domain.ErrUsernameEmpty), errors.Is(err, domain.ErrUsernameTooLong),
		errors.Is(err, domain.ErrRoomEmpty), errors.Is(err, domain.ErrRoomTooLong),
		errors.Is(err, domain.ErrChatEmpty), errors.Is(err, domain.ErrChatTooLong):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyInCall), errors.Is(err, domain.ErrNotInCall),
		errors.Is(err, domain.ErrJoinCancelled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrChatRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &merr):
		return http.StatusServiceUnavailable
	case errors.As(err, &serr):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

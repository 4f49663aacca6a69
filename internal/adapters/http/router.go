// Package http is the local control surface. The chat page's call buttons
// post here; every decision stays inside the engine.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/app"
	"github.com/dkeye/Call/internal/config"
	"github.com/dkeye/Call/internal/domain"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags each browser tab using the control surface
// with a stable token for log correlation.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type startRequest struct {
	ConversationID string `json:"conversation_id"`
	Kind           string `json:"kind"`
	TargetPublicID string `json:"target_public_id"`
	TargetName     string `json:"target_name"`
	AvatarURL      string `json:"avatar_url"`
}

type peerRequest struct {
	FromPublicID string `json:"from_public_id"`
}

func SetupRouter(cfg *config.Config, eng *app.Engine) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CallSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api/call")

	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, eng.State())
	})

	api.POST("/start", func(c *gin.Context) {
		var req startRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		conv := domain.Conversation{
			ID:   domain.ConversationID(req.ConversationID),
			Kind: domain.ParseKind(req.Kind),
			Peer: domain.PublicID(req.TargetPublicID),
		}
		if err := eng.StartCall(conv, req.TargetName, req.AvatarURL); err != nil {
			status := http.StatusConflict
			if errors.Is(err, app.ErrGroupCallUnsupported) || errors.Is(err, app.ErrNoCallTarget) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, eng.State())
	})

	api.POST("/accept", func(c *gin.Context) {
		from := peerFrom(c, eng)
		if from == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no caller to accept"})
			return
		}
		if err := eng.Accept(from); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, eng.State())
	})

	api.POST("/reject", func(c *gin.Context) {
		from := peerFrom(c, eng)
		if from == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no caller to reject"})
			return
		}
		eng.Reject(from)
		c.JSON(http.StatusOK, eng.State())
	})

	api.POST("/end", func(c *gin.Context) {
		eng.HangUp()
		c.JSON(http.StatusOK, eng.State())
	})

	api.POST("/mute", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"muted": eng.ToggleMute()})
	})

	return r
}

// peerFrom reads the peer from the request body, falling back to the call
// target currently tracked by the engine.
func peerFrom(c *gin.Context, eng *app.Engine) domain.PublicID {
	var req peerRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.FromPublicID != "" {
		return domain.PublicID(req.FromPublicID)
	}
	return domain.PublicID(eng.State().Target)
}

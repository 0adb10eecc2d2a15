package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emochat/internal/metrics"
	"emochat/internal/session"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(metrics.GinMiddleware())

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	reg := r.Group("/registrations")
	{
		reg.POST("", s.createRegistrationHandler)
		reg.GET("/:id", s.withSession(func(c *gin.Context, sess *session.Session) (session.View, error) {
			return sess.View(c.Request.Context())
		}))
		reg.DELETE("/:id", s.deleteRegistrationHandler)

		reg.POST("/:id/activate", s.withSession(func(c *gin.Context, sess *session.Session) (session.View, error) {
			return sess.Activate(c.Request.Context())
		}))
		reg.POST("/:id/deactivate", s.withSession(func(c *gin.Context, sess *session.Session) (session.View, error) {
			return sess.Deactivate(c.Request.Context())
		}))
		reg.PATCH("/:id/fields", s.updateFieldsHandler)
		reg.POST("/:id/send-code", s.withSession(func(c *gin.Context, sess *session.Session) (session.View, error) {
			return sess.SendCode(c.Request.Context())
		}))
		reg.POST("/:id/verify-code", s.withSession(func(c *gin.Context, sess *session.Session) (session.View, error) {
			return sess.VerifyCode(c.Request.Context())
		}))
		reg.POST("/:id/privacy-policy/toggle", s.withSession(func(c *gin.Context, sess *session.Session) (session.View, error) {
			return sess.TogglePrivacyPolicy(c.Request.Context())
		}))
		reg.POST("/:id/privacy-policy/agree", s.withSession(func(c *gin.Context, sess *session.Session) (session.View, error) {
			return sess.AgreePrivacyPolicy(c.Request.Context())
		}))
		reg.POST("/:id/submit", s.withSession(func(c *gin.Context, sess *session.Session) (session.View, error) {
			return sess.Submit(c.Request.Context())
		}))
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	count := s.sessions.Count()
	metrics.SetLiveSessions(count)

	dbHealth := s.db.Health()
	status := http.StatusOK
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"database": dbHealth,
		"sessions": count,
	})
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// sessionAction runs one operation on a looked up session
type sessionAction func(c *gin.Context, sess *session.Session) (session.View, error)

func (s *Server) lookup(c *gin.Context) (*session.Session, bool) {
	sess, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) withSession(action sessionAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookup(c)
		if !ok {
			return
		}
		view, err := action(c, sess)
		if err != nil {
			s.writeError(c, err)
			return
		}
		s.writeView(c, http.StatusOK, view)
	}
}

func (s *Server) writeView(c *gin.Context, status int, v session.View) {
	resp := newViewResponse(v)
	if resp.Event != nil {
		metrics.RecordRegistrationEvent(resp.Event.Type)
	}
	c.JSON(status, resp)
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionClosed):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: session.ErrSessionNotFound.Error()})
	case errors.Is(err, session.ErrManagerClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Service is shutting down",
			Code:  "SHUTTING_DOWN",
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Request cancelled before completion",
			Code:  "CANCELLED",
		})
	default:
		s.logger.Error("Registration request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Internal server error",
			Code:  "INTERNAL",
		})
	}
}

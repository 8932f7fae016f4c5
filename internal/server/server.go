package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gatekeeper-bot/internal/audit"
	"gatekeeper-bot/internal/messaging"
)

// HealthBody is served on GET /
const HealthBody = "gatekeeper-bot is running"

// Parser authenticates and decodes a webhook delivery
type Parser interface {
	Parse(r *http.Request) ([]messaging.Event, error)
}

// Dispatcher handles decoded events
type Dispatcher interface {
	Dispatch(ctx context.Context, ev messaging.Event)
}

// AuditLog lists recent verification transitions
type AuditLog interface {
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Deps wires the server's collaborators. Parser, Events and Audit are
// optional; their routes are only registered when set. Events and Audit
// expose member IDs and are served only to callers presenting APIToken.
type Deps struct {
	Parser     Parser
	Dispatcher Dispatcher
	Events     http.Handler
	Audit      AuditLog
	APIToken   string
	Logger     *zap.Logger
}

// NewRouter builds the gin engine
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestID(),
		ginzap.GinzapWithConfig(logger, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			Context: func(c *gin.Context) []zapcore.Field {
				return []zapcore.Field{zap.String("request_id", c.GetString(requestIDKey))}
			},
		}),
	)

	h := &handler{deps: deps, logger: logger}

	// GET /			-> health check
	router.GET("/", h.health)

	if deps.Parser != nil {
		// POST /callback	-> platform webhook
		router.POST("/callback", h.callback)
	}
	if deps.Events != nil {
		// GET /events		-> websocket feed of verification transitions
		router.GET("/events", requireToken(deps.APIToken), gin.WrapH(deps.Events))
	}
	if deps.Audit != nil {
		// GET /audit?limit=N	-> recent verification transitions
		router.GET("/audit", requireToken(deps.APIToken), h.recent)
	}

	return router
}

const requestIDKey = "requestID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestIDKey, uuid.NewString())
		c.Next()
	}
}

// requireToken accepts "Authorization: Bearer <token>" or, for browser
// websockets that cannot set headers, a token query parameter. An empty
// token locks the route.
func requireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.Query("token")
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				got = parts[1]
			}
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "unauthorized",
				"requestID": c.GetString(requestIDKey),
			})
			return
		}
		c.Next()
	}
}

type handler struct {
	deps   Deps
	logger *zap.Logger
}

func (h *handler) health(c *gin.Context) {
	c.String(http.StatusOK, HealthBody)
}

// callback rejects unauthenticated deliveries with 400. Once a delivery is
// accepted the platform always gets 200, whatever the handlers did, so it
// never retries an application-level fault.
func (h *handler) callback(c *gin.Context) {
	events, err := h.deps.Parser.Parse(c.Request)
	if err != nil {
		h.logger.Error("rejecting webhook", zap.Error(err), zap.String("request_id", c.GetString(requestIDKey)))
		c.String(http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	ctx := c.Request.Context()
	for _, ev := range events {
		h.deps.Dispatcher.Dispatch(ctx, ev)
	}
	c.String(http.StatusOK, "OK")
}

func (h *handler) recent(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	events, err := h.deps.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list audit events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Server runs the router until its context is canceled
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// New creates a server listening on port
func New(router http.Handler, port int, shutdownTimeout time.Duration, logger *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

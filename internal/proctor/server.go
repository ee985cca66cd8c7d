package proctor

import (
	"context"
	_ "embed"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/middleware"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/watchdog"
	ws "github.com/stemsi/exstem-client/internal/websocket"
)

//go:embed kiosk.html
var kioskPage []byte

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Server serves the kiosk page and its WebSocket.
type Server struct {
	bridge   *Bridge
	cfg      *config.Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
	limiter  *middleware.RateLimiter
	engine   *gin.Engine
}

// NewServer wires the routes for bridge.
func NewServer(cfg *config.Config, bridge *Bridge, log zerolog.Logger) *Server {
	s := &Server{
		bridge:   bridge,
		cfg:      cfg,
		log:      log.With().Str("component", "proctor_server").Logger(),
		upgrader: buildUpgrader(cfg.AllowedOrigins),
		limiter:  middleware.NewRateLimiter(10, time.Minute),
	}
	s.engine = s.router()
	return s
}

// Handler exposes the routes, for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) router() *gin.Engine {
	if s.cfg.GinMode != "" {
		gin.SetMode(s.cfg.GinMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	corsConfig := cors.DefaultConfig()
	if len(s.cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	r.Use(response.RequestIDMiddleware())
	r.Use(middleware.RequestLogger(s.log))
	r.Use(middleware.Brotli())

	r.GET("/health", s.health)
	r.GET("/", middleware.NoStore(), s.kiosk)
	r.GET("/ws/proctor", s.limiter.Middleware(), s.stream)
	return r
}

func (s *Server) health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status":    "ok",
		"kiosk":     s.bridge.Connected(),
		"listeners": s.bridge.Subscribers(),
	})
}

func (s *Server) kiosk(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", kioskPage)
}

// stream upgrades to the kiosk WebSocket and forwards its events to the
// bridge until the page goes away.
func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s.bridge.attach(conn)
	defer s.bridge.detach(conn)

	wsLog := s.log.With().Str("remote", c.ClientIP()).Logger()
	wsLog.Info().Msg("Kiosk connected")

	ctx := c.Request.Context()
	for {
		var msg ws.EventMessage
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if msg.Event == ws.EventPing {
			_ = s.bridge.write(conn, ws.CommandMessage{Command: ws.CommandPong})
			continue
		}

		sig, err := watchdog.ParseSignal(string(msg.Event))
		if err != nil {
			wsLog.Warn().Str("event", string(msg.Event)).Msg("Unknown event")
			_ = s.bridge.write(conn, ws.ErrorMessage{Command: ws.CommandError, Error: "unknown event: " + string(msg.Event)})
			continue
		}
		wsLog.Debug().Str("event", string(sig)).Msg("Kiosk event")
		s.bridge.publish(ctx, sig)
	}
}

// ListenAndServe serves on cfg.ProctorAddr until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ProctorAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.limiter.Janitor(ctx)

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("Proctor bridge listening")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by Shutdown.
	s.bridge.closeKiosk()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("Proctor bridge shutdown error")
		return err
	}
	return nil
}

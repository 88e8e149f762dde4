// Package web provides the operator dashboard: a REST surface for mode
// toggles plus live websocket feeds for status and trigger outcomes.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/strayware/go-collar/internal/log"
	"github.com/strayware/go-collar/pkg/hub"
	"github.com/strayware/go-collar/pkg/monitor"
	"github.com/strayware/go-collar/pkg/session"
	"github.com/strayware/go-collar/pkg/trigger"
)

const outcomeBuffer = 100

// statusBroadcastPeriod paces the /ws/status feed.
const statusBroadcastPeriod = time.Second

// State is the dashboard's status snapshot.
type State struct {
	Modes    map[string]bool  `json:"modes"`
	Monitors []monitor.Status `json:"monitors"`
}

// Server is the dashboard server.
type Server struct {
	app  *fiber.App
	addr string
	sess *session.Session

	// Outcome buffer (last outcomeBuffer entries)
	outcomes   []trigger.Outcome
	outcomesMu sync.RWMutex

	// Hubs for websocket broadcast
	statusHub  *hub.Hub
	outcomeHub *hub.Hub

	stop chan struct{}
}

// NewServer creates a dashboard server for a session. It hooks the
// coordinator's outcome feed; call it before the session starts firing.
func NewServer(addr string, sess *session.Session) *Server {
	s := &Server{
		addr:       addr,
		sess:       sess,
		outcomes:   make([]trigger.Outcome, 0, outcomeBuffer),
		statusHub:  hub.New("status"),
		outcomeHub: hub.New("outcomes"),
		stop:       make(chan struct{}),
	}

	sess.Coordinator().OnOutcome(s.recordOutcome)

	app := fiber.New(fiber.Config{
		AppName:               "Collar Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/outcomes", s.handleOutcomes)
	api.Post("/modes/:kind", s.handleSetMode)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/outcomes", websocket.New(s.handleOutcomesWS))

	s.app = app
	return s
}

// Start runs the hubs, the status broadcaster and the HTTP listener.
// It blocks until Shutdown.
func (s *Server) Start() error {
	log.Info("web: dashboard listening", "addr", s.addr)

	go s.statusHub.Run()
	go s.outcomeHub.Run()
	go s.broadcastStatus()

	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web: server stopped", "err", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	close(s.stop)
	return s.app.Shutdown()
}

func (s *Server) broadcastStatus() {
	ticker := time.NewTicker(statusBroadcastPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() > 0 {
				s.statusHub.BroadcastJSON(s.state())
			}
		}
	}
}

// recordOutcome buffers a coordinator decision and pushes it to the
// outcome feed. It runs on the coordinator's path, so it must not block.
func (s *Server) recordOutcome(o trigger.Outcome) {
	s.outcomesMu.Lock()
	s.outcomes = append(s.outcomes, o)
	if len(s.outcomes) > outcomeBuffer {
		s.outcomes = s.outcomes[1:]
	}
	s.outcomesMu.Unlock()

	s.outcomeHub.BroadcastJSON(o)
}

func (s *Server) state() State {
	modes := make(map[string]bool)
	for _, k := range trigger.Kinds() {
		modes[k.String()] = s.sess.Coordinator().Enabled(k)
	}
	return State{
		Modes:    modes,
		Monitors: s.sess.Status(),
	}
}

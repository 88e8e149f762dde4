package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/strayware/go-collar/pkg/hub"
	"github.com/strayware/go-collar/pkg/trigger"
)

// handleStatus returns the current mode toggles and monitor snapshots.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.state())
}

// handleOutcomes returns recent coordinator decisions.
func (s *Server) handleOutcomes(c *fiber.Ctx) error {
	s.outcomesMu.RLock()
	defer s.outcomesMu.RUnlock()
	return c.JSON(s.outcomes)
}

// SetModeRequest is the request body for toggling a mode.
type SetModeRequest struct {
	Enabled bool `json:"enabled"`
}

// handleSetMode toggles one trigger kind mid-session.
func (s *Server) handleSetMode(c *fiber.Ctx) error {
	kind, ok := kindByName(c.Params("kind"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown mode: " + c.Params("kind"),
		})
	}

	var req SetModeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.sess.Coordinator().SetEnabled(kind, req.Enabled)
	return c.JSON(fiber.Map{
		"mode":    kind.String(),
		"enabled": req.Enabled,
	})
}

func kindByName(name string) (trigger.Kind, bool) {
	for _, k := range trigger.Kinds() {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// handleStatusWS serves the live status feed.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)

	// Send the current snapshot before the periodic feed takes over.
	c.WriteJSON(s.state())

	client.Run()
}

// handleOutcomesWS serves the live trigger feed.
func (s *Server) handleOutcomesWS(c *websocket.Conn) {
	client := hub.NewClient(s.outcomeHub, c)

	s.outcomesMu.RLock()
	for _, o := range s.outcomes {
		c.WriteJSON(o)
	}
	s.outcomesMu.RUnlock()

	client.Run()
}

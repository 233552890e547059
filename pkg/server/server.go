// Package server exposes the telephony webhook and audio delivery
// endpoints over HTTP.
package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/relayvoice/relay/internal/log"
	"github.com/relayvoice/relay/pkg/ambient"
	"github.com/relayvoice/relay/pkg/audiocache"
	"github.com/relayvoice/relay/pkg/call"
	"github.com/relayvoice/relay/pkg/hub"
	"github.com/relayvoice/relay/pkg/twiml"
)

const xmlContentType = "text/xml; charset=utf-8"

// Version is reported on the health endpoint.
const Version = "1.0.0"

// Server is the HTTP front for the call pipeline.
type Server struct {
	app    *fiber.App
	port   string
	orch   *call.Orchestrator
	cache  *audiocache.Cache
	events *hub.Hub
}

// New wires the routes. The orchestrator, cache, and events hub are
// constructed once at process startup and shared across requests.
func New(port string, orch *call.Orchestrator, cache *audiocache.Cache, events *hub.Hub) *Server {
	s := &Server{
		port:   port,
		orch:   orch,
		cache:  cache,
		events: events,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Relay Voice",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Post("/voice", s.handleVoice)
	app.Get("/voice/audio/:id", s.handleAudio)
	app.Get("/voice/ambient", s.handleAmbient)
	app.Get("/health", s.handleHealth)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the events hub and blocks serving HTTP.
func (s *Server) Start() error {
	go s.events.Run()
	log.Info("listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown gracefully stops the server and disconnects event clients.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.events.Stop()
	return err
}

// handleVoice is the per-turn webhook. The provider posts the recording
// reference here and receives the next instruction document.
func (s *Server) handleVoice(c *fiber.Ctx) error {
	wh := call.Webhook{
		CallID:       c.Query("call"),
		AgentID:      c.Query("agent"),
		RecordingURL: c.FormValue("RecordingUrl"),
	}

	resp := s.orch.Handle(c.UserContext(), wh)
	return sendXML(c, resp)
}

// handleAudio serves a cached asset exactly once.
func (s *Server) handleAudio(c *fiber.Ctx) error {
	id := c.Params("id")
	buf, ok := s.cache.Take(id)
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}
	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send(buf)
}

// handleAmbient serves the hold-music loop. The buffer never changes
// within a process, so clients may cache it for a day.
func (s *Server) handleAmbient(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "audio/wav")
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(ambient.Loop())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":        "ok",
		"version":       Version,
		"cached_assets": s.cache.Len(),
		"event_clients": s.events.ClientCount(),
	})
}

func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.events, conn)
	client.Run()
}

func sendXML(c *fiber.Ctx, resp *twiml.Response) error {
	out, err := resp.Render()
	if err != nil {
		log.Error("render instruction document", "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	c.Set(fiber.HeaderContentType, xmlContentType)
	return c.SendString(out)
}

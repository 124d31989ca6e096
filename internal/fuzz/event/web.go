package event

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
)

// wireEvent is the JSON envelope broadcast to every connected websocket
// client, mirroring the {"type": ..., "data": ...} shape a conventional
// fiber-backed live dashboard uses.
type wireEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WebEventManager serves live fuzzing stats and events over HTTP/websocket:
// GET /api/stats for a poll-based snapshot, GET /ws for a push feed.
// Grounded on the fiber App + websocket broadcast-channel pattern of a
// conventional Go web dashboard server.
type WebEventManager struct {
	app   *fiber.App
	stats *Stats

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	broadcast chan wireEvent
}

// NewWebEventManager builds a WebEventManager with routes registered but not
// yet listening; call Start to bind a port.
func NewWebEventManager() *WebEventManager {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	m := &WebEventManager{
		app:       app,
		stats:     NewStats(),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan wireEvent, 256),
	}
	m.setupRoutes()
	go m.pump()
	return m
}

// Stats returns a snapshot of this server's counters, for a supervisor
// aggregating several clients' stats into one combined view.
func (m *WebEventManager) Stats() Stats {
	return m.stats.Snapshot()
}

func (m *WebEventManager) setupRoutes() {
	m.app.Use(cors.New())

	m.app.Get("/api/stats", func(c *fiber.Ctx) error {
		return c.JSON(m.stats.Snapshot())
	})

	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))
}

func (m *WebEventManager) handleWebSocket(c *websocket.Conn) {
	m.clientsMu.Lock()
	m.clients[c] = true
	m.clientsMu.Unlock()

	defer func() {
		m.clientsMu.Lock()
		delete(m.clients, c)
		m.clientsMu.Unlock()
		c.Close()
	}()

	data, _ := json.Marshal(wireEvent{Type: "stats", Data: m.stats.Snapshot()})
	c.WriteMessage(websocket.TextMessage, data)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

func (m *WebEventManager) pump() {
	for ev := range m.broadcast {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		m.clientsMu.Lock()
		for client := range m.clients {
			if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
				client.Close()
				delete(m.clients, client)
			}
		}
		m.clientsMu.Unlock()
	}
}

func (m *WebEventManager) send(ev wireEvent) {
	select {
	case m.broadcast <- ev:
	default:
	}
}

func (m *WebEventManager) FireNewTestcase(idx int, tc *corpus.Testcase) {
	m.stats.RecordNewTestcase()
	m.send(wireEvent{Type: "new_testcase", Data: fiber.Map{
		"index": idx, "size": len(tc.Input.Bytes()), "hash": tc.Input.Hash(),
	}})
}

func (m *WebEventManager) FireSolution(idx int, tc *corpus.Testcase) {
	m.stats.RecordSolution()
	m.send(wireEvent{Type: "solution", Data: fiber.Map{
		"index": idx, "size": len(tc.Input.Bytes()), "hash": tc.Input.Hash(),
	}})
}

func (m *WebEventManager) FireCrash(tc *corpus.Testcase) {
	m.stats.RecordCrash()
	m.send(wireEvent{Type: "crash", Data: fiber.Map{
		"size": len(tc.Input.Bytes()), "hash": tc.Input.Hash(),
	}})
}

// ProcessEvents refreshes the execution counter and broadcasts a fresh
// stats snapshot, standing in for the periodic stats push a live dashboard
// client expects.
func (m *WebEventManager) ProcessEvents(state *fuzzstate.State, exec executor.Executor, sched corpus.Scheduler) error {
	m.stats.SetExecutions(state.Executions())
	m.send(wireEvent{Type: "stats", Data: m.stats.Snapshot()})
	return nil
}

// Start binds addr and blocks serving HTTP/websocket traffic.
func (m *WebEventManager) Start(addr string) error {
	return m.app.Listen(addr)
}

// Stop gracefully shuts the server down.
func (m *WebEventManager) Stop() error {
	return m.app.Shutdown()
}

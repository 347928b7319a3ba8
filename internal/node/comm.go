package node

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"RoverCore/internal/model"
	"RoverCore/internal/parser"
	"RoverCore/internal/util"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Comm bridges the controller link onto the router. It runs a websocket
// server for one controller at a time; inbound binary frames are decoded and
// handed to the router, outbound messages are encoded and written back.
// Liveness probes are answered here without touching the router.
type Comm struct {
	log  *zap.SugaredLogger
	out  Sender
	addr string

	server *http.Server

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewComm builds the bridge. An empty listen address disables the server and
// leaves the node consuming (and discarding) outbound traffic.
func NewComm(out Sender, addr string) *Comm {
	return &Comm{log: util.NewLogger("comm"), out: out, addr: addr}
}

// Run starts the listener and forwards outbound messages until killed.
func (c *Comm) Run(in <-chan model.Message) error {
	if c.addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", c.handleWS)
		c.server = &http.Server{Addr: c.addr, Handler: mux}
		go func() {
			c.log.Infow("controller link listening", "addr", c.addr)
			if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				c.log.Errorw("controller link server failed", "error", err)
			}
		}()
	}

	for m := range in {
		if m.Kind() == model.KindKill {
			c.log.Infow("comm node stopping")
			c.shutdown()
			return nil
		}
		c.writeToController(m)
	}
	c.shutdown()
	return nil
}

// handleWS serves one controller connection. A newcomer replaces any stale
// connection rather than being refused, since the controller reconnects
// after network drops.
func (c *Comm) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()
	c.log.Infow("controller connected", "remote", conn.RemoteAddr())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		m, err := parser.DecodeFrame(data)
		if err != nil {
			c.log.Errorw("bad controller frame dropped", "error", err)
			continue
		}
		if m.Kind() == model.KindOK {
			// liveness probe, answered in place
			c.writeToController(model.NewMessage(model.NodeComm, model.NodeController, model.OKPayload{Text: "ok"}))
			continue
		}
		if err := c.out.Send(m); err != nil {
			c.log.Errorw("send failed", "kind", m.Kind(), "error", err)
		}
	}

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
	c.log.Infow("controller disconnected", "remote", conn.RemoteAddr())
}

// writeToController encodes a message and sends it down the live connection,
// if any. Traffic while no controller is attached is dropped quietly.
func (c *Comm) writeToController(m model.Message) {
	frame, err := parser.EncodeFrame(m)
	if err != nil {
		c.log.Errorw("frame encode failed", "kind", m.Kind(), "error", err)
		return
	}

	// the lock also serializes writers; gorilla permits only one at a time
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.log.Warnw("controller write failed", "error", err)
	}
}

func (c *Comm) shutdown() {
	if c.server != nil {
		_ = c.server.Close()
	}
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

package display

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
)

const (
	jpegQuality  = 80
	writeTimeout = 2 * time.Second

	// clientBacklog is how many previews may wait for a slow client before newer
	// ones are dropped for it.
	clientBacklog = 8
)

// Message is one preview frame sent to websocket clients.
type Message struct {
	Stream string `json:"stream"`
	Image  string `json:"image"` // base64 JPEG
}

// WebSocket serves live previews of the displayed streams.
//
// Endpoints:
//   - /ws: websocket; every Show is broadcast as a JSON Message. A client that
//     falls behind misses previews. Any message a client sends is queued as an
//     interrupt, keyed by its first byte.
//   - /snapshot?stream=<label>: the latest JPEG of one stream.
//   - /streams: JSON list of the streams shown so far.
type WebSocket struct {
	interrupts

	logger   *slog.Logger
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool
	latest  map[string][]byte
}

// client is one connected browser. Only its writer goroutine writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, clientBacklog),
		done: make(chan struct{}),
	}
}

// writeLoop delivers queued previews until the client is closed or a write fails.
func (c *client) writeLoop(logger *slog.Logger) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warn("dropping preview client", "remote", c.conn.RemoteAddr().String(), "error", err)
				c.close()
				return
			}
		}
	}
}

// queue hands msg to the writer without blocking. It reports false when the
// client's backlog is full and msg was dropped.
func (c *client) queue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewWebSocket starts serving on addr (host:port; port 0 picks a free port).
func NewWebSocket(addr string, logger *slog.Logger) (*WebSocket, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ws := &WebSocket{
		interrupts: newInterrupts(),
		logger:     logger.With("display", KindWebSocket),
		listener:   ln,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
		latest:  make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.handleWS)
	mux.HandleFunc("/snapshot", ws.handleSnapshot)
	mux.HandleFunc("/streams", ws.handleStreams)
	ws.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ws.logger.Error("preview server stopped", "error", err)
		}
	}()
	ws.logger.Info("serving previews", "addr", ln.Addr().String())

	return ws, nil
}

// Addr returns the address the server listens on.
func (ws *WebSocket) Addr() string {
	return ws.listener.Addr().String()
}

// Show encodes img as JPEG, stores it as the latest image of label and broadcasts it.
func (ws *WebSocket) Show(label string, img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", label, err)
	}
	jpeg := buf.Bytes()

	msg, err := json.Marshal(Message{Stream: label, Image: base64.StdEncoding.EncodeToString(jpeg)})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", label, err)
	}

	ws.mu.Lock()
	ws.latest[label] = jpeg
	clients := make([]*client, 0, len(ws.clients))
	for c := range ws.clients {
		clients = append(clients, c)
	}
	ws.mu.Unlock()

	// Slow clients miss previews instead of stalling the pipeline.
	for _, c := range clients {
		if !c.queue(msg) {
			ws.logger.Debug("preview dropped for slow client", "remote", c.conn.RemoteAddr().String(), "stream", label)
		}
	}
	return nil
}

// Clients returns the number of connected websocket clients.
func (ws *WebSocket) Clients() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.clients)
}

// PollInterrupt waits up to timeout for a client message.
func (ws *WebSocket) PollInterrupt(timeout time.Duration) (int, bool) {
	return ws.poll(timeout)
}

// Close stops the server and disconnects every client.
func (ws *WebSocket) Close() error {
	err := ws.server.Close()

	ws.mu.Lock()
	for c := range ws.clients {
		c.close()
		delete(ws.clients, c)
	}
	ws.mu.Unlock()

	return err
}

func (ws *WebSocket) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn)
	ws.mu.Lock()
	ws.clients[c] = true
	ws.mu.Unlock()
	ws.logger.Debug("preview client connected", "remote", conn.RemoteAddr().String())

	go c.writeLoop(ws.logger)
	defer func() {
		ws.mu.Lock()
		delete(ws.clients, c)
		ws.mu.Unlock()
		c.close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		key := KeyInterrupt
		if len(data) > 0 {
			key = int(data[0])
		}
		ws.Interrupt(key)
	}
}

func (ws *WebSocket) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	stream := r.URL.Query().Get("stream")

	ws.mu.RLock()
	jpeg, ok := ws.latest[stream]
	ws.mu.RUnlock()

	if !ok {
		http.Error(w, fmt.Sprintf("no image for stream %q", stream), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpeg)
}

func (ws *WebSocket) handleStreams(w http.ResponseWriter, r *http.Request) {
	ws.mu.RLock()
	streams := make([]string, 0, len(ws.latest))
	for s := range ws.latest {
		streams = append(streams, s)
	}
	ws.mu.RUnlock()
	sort.Strings(streams)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(streams)
}

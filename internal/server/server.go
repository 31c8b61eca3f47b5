// Package server exposes the monitor to browsers and scripts over a
// WebSocket: events are pushed as JSON and commands are read back.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dooshek/decibender/internal/config"
	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/monitor"
	"github.com/dooshek/decibender/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer       = 32
	loudnessInterval = 100 * time.Millisecond
	submitTimeout    = 2 * time.Second
	shutdownTimeout  = 5 * time.Second
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages instead of struct field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
}

// Controller is the part of the monitor the bridge drives.
type Controller interface {
	Submit(ctx context.Context, cmd types.Command) error
	State() types.State
	Loudness() float64
	Thresholds() types.Thresholds
}

type client struct {
	conn *websocket.Conn
	send chan any
}

type Server struct {
	addr     string
	ctl      Controller
	throttle *monitor.Throttle

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(addr string, ctl Controller) *Server {
	return &Server{
		addr:     addr,
		ctl:      ctl,
		throttle: monitor.NewThrottle(loudnessInterval, nil),
		clients:  make(map[*client]struct{}),
	}
}

// Handler returns the routes served by the bridge.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("WebSocket server shutdown: %v", err)
		}
		s.closeClients()
	}()

	logger.Infof("🌐 WebSocket bridge listening on ws://%s/ws", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", err)
		return
	}

	c := &client{conn: conn, send: make(chan any, sendBuffer)}
	c.send <- thresholdsEvent(s.ctl.Thresholds())
	c.send <- stateEvent(s.ctl.State())
	c.send <- loudnessEvent(s.ctl.Loudness())

	s.register(c)
	logger.Debugf("WebSocket client connected: %s", r.RemoteAddr)

	go s.writeLoop(c)
	s.readLoop(r.Context(), c)

	s.unregister(c)
	logger.Debugf("WebSocket client disconnected: %s", r.RemoteAddr)
}

// writeLoop is the only writer on the connection.
func (s *Server) writeLoop(c *client) {
	defer func() {
		if err := c.conn.Close(); err != nil {
			logger.Debugf("WebSocket close error: %v", err)
		}
	}()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			logger.Warnf("WebSocket: malformed command: %v", err)
			trySend(c, Event{Type: "error", Error: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}

		if err := s.handle(ctx, req); err != nil {
			logger.Warnf("WebSocket: rejected %q command: %v", req.Command, err)
			trySend(c, Event{Type: "error", Command: req.Command, Error: err.Error()})
			continue
		}
		trySend(c, Event{Type: "ok", Command: req.Command})
	}
}

func (s *Server) handle(ctx context.Context, req Request) error {
	if err := validate.Struct(req); err != nil {
		return describe(err)
	}

	var cmd types.Command
	switch req.Command {
	case "louder":
		cmd = types.Louder()
	case "quieter":
		cmd = types.Quieter()
	case "thresholds":
		if err := config.ValidateThresholds(*req.Thresholds); err != nil {
			return err
		}
		cmd = types.SetThresholds(*req.Thresholds)
	case "window_seconds":
		cmd = types.SetWindowSeconds(*req.WindowSeconds)
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	if err := s.ctl.Submit(ctx, cmd); err != nil {
		return fmt.Errorf("failed to submit command: %w", err)
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.conn.Close()
	}
}

// broadcast never blocks: a client that cannot keep up misses events.
func (s *Server) broadcast(msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		trySend(c, msg)
	}
}

func trySend(c *client, msg any) {
	select {
	case c.send <- msg:
	default:
		logger.Debug("WebSocket client send buffer full, dropping event")
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) OnLoudness(db float64) error {
	if s.throttle.Allow() {
		s.broadcast(loudnessEvent(db))
	}
	return nil
}

func (s *Server) OnStateChanged(state types.State) error {
	s.broadcast(stateEvent(state))
	return nil
}

func (s *Server) OnThresholds(t types.Thresholds) error {
	s.broadcast(thresholdsEvent(t))
	return nil
}

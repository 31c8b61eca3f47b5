package dbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dooshek/decibender/internal/config"
	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/monitor"
	"github.com/dooshek/decibender/internal/types"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	dbusServiceName = "com.dooshek.decibender"
	dbusObjectPath  = "/com/dooshek/decibender/Monitor"
	dbusInterface   = "com.dooshek.decibender.Monitor"

	loudnessInterval = 100 * time.Millisecond
	submitTimeout    = 2 * time.Second
)

// Controller is the part of the monitor the bridge drives.
type Controller interface {
	Submit(ctx context.Context, cmd types.Command) error
	State() types.State
	Loudness() float64
	Thresholds() types.Thresholds
}

type emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// Server exports the monitor on the session bus and mirrors its events as
// signals.
type Server struct {
	ctl      Controller
	throttle *monitor.Throttle

	mu   sync.Mutex
	conn *dbus.Conn
	emit emitter
}

func NewServer(ctl Controller) *Server {
	return &Server{
		ctl:      ctl,
		throttle: monitor.NewThrottle(loudnessInterval, nil),
	}
}

// Start starts the D-Bus server
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(dbusServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("name %s already taken", dbusServiceName)
	}

	if err := conn.Export(s, dbusObjectPath, dbusInterface); err != nil {
		conn.Close()
		return fmt.Errorf("failed to export object: %w", err)
	}

	err = conn.Export(introspect.NewIntrospectable(introspection()), dbusObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.emit = conn
	s.mu.Unlock()

	logger.Infof("🔌 D-Bus service started: %s", dbusServiceName)
	return nil
}

// Stop releases the bus name and closes the connection.
func (s *Server) Stop() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.emit = nil
	s.mu.Unlock()

	if conn == nil {
		return
	}
	if _, err := conn.ReleaseName(dbusServiceName); err != nil {
		logger.Debugf("D-Bus: failed to release name: %v", err)
	}
	conn.Close()
	logger.Info("D-Bus service stopped")
}

func introspection() *introspect.Node {
	return &introspect.Node{
		Name: dbusObjectPath,
		Interfaces: []introspect.Interface{{
			Name: dbusInterface,
			Methods: []introspect.Method{
				{Name: "Louder"},
				{Name: "Quieter"},
				{
					Name: "SetThresholds",
					Args: []introspect.Arg{
						{Name: "too_loud", Type: "d", Direction: "in"},
						{Name: "too_quiet", Type: "d", Direction: "in"},
						{Name: "grace", Type: "d", Direction: "in"},
					},
				},
				{
					Name: "SetWindowSeconds",
					Args: []introspect.Arg{
						{Name: "seconds", Type: "d", Direction: "in"},
					},
				},
				{
					Name: "GetState",
					Args: []introspect.Arg{
						{Name: "state", Type: "s", Direction: "out"},
						{Name: "loudness", Type: "d", Direction: "out"},
					},
				},
				{
					Name: "GetThresholds",
					Args: []introspect.Arg{
						{Name: "too_loud", Type: "d", Direction: "out"},
						{Name: "too_quiet", Type: "d", Direction: "out"},
						{Name: "grace", Type: "d", Direction: "out"},
					},
				},
			},
			Signals: []introspect.Signal{
				{Name: "Loudness", Args: []introspect.Arg{{Name: "db", Type: "d"}}},
				{Name: "StateChanged", Args: []introspect.Arg{{Name: "state", Type: "s"}}},
				{
					Name: "ThresholdsChanged",
					Args: []introspect.Arg{
						{Name: "too_loud", Type: "d"},
						{Name: "too_quiet", Type: "d"},
						{Name: "grace", Type: "d"},
					},
				},
			},
		}},
	}
}

// Louder raises both thresholds by one step (D-Bus method)
func (s *Server) Louder() *dbus.Error {
	logger.Debug("D-Bus: Louder called")
	return s.submit(types.Louder())
}

// Quieter lowers both thresholds by one step (D-Bus method)
func (s *Server) Quieter() *dbus.Error {
	logger.Debug("D-Bus: Quieter called")
	return s.submit(types.Quieter())
}

// SetThresholds replaces the thresholds (D-Bus method)
func (s *Server) SetThresholds(tooLoud, tooQuiet, grace float64) *dbus.Error {
	t := types.Thresholds{TooLoud: tooLoud, TooQuiet: tooQuiet, Grace: grace}
	if err := config.ValidateThresholds(t); err != nil {
		logger.Warnf("D-Bus: rejected SetThresholds: %v", err)
		return dbus.MakeFailedError(err)
	}
	return s.submit(types.SetThresholds(t))
}

// SetWindowSeconds changes the averaging window (D-Bus method)
func (s *Server) SetWindowSeconds(seconds float64) *dbus.Error {
	if err := config.ValidateWindowSeconds(seconds); err != nil {
		logger.Warnf("D-Bus: rejected SetWindowSeconds: %v", err)
		return dbus.MakeFailedError(err)
	}
	return s.submit(types.SetWindowSeconds(seconds))
}

// GetState returns the reaction state and the latest loudness (D-Bus method)
func (s *Server) GetState() (string, float64, *dbus.Error) {
	return s.ctl.State().String(), s.ctl.Loudness(), nil
}

// GetThresholds returns the current thresholds (D-Bus method)
func (s *Server) GetThresholds() (float64, float64, float64, *dbus.Error) {
	t := s.ctl.Thresholds()
	return t.TooLoud, t.TooQuiet, t.Grace, nil
}

func (s *Server) submit(cmd types.Command) *dbus.Error {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	if err := s.ctl.Submit(ctx, cmd); err != nil {
		logger.Errorf("D-Bus: failed to submit %s", err, cmd.Kind)
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (s *Server) OnLoudness(db float64) error {
	if !s.throttle.Allow() {
		return nil
	}
	s.emitSignal("Loudness", db)
	return nil
}

func (s *Server) OnStateChanged(state types.State) error {
	s.emitSignal("StateChanged", state.String())
	return nil
}

func (s *Server) OnThresholds(t types.Thresholds) error {
	s.emitSignal("ThresholdsChanged", t.TooLoud, t.TooQuiet, t.Grace)
	return nil
}

// emitSignal is best effort: a bus hiccup must not stop monitoring.
func (s *Server) emitSignal(name string, args ...interface{}) {
	s.mu.Lock()
	emit := s.emit
	s.mu.Unlock()

	if emit == nil {
		return
	}

	if err := emit.Emit(dbusObjectPath, dbusInterface+"."+name, args...); err != nil {
		logger.Errorf("D-Bus: Failed to emit signal %s", err, name)
		return
	}
	logger.Debugf("D-Bus: Emitted signal: %s", name)
}

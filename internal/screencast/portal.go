package screencast

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

const (
	portalBus       = "org.freedesktop.portal.Desktop"
	portalPath      = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	screenCastIface = "org.freedesktop.portal.ScreenCast"
	requestIface    = "org.freedesktop.portal.Request"
	sessionIface    = "org.freedesktop.portal.Session"
)

// Source types accepted by SelectSources.
const (
	SourceMonitor uint32 = 1
	SourceWindow  uint32 = 2
)

const (
	cursorHidden   uint32 = 1
	cursorEmbedded uint32 = 2
)

// ErrPortalDenied is returned when the user dismisses the share dialog.
var ErrPortalDenied = errors.New("screen cast request was denied")

// Stream is a granted PipeWire stream. Close ends the portal session and
// may be called more than once.
type Stream struct {
	NodeID uint32
	Remote *os.File

	close    func() error
	once     sync.Once
	closeErr error
}

func NewStream(nodeID uint32, remote *os.File, close func() error) *Stream {
	return &Stream{NodeID: nodeID, Remote: remote, close: close}
}

func (s *Stream) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	s.once.Do(func() { s.closeErr = s.close() })
	return s.closeErr
}

// SelectOptions configures which sources the portal offers.
type SelectOptions struct {
	Types  uint32
	Cursor bool
}

// Portal negotiates a screen cast stream.
type Portal interface {
	Open(ctx context.Context, opts SelectOptions) (*Stream, error)
}

// DBusPortal talks to xdg-desktop-portal on the session bus.
type DBusPortal struct{}

func NewDBusPortal() *DBusPortal {
	return &DBusPortal{}
}

type portalStream struct {
	NodeID     uint32
	Properties map[string]dbus.Variant
}

func (p *DBusPortal) Open(ctx context.Context, opts SelectOptions) (*Stream, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	s := &portalSession{conn: conn, obj: conn.Object(portalBus, portalPath)}
	stream, err := s.negotiate(ctx, opts)
	if err != nil {
		s.close()
		return nil, err
	}
	return stream, nil
}

type portalSession struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	handle dbus.ObjectPath
	closed bool
}

func (s *portalSession) negotiate(ctx context.Context, opts SelectOptions) (*Stream, error) {
	if opts.Types == 0 {
		opts.Types = SourceMonitor
	}

	results, err := s.request(ctx, "CreateSession", func(token string) []interface{} {
		return []interface{}{map[string]dbus.Variant{
			"handle_token":         dbus.MakeVariant(token),
			"session_handle_token": dbus.MakeVariant(newToken()),
		}}
	})
	if err != nil {
		return nil, fmt.Errorf("create screen cast session: %w", err)
	}
	handle, ok := results["session_handle"].Value().(string)
	if !ok || handle == "" {
		return nil, errors.New("create screen cast session: portal returned no session handle")
	}
	s.handle = dbus.ObjectPath(handle)

	cursor := cursorHidden
	if opts.Cursor {
		cursor = cursorEmbedded
	}
	if _, err := s.request(ctx, "SelectSources", func(token string) []interface{} {
		return []interface{}{s.handle, map[string]dbus.Variant{
			"handle_token": dbus.MakeVariant(token),
			"types":        dbus.MakeVariant(opts.Types),
			"multiple":     dbus.MakeVariant(false),
			"cursor_mode":  dbus.MakeVariant(cursor),
		}}
	}); err != nil {
		return nil, fmt.Errorf("select screen cast sources: %w", err)
	}

	results, err = s.request(ctx, "Start", func(token string) []interface{} {
		return []interface{}{s.handle, "", map[string]dbus.Variant{
			"handle_token": dbus.MakeVariant(token),
		}}
	})
	if err != nil {
		return nil, fmt.Errorf("start screen cast: %w", err)
	}
	nodeID, err := firstNodeID(results)
	if err != nil {
		return nil, err
	}

	var fd dbus.UnixFD
	call := s.obj.CallWithContext(ctx, screenCastIface+".OpenPipeWireRemote", 0, s.handle, map[string]dbus.Variant{})
	if err := call.Store(&fd); err != nil {
		return nil, fmt.Errorf("open pipewire remote: %w", err)
	}

	return NewStream(nodeID, os.NewFile(uintptr(fd), "pipewire-remote"), s.close), nil
}

// request calls a portal method that answers through a Request object and
// waits for its Response signal.
func (s *portalSession) request(ctx context.Context, method string, args func(token string) []interface{}) (map[string]dbus.Variant, error) {
	token := newToken()
	path := requestPath(s.conn.Names()[0], token)

	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(requestIface),
		dbus.WithMatchMember("Response"),
	}
	if err := s.conn.AddMatchSignalContext(ctx, match...); err != nil {
		return nil, err
	}
	defer func() { _ = s.conn.RemoveMatchSignal(match...) }()

	signals := make(chan *dbus.Signal, 4)
	s.conn.Signal(signals)
	defer s.conn.RemoveSignal(signals)

	var handle dbus.ObjectPath
	if err := s.obj.CallWithContext(ctx, screenCastIface+"."+method, 0, args(token)...).Store(&handle); err != nil {
		return nil, err
	}

	for {
		select {
		case sig := <-signals:
			if sig == nil || sig.Path != path || sig.Name != requestIface+".Response" {
				continue
			}
			return decodeResponse(sig.Body)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *portalSession) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.handle != "" {
		call := s.conn.Object(portalBus, s.handle).Call(sessionIface+".Close", 0)
		err = call.Err
	}
	if closeErr := s.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}

func decodeResponse(body []interface{}) (map[string]dbus.Variant, error) {
	if len(body) != 2 {
		return nil, fmt.Errorf("unexpected portal response with %d values", len(body))
	}
	code, ok := body[0].(uint32)
	if !ok {
		return nil, errors.New("portal response code is not uint32")
	}
	switch code {
	case 0:
	case 1:
		return nil, ErrPortalDenied
	default:
		return nil, fmt.Errorf("portal request failed with code %d", code)
	}
	results, _ := body[1].(map[string]dbus.Variant)
	return results, nil
}

func firstNodeID(results map[string]dbus.Variant) (uint32, error) {
	value, ok := results["streams"]
	if !ok {
		return 0, errors.New("portal granted no streams")
	}
	var streams []portalStream
	if err := dbus.Store([]interface{}{value.Value()}, &streams); err != nil {
		return 0, fmt.Errorf("decode portal streams: %w", err)
	}
	if len(streams) == 0 {
		return 0, errors.New("portal granted no streams")
	}
	return streams[0].NodeID, nil
}

// requestPath predicts the Request object path the portal will use for a
// handle_token, derived from the caller's unique bus name.
func requestPath(uniqueName string, token string) dbus.ObjectPath {
	sender := strings.ReplaceAll(strings.TrimPrefix(uniqueName, ":"), ".", "_")
	return dbus.ObjectPath("/org/freedesktop/portal/desktop/request/" + sender + "/" + token)
}

func newToken() string {
	return "hyprrec_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

const (
	notificationsBus   = "org.freedesktop.Notifications"
	notificationsPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsIface = "org.freedesktop.Notifications"

	finishExpireMS = 3000
)

const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// ErrFinished is returned for updates after the terminal notification.
var ErrFinished = errors.New("progress already finished")

// Notification is one org.freedesktop.Notifications.Notify call.
type Notification struct {
	AppName   string
	ReplaceID uint32
	Summary   string
	Body      string
	Hints     map[string]dbus.Variant
	ExpireMS  int32
}

// Notifier delivers notifications and returns the server-assigned id.
type Notifier interface {
	Notify(ctx context.Context, n Notification) (uint32, error)
}

// BusNotifier calls the notification daemon on the session bus. The
// connection is opened on first use.
type BusNotifier struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func (b *BusNotifier) Notify(ctx context.Context, n Notification) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return 0, fmt.Errorf("connect session bus: %w", err)
		}
		b.conn = conn
	}

	hints := n.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}
	obj := b.conn.Object(notificationsBus, notificationsPath)
	call := obj.CallWithContext(ctx, notificationsIface+".Notify", 0,
		n.AppName, n.ReplaceID, "", n.Summary, n.Body, []string{}, hints, n.ExpireMS)

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	return id, nil
}

// Close releases the bus connection.
func (b *BusNotifier) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// DBusSink keeps a single notification up to date with session progress by
// replacing it in place.
type DBusSink struct {
	notifier Notifier
	appName  string

	mu       sync.Mutex
	id       uint32
	finished bool
}

var _ ports.ProgressSink = (*DBusSink)(nil)

func NewDBusSink(notifier Notifier, appName string) *DBusSink {
	if appName == "" {
		appName = "hyprrec"
	}
	return &DBusSink{notifier: notifier, appName: appName}
}

func (s *DBusSink) Update(ctx context.Context, fraction float64, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrFinished
	}
	return s.post(ctx, Notification{
		Summary: label,
		Body:    progressBody(fraction),
		Hints: map[string]dbus.Variant{
			"value":     dbus.MakeVariant(int32(percent(fraction))),
			"urgency":   dbus.MakeVariant(urgencyLow),
			"transient": dbus.MakeVariant(true),
		},
		// 0 keeps the bubble up until it is replaced.
		ExpireMS: 0,
	})
}

func (s *DBusSink) Finish(ctx context.Context, outcome domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrFinished
	}
	s.finished = true

	urgency := urgencyNormal
	if outcome.Kind == domain.OutcomeFailed {
		urgency = urgencyCritical
	}
	summary, body := finishText(outcome)
	err := s.post(ctx, Notification{
		Summary:  summary,
		Body:     body,
		Hints:    map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgency)},
		ExpireMS: finishExpireMS,
	})
	if closer, ok := s.notifier.(interface{ Close() error }); ok {
		if closeErr := closer.Close(); closeErr != nil {
			log.Debugf("closing notification connection: %v", closeErr)
		}
	}
	return err
}

func (s *DBusSink) post(ctx context.Context, n Notification) error {
	n.AppName = s.appName
	n.ReplaceID = s.id
	id, err := s.notifier.Notify(ctx, n)
	if err != nil {
		return err
	}
	s.id = id
	return nil
}

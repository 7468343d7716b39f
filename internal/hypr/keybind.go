package hypr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"hyprrec/internal/domain"
	"hyprrec/internal/ports"
)

const (
	commitWord = "COMMIT"
	cancelWord = "CANCEL"

	defaultPollInterval = 250 * time.Millisecond
)

// Journal records live bindings so a crashed process can be cleaned up.
type Journal interface {
	Bound(signalFile string, keys []string)
	Released()
}

// KeybindConfig names the keys and where the signal file lives.
type KeybindConfig struct {
	CommitKey    string
	CancelKey    string
	RuntimeDir   string
	PollInterval time.Duration
}

// KeybindSource turns two temporary Hyprland keybindings into session
// signals. Each binding appends a word to a private signal file which is
// watched with fsnotify and polled as a fallback.
type KeybindSource struct {
	client  *Client
	cfg     KeybindConfig
	clock   clockwork.Clock
	journal Journal
}

var _ ports.SignalSource = (*KeybindSource)(nil)

func NewKeybindSource(client *Client, cfg KeybindConfig, clock clockwork.Clock, journal Journal) *KeybindSource {
	if cfg.CommitKey == "" {
		cfg.CommitKey = ",Return"
	}
	if cfg.CancelKey == "" {
		cfg.CancelKey = ",Escape"
	}
	if cfg.RuntimeDir == "" {
		cfg.RuntimeDir = RuntimeDir()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &KeybindSource{client: client, cfg: cfg, clock: clock, journal: journal}
}

// RuntimeDir is $XDG_RUNTIME_DIR, or the OS temp dir when it is unset.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// SignalFilePattern matches signal files left behind by any session.
func SignalFilePattern(runtimeDir string) string {
	return filepath.Join(runtimeDir, "hyprrec-*.signal")
}

func (s *KeybindSource) Register(ctx context.Context) (ports.SignalRegistration, error) {
	path := filepath.Join(s.cfg.RuntimeDir, "hyprrec-"+uuid.NewString()+".signal")
	if strings.ContainsAny(path, ";'") {
		return nil, fmt.Errorf("signal file path %q cannot be used in a keybinding", path)
	}
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		return nil, fmt.Errorf("create signal file: %w", err)
	}

	keys := []string{s.cfg.CommitKey, s.cfg.CancelKey}
	err := s.client.Bind(ctx,
		Binding{Key: s.cfg.CommitKey, Shell: signalShell(commitWord, path)},
		Binding{Key: s.cfg.CancelKey, Shell: signalShell(cancelWord, path)},
	)
	if err != nil {
		// A batch may have applied the first bind before failing.
		unbindCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		_ = s.client.Unbind(unbindCtx, keys...)
		cancel()
		_ = os.Remove(path)
		return nil, fmt.Errorf("bind keys %s and %s: %w", s.cfg.CommitKey, s.cfg.CancelKey, err)
	}
	if s.journal != nil {
		s.journal.Bound(path, keys)
	}
	log.Infof("press %s to save, %s to cancel", describeKey(s.cfg.CommitKey), describeKey(s.cfg.CancelKey))

	reg := &keybindRegistration{
		client:  s.client,
		journal: s.journal,
		path:    path,
		keys:    keys,
		events:  make(chan domain.SignalEvent, 8),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := watcher.Add(path); addErr != nil {
			log.Warningf("watching %s failed, polling only: %v", path, addErr)
			_ = watcher.Close()
			watcher = nil
		}
	} else {
		log.Warningf("fsnotify unavailable, polling only: %v", err)
		watcher = nil
	}

	go reg.watch(watcher, s.clock.NewTicker(s.cfg.PollInterval))
	return reg, nil
}

type keybindRegistration struct {
	client  *Client
	journal Journal
	path    string
	keys    []string

	events  chan domain.SignalEvent
	stop    chan struct{}
	stopped chan struct{}

	once sync.Once
	err  error
}

func (r *keybindRegistration) Events() <-chan domain.SignalEvent {
	return r.events
}

// watch delivers signals until stopped. It closes events when it exits,
// including when the signal file disappears underneath it.
func (r *keybindRegistration) watch(watcher *fsnotify.Watcher, ticker clockwork.Ticker) {
	defer close(r.stopped)
	defer close(r.events)
	defer ticker.Stop()
	if watcher != nil {
		defer watcher.Close()
	}

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if watcher != nil {
		fsEvents = watcher.Events
		fsErrors = watcher.Errors
	}

	for {
		select {
		case <-r.stop:
			return
		case event, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				log.Errorf("signal file %s was removed", r.path)
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if !r.drain() {
					return
				}
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			log.Warningf("signal file watcher: %v", err)
		case <-ticker.Chan():
			if !r.drain() {
				return
			}
		}
	}
}

// drain reads and truncates the signal file and forwards what it held.
// It returns false when the file can no longer be read.
func (r *keybindRegistration) drain() bool {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Errorf("signal file %s was removed", r.path)
			return false
		}
		log.Warningf("reading signal file: %v", err)
		return true
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return true
	}
	if err := os.Truncate(r.path, 0); err != nil {
		log.Warningf("truncating signal file: %v", err)
	}

	for _, event := range parseSignals(data) {
		select {
		case r.events <- event:
		case <-r.stop:
			return false
		}
	}
	return true
}

// Unregister removes the bindings, retrying the unbind once, then stops the
// watcher and deletes the signal file. Later calls return the first result.
func (r *keybindRegistration) Unregister(ctx context.Context) error {
	r.once.Do(func() {
		err := r.client.Unbind(ctx, r.keys...)
		if err != nil {
			log.Debugf("unbind failed, retrying: %v", err)
			err = r.client.Unbind(ctx, r.keys...)
		}
		r.err = err

		close(r.stop)
		<-r.stopped
		if rmErr := os.Remove(r.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warningf("removing signal file: %v", rmErr)
		}
		if r.journal != nil && err == nil {
			r.journal.Released()
		}
	})
	return r.err
}

func parseSignals(data []byte) []domain.SignalEvent {
	var events []domain.SignalEvent
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		switch strings.ToUpper(scanner.Text()) {
		case commitWord:
			events = append(events, domain.SignalCommit)
		case cancelWord:
			events = append(events, domain.SignalCancel)
		default:
			log.Debugf("ignoring unknown signal %q", scanner.Text())
		}
	}
	return events
}

func signalShell(word string, path string) string {
	return "echo " + word + " >> '" + path + "'"
}

// describeKey renders ",Return" as "Return" and "SUPER,R" as "SUPER+R".
func describeKey(key string) string {
	mods, name, found := strings.Cut(key, ",")
	if !found {
		return key
	}
	mods = strings.TrimSpace(mods)
	name = strings.TrimSpace(name)
	if mods == "" {
		return name
	}
	return strings.ReplaceAll(mods, " ", "+") + "+" + name
}

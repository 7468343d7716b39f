package state

import (
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Journal keeps the record of the current session in step with what the
// process holds: it is written on start, amended when keys are bound and
// removed when the session ends. Failures are logged, never returned.
type Journal struct {
	store *Store
	clock clockwork.Clock
	pid   int

	mu      sync.Mutex
	current *Record
}

func NewJournal(store *Store, clock clockwork.Clock) *Journal {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Journal{store: store, clock: clock, pid: os.Getpid()}
}

// Begin opens the record for a session whose capture has started.
func (j *Journal) Begin(id string, outputPath string, startedAt time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.current = &Record{ID: id, PID: j.pid, OutputPath: outputPath, StartedAt: startedAt}
	j.persist()
}

// Bound notes the keybindings and signal file held by the session.
func (j *Journal) Bound(signalFile string, keys []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.current == nil {
		log.Debugf("keybindings bound outside a journaled session")
		return
	}
	j.current.SignalFile = signalFile
	j.current.Keys = append([]string(nil), keys...)
	j.persist()
}

// Released notes that the keybindings were removed.
func (j *Journal) Released() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.current == nil {
		return
	}
	j.current.SignalFile = ""
	j.current.Keys = nil
	j.persist()
}

// End deletes the record; the session left nothing to clean up.
func (j *Journal) End() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.current == nil {
		return
	}
	if err := j.store.Delete(j.current.ID); err != nil {
		log.Warningf("removing session record: %v", err)
	}
	j.current = nil
}

func (j *Journal) persist() {
	j.current.UpdatedAt = j.clock.Now()
	if err := j.store.Save(*j.current); err != nil {
		log.Warningf("saving session record: %v", err)
	}
}

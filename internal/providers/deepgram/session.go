package deepgram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"hyprrec/internal/domain"
)

var errSendClosed = errors.New("audio stream is already closed")

// session pumps audio frames out and transcript messages in over one
// websocket. The reader and writer each report once through finished.
type session struct {
	conn *websocket.Conn

	audio  chan []byte
	events chan domain.TranscriptEvent

	// quit is closed by Close so a blocked emit gives up.
	quit     chan struct{}
	finished chan struct{}

	sendClosed atomic.Bool
	closeSend  sync.Once
	closing    sync.Once

	mu  sync.Mutex
	err error
}

func startSession(ctx context.Context, conn *websocket.Conn) *session {
	s := &session{
		conn:     conn,
		audio:    make(chan []byte, 32),
		events:   make(chan domain.TranscriptEvent, 64),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	readerDone := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.receive()
	}()
	go func() {
		defer close(writerDone)
		s.transmit()
	}()
	go func() {
		<-readerDone
		<-writerDone
		close(s.events)
		close(s.finished)
		_ = conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.finished:
		}
	}()
	return s
}

func (s *session) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if s.sendClosed.Load() {
		return errSendClosed
	}

	frame := append([]byte(nil), chunk...)
	select {
	case s.audio <- frame:
		return nil
	case <-s.finished:
		if err := s.failure(); err != nil {
			return err
		}
		return errors.New("deepgram session ended")
	}
}

// CloseSend flushes queued audio and asks Deepgram to finish the stream.
func (s *session) CloseSend() error {
	s.closeSend.Do(func() {
		s.sendClosed.Store(true)
		close(s.audio)
	})
	return nil
}

func (s *session) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *session) Wait() error {
	<-s.finished
	return s.failure()
}

// Close abandons the session without waiting for pending transcripts.
func (s *session) Close() error {
	s.closing.Do(func() {
		close(s.quit)
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.finished
	return s.failure()
}

func (s *session) transmit() {
	for frame := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			s.fail(fmt.Errorf("send audio: %w", err))
			return
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil {
		s.fail(fmt.Errorf("finish stream: %w", err))
	}
}

func (s *session) receive() {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(fmt.Errorf("read deepgram message: %w", err))
			return
		}

		event, ok, err := decodeMessage(payload)
		if err != nil {
			s.fail(err)
			return
		}
		if !ok {
			continue
		}
		// A replayed file must not lose final segments to a full buffer.
		select {
		case s.events <- event:
		case <-s.quit:
		}
	}
}

// fail records the first real error; normal websocket closes are not errors.
func (s *session) fail(err error) {
	if err == nil || websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

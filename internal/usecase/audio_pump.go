package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"hyprrec/internal/ports"
)

const (
	minChunkSize     = 256
	defaultChunkSize = 8192
)

// pumpAudioChunks streams src to the provider until EOF. Recorded files are
// read as fast as the provider accepts them.
func pumpAudioChunks(ctx context.Context, src io.Reader, stream ports.StreamingSession, chunkSize int) (int64, error) {
	if chunkSize < minChunkSize {
		chunkSize = defaultChunkSize
	}

	var sent int64
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				return sent, fmt.Errorf("stream audio: %w", sendErr)
			}
			sent += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sent, nil
			}
			return sent, fmt.Errorf("read audio: %w", err)
		}
	}
}

// waitForStream waits for the provider to finish, closing the session if
// it takes longer than timeout.
func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		log.Warningf("transcription stream did not finish within %s, closing", timeout)
		_ = session.Close()
		return <-done
	}
}

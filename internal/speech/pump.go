package speech

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"vibespace/internal/ports"
)

// pumpAudioChunks copies microphone audio into the stream until capture
// ends, then half-closes the stream so the provider can flush.
func pumpAudioChunks(audio io.Reader, stream ports.StreamingSession, chunkSize int) error {
	defer stream.CloseSend()

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				return fmt.Errorf("failed to stream audio: %w", sendErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("audio capture error: %w", err)
		}
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}

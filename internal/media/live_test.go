package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"
)

// TestLiveMPV opens a real audio file with the installed mpv.
// Skipped unless mpv is on PATH and PAPER_READER_LIVE_AUDIO names a file or URL.
func TestLiveMPV(t *testing.T) {
	bin, err := exec.LookPath("mpv")
	if err != nil {
		t.Skip("mpv not installed")
	}
	source := os.Getenv("PAPER_READER_LIVE_AUDIO")
	if source == "" {
		t.Skip("PAPER_READER_LIVE_AUDIO not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, err := MPV{Path: bin, SocketDir: t.TempDir()}.Open(ctx, source)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer m.Release()

	deadline := time.Now().Add(3 * time.Second)
	for m.Duration() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	fmt.Printf("Duration: %.2fs\n", m.Duration())

	if err := m.SetRate(2.0); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := m.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if err := m.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	fmt.Printf("Position after 300ms at 2x: %.2fs\n", m.CurrentTime())

	if err := m.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	select {
	case <-m.Done():
	default:
		t.Error("done not closed after release")
	}
}

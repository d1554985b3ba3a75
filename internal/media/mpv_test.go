package media

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeMPV accepts one IPC connection, acknowledges every command, and lets the
// test push property-change events.
type fakeMPV struct {
	t        *testing.T
	ln       net.Listener
	mu       sync.Mutex
	conn     net.Conn
	commands [][]any
	ready    chan struct{}
}

func startFakeMPV(t *testing.T) (string, *fakeMPV) {
	t.Helper()

	sockPath := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeMPV{t: t, ln: ln, ready: make(chan struct{})}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		close(f.ready)

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			var cmd ipcCommand
			if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
				continue
			}
			f.mu.Lock()
			f.commands = append(f.commands, cmd.Command)
			f.mu.Unlock()
			f.writeLine(map[string]any{"error": "success", "request_id": cmd.RequestID})
		}
	}()

	return sockPath, f
}

func (f *fakeMPV) writeLine(v any) {
	data, _ := json.Marshal(v)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_, _ = f.conn.Write(append(data, '\n'))
	}
}

func (f *fakeMPV) propertyChange(id int, name string, data any) {
	<-f.ready
	f.writeLine(map[string]any{"event": "property-change", "id": id, "name": name, "data": data})
}

func (f *fakeMPV) sawCommand(name string, args ...any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commands {
		if len(c) == 0 || c[0] != name {
			continue
		}
		if len(args) == 0 {
			return true
		}
		match := len(c) == len(args)+1
		for i := 0; match && i < len(args); i++ {
			match = c[i+1] == args[i]
		}
		if match {
			return true
		}
	}
	return false
}

func dialFake(t *testing.T) (*Player, *fakeMPV, *bool) {
	t.Helper()
	sockPath, f := startFakeMPV(t)
	released := false
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := Dial(ctx, sockPath, func() error {
		released = true
		return nil
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = p.Release() })
	return p, f, &released
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDialObservesProperties(t *testing.T) {
	_, f, _ := dialFake(t)

	for _, name := range []string{"time-pos", "duration", "eof-reached"} {
		if !f.sawCommand("observe_property") {
			t.Fatalf("observe_property was not sent")
		}
		found := false
		f.mu.Lock()
		for _, c := range f.commands {
			if len(c) == 3 && c[0] == "observe_property" && c[2] == name {
				found = true
			}
		}
		f.mu.Unlock()
		if !found {
			t.Errorf("property %s not observed", name)
		}
	}
}

func TestPlayerTransport(t *testing.T) {
	p, f, _ := dialFake(t)

	if err := p.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := p.SetRate(1.5); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := p.Seek(12.5); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if err := p.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if !f.sawCommand("set_property", "pause", false) {
		t.Error("play did not unpause")
	}
	if !f.sawCommand("set_property", "speed", 1.5) {
		t.Error("rate was not applied")
	}
	if !f.sawCommand("seek", 12.5, "absolute") {
		t.Error("seek was not absolute")
	}
	if !f.sawCommand("set_property", "pause", true) {
		t.Error("pause was not sent")
	}
	if p.CurrentTime() != 12.5 {
		t.Errorf("currentTime = %v, want 12.5", p.CurrentTime())
	}
}

func TestPlayerTracksProperties(t *testing.T) {
	p, f, _ := dialFake(t)

	if p.Duration() != 0 {
		t.Errorf("duration before metadata = %v, want 0", p.Duration())
	}
	f.propertyChange(propDuration, "duration", 42.0)
	f.propertyChange(propTimePos, "time-pos", 3.25)

	eventually(t, "duration", func() bool { return p.Duration() == 42 })
	eventually(t, "time-pos", func() bool { return p.CurrentTime() == 3.25 })

	f.propertyChange(propDuration, "duration", nil)
	eventually(t, "duration reset", func() bool { return p.Duration() == 0 })
}

func TestPlayerSignalsNaturalEnd(t *testing.T) {
	p, f, _ := dialFake(t)

	f.propertyChange(propEOFReached, "eof-reached", false)
	select {
	case <-p.Ended():
		t.Fatal("ended fired before eof")
	case <-time.After(50 * time.Millisecond):
	}

	f.propertyChange(propEOFReached, "eof-reached", true)
	f.propertyChange(propEOFReached, "eof-reached", true)
	select {
	case <-p.Ended():
	case <-time.After(2 * time.Second):
		t.Fatal("ended not signalled")
	}
}

func TestPlayerRelease(t *testing.T) {
	p, f, released := dialFake(t)

	if err := p.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := p.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}

	select {
	case <-p.Done():
	default:
		t.Fatal("done not closed after release")
	}
	if !*released {
		t.Error("release hook not called")
	}
	eventually(t, "stop and quit", func() bool {
		return f.sawCommand("stop") && f.sawCommand("quit")
	})
	if err := p.Play(); !errors.Is(err, ErrReleased) {
		t.Errorf("play after release = %v, want ErrReleased", err)
	}
}

func TestDialTimesOutWithoutSocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, filepath.Join(t.TempDir(), "absent.sock"), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestMessageFloat(t *testing.T) {
	if _, ok := (ipcMessage{Data: json.RawMessage("null")}).float(); ok {
		t.Error("null should not decode as a number")
	}
	if v, ok := (ipcMessage{Data: json.RawMessage("7.5")}).float(); !ok || v != 7.5 {
		t.Errorf("float = %v %v, want 7.5 true", v, ok)
	}
}

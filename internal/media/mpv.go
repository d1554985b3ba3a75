package media

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	requestTimeout = 2 * time.Second
	dialInterval   = 25 * time.Millisecond
	quitGrace      = time.Second
)

// MPV opens media by starting one idle, paused mpv process per address.
type MPV struct {
	Path      string // mpv binary, "mpv" if empty
	SocketDir string // directory for IPC sockets, os.TempDir() if empty
}

// Open starts mpv for url and connects to its IPC socket. The media starts
// paused with only headers fetched.
func (o MPV) Open(ctx context.Context, url string) (Media, error) {
	bin := o.Path
	if bin == "" {
		bin = "mpv"
	}
	dir := o.SocketDir
	if dir == "" {
		dir = os.TempDir()
	}
	sockPath := filepath.Join(dir, "paper-reader-"+uuid.NewString()+".sock")

	cmd := exec.Command(bin,
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--pause",
		"--keep-open=yes",
		"--input-ipc-server="+sockPath,
		url,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	stop := func() error {
		select {
		case <-exited:
		case <-time.After(quitGrace):
			_ = cmd.Process.Kill()
			<-exited
		}
		_ = os.Remove(sockPath)
		return nil
	}

	m, err := Dial(ctx, sockPath, stop)
	if err != nil {
		_ = cmd.Process.Kill()
		<-exited
		_ = os.Remove(sockPath)
		return nil, err
	}
	slog.Debug("mpv opened", "url", url, "socket", sockPath, "pid", cmd.Process.Pid)
	return m, nil
}

// Player is a Media controlled over an mpv IPC socket.
type Player struct {
	conn    net.Conn
	scanner *bufio.Scanner
	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   int
	pending  map[int]chan ipcMessage
	timePos  float64
	duration float64

	ended     chan struct{}
	endOnce   sync.Once
	done      chan struct{}
	doneOnce  sync.Once
	release   sync.Once
	onRelease func() error
}

// Dial connects to an mpv IPC socket, retrying until ctx is done, and starts
// observing the playback properties. onRelease runs after the quit command
// has been sent.
func Dial(ctx context.Context, socketPath string, onRelease func() error) (*Player, error) {
	var conn net.Conn
	for {
		var err error
		conn, err = net.Dial("unix", socketPath)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to mpv: %w", errors.Join(ctx.Err(), err))
		case <-time.After(dialInterval):
		}
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	p := &Player{
		conn:      conn,
		scanner:   scanner,
		pending:   make(map[int]chan ipcMessage),
		ended:     make(chan struct{}),
		done:      make(chan struct{}),
		onRelease: onRelease,
	}
	go p.readLoop()

	for _, obs := range []struct {
		id   int
		name string
	}{
		{propTimePos, "time-pos"},
		{propDuration, "duration"},
		{propEOFReached, "eof-reached"},
	} {
		if err := p.command("observe_property", obs.id, obs.name); err != nil {
			_ = p.Release()
			return nil, fmt.Errorf("observe %s: %w", obs.name, err)
		}
	}
	return p, nil
}

// Play resumes playback.
func (p *Player) Play() error {
	return p.command("set_property", "pause", false)
}

// Pause freezes playback at the current time.
func (p *Player) Pause() error {
	return p.command("set_property", "pause", true)
}

// SetRate sets the playback speed multiplier.
func (p *Player) SetRate(rate float64) error {
	return p.command("set_property", "speed", rate)
}

// Seek jumps to an absolute media time in seconds.
func (p *Player) Seek(seconds float64) error {
	if err := p.command("seek", seconds, "absolute"); err != nil {
		return err
	}
	p.mu.Lock()
	p.timePos = seconds
	p.mu.Unlock()
	return nil
}

// CurrentTime returns the last observed playback time in seconds.
func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timePos
}

// Duration returns the resource duration in seconds, or 0 if unknown.
func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Ended is closed when playback reaches the end of the resource.
func (p *Player) Ended() <-chan struct{} {
	return p.ended
}

// Done is closed once the player is released or its socket closes.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Release pauses playback, clears the loaded source, and shuts mpv down.
// Only the first call has any effect.
func (p *Player) Release() error {
	var err error
	p.release.Do(func() {
		_ = p.command("set_property", "pause", true)
		_ = p.command("stop")
		_ = p.send("quit")
		_ = p.conn.Close()
		p.closeDone()
		if p.onRelease != nil {
			err = p.onRelease()
		}
	})
	return err
}

func (p *Player) closeDone() {
	p.doneOnce.Do(func() { close(p.done) })
}

func (p *Player) markEnded() {
	p.endOnce.Do(func() { close(p.ended) })
}

// command sends a request and waits for its reply.
func (p *Player) command(args ...any) error {
	select {
	case <-p.done:
		return ErrReleased
	default:
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	reply := make(chan ipcMessage, 1)
	p.pending[id] = reply
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err := p.write(ipcCommand{Command: args, RequestID: id}); err != nil {
		return err
	}

	select {
	case msg := <-reply:
		if msg.Error != "success" {
			return fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return nil
	case <-p.done:
		return ErrReleased
	case <-time.After(requestTimeout):
		return fmt.Errorf("mpv %v: no reply after %s", args[0], requestTimeout)
	}
}

// send writes a request without waiting for a reply.
func (p *Player) send(args ...any) error {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.mu.Unlock()
	return p.write(ipcCommand{Command: args, RequestID: id})
}

func (p *Player) write(cmd ipcCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	data = append(data, '\n')

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.conn.Write(data); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

func (p *Player) readLoop() {
	defer p.closeDone()

	for p.scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(p.scanner.Bytes(), &msg); err != nil {
			slog.Debug("mpv sent an unreadable line", "err", err)
			continue
		}

		if msg.isReply() {
			p.mu.Lock()
			reply, ok := p.pending[*msg.RequestID]
			p.mu.Unlock()
			if ok {
				reply <- msg
			}
			continue
		}

		switch msg.Event {
		case "property-change":
			p.observe(msg)
		case "end-file":
			if msg.Reason == "eof" {
				p.markEnded()
			}
		}
	}
}

func (p *Player) observe(msg ipcMessage) {
	switch msg.ID {
	case propTimePos:
		if v, ok := msg.float(); ok {
			p.mu.Lock()
			p.timePos = v
			p.mu.Unlock()
		}
	case propDuration:
		v, _ := msg.float()
		p.mu.Lock()
		p.duration = v
		p.mu.Unlock()
	case propEOFReached:
		if msg.bool() {
			p.markEnded()
		}
	}
}

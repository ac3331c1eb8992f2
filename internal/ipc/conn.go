package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hyprpal/autotile/internal/state"
)

// Conn is a single i3-ipc connection carrying both request/reply traffic and
// subscribed events. It is not safe for concurrent use; one dispatch loop owns it.
type Conn struct {
	path    string
	conn    net.Conn
	r       *bufio.Reader
	pending []Event
	// broken is sticky once the stream can no longer be trusted.
	broken error
}

// Dial connects to the IPC socket at path.
func Dial(path string) (*Conn, error) {
	if path == "" {
		return nil, &ConnectionError{Op: "connect", Err: errors.New("empty socket path")}
	}
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, &ConnectionError{Op: "connect", Err: err}
	}
	return newConn(path, conn), nil
}

// Connect dials path, locating the socket first when path is empty.
func Connect(ctx context.Context, path string) (*Conn, error) {
	if path == "" {
		var err error
		path, err = SocketPath(ctx)
		if err != nil {
			return nil, err
		}
	}
	return Dial(path)
}

func newConn(path string, conn net.Conn) *Conn {
	return &Conn{path: path, conn: conn, r: bufio.NewReader(conn)}
}

// Path returns the socket path the connection was dialed with.
func (c *Conn) Path() string {
	return c.path
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// guard unblocks pending I/O when ctx is cancelled. The returned func must be
// called once the operation finishes; it reports ctx's error if cancellation
// interrupted the operation.
func (c *Conn) guard(ctx context.Context) func() error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	return func() error {
		if stop() {
			return nil
		}
		c.broken = ctx.Err()
		return ctx.Err()
	}
}

func (c *Conn) readFrame() (Frame, error) {
	f, err := ReadFrame(c.r)
	if err != nil {
		c.broken = err
		var perr *ProtocolError
		if errors.As(err, &perr) {
			c.broken = &ConnectionError{Op: "read", Err: fmt.Errorf("stream desynchronized after %v", err)}
		}
		return Frame{}, err
	}
	return f, nil
}

// Request sends one message and waits for the matching reply. Events that
// arrive first are queued for NextEvent.
func (c *Conn) Request(ctx context.Context, typ MessageType, payload []byte) ([]byte, error) {
	if c.broken != nil {
		return nil, c.brokenErr()
	}
	done := c.guard(ctx)
	reply, err := c.request(typ, payload)
	if cerr := done(); cerr != nil {
		return nil, cerr
	}
	return reply, err
}

func (c *Conn) request(typ MessageType, payload []byte) ([]byte, error) {
	if err := WriteFrame(c.conn, typ, payload); err != nil {
		c.broken = err
		return nil, err
	}
	for {
		f, err := c.readFrame()
		if err != nil {
			return nil, err
		}
		if f.Type.IsEvent() {
			c.pending = append(c.pending, Event{Type: EventType(f.Type), Payload: f.Payload})
			continue
		}
		if f.Type != typ {
			return nil, &ProtocolError{Op: typ.String(), Err: fmt.Errorf("unexpected %s reply", f.Type)}
		}
		return f.Payload, nil
	}
}

// NextEvent blocks until the next event frame arrives, returning queued events first.
func (c *Conn) NextEvent(ctx context.Context) (Event, error) {
	if len(c.pending) > 0 {
		ev := c.pending[0]
		c.pending = c.pending[1:]
		return ev, nil
	}
	if c.broken != nil {
		return Event{}, c.brokenErr()
	}
	done := c.guard(ctx)
	f, err := c.readFrame()
	if cerr := done(); cerr != nil {
		return Event{}, cerr
	}
	if err != nil {
		return Event{}, err
	}
	if !f.Type.IsEvent() {
		return Event{}, &ProtocolError{Op: "next event", Err: fmt.Errorf("unsolicited %s reply", f.Type)}
	}
	return Event{Type: EventType(f.Type), Payload: f.Payload}, nil
}

func (c *Conn) brokenErr() error {
	var cerr *ConnectionError
	if errors.As(c.broken, &cerr) {
		return c.broken
	}
	if errors.Is(c.broken, context.Canceled) || errors.Is(c.broken, context.DeadlineExceeded) {
		return c.broken
	}
	return &ConnectionError{Op: "use", Err: c.broken}
}

// Subscribe registers for the given event types.
func (c *Conn) Subscribe(ctx context.Context, events ...EventType) error {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		name := ev.Name()
		if name == "" {
			return fmt.Errorf("subscribe: unknown event type %s", ev)
		}
		names = append(names, name)
	}
	payload, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode subscribe: %w", err)
	}
	reply, err := c.Request(ctx, MessageSubscribe, payload)
	if err != nil {
		return err
	}
	var result struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(reply, &result); err != nil {
		return &ProtocolError{Op: "subscribe", Err: err}
	}
	if !result.Success {
		return &ProtocolError{Op: "subscribe", Err: fmt.Errorf("window manager rejected subscription to %v", names)}
	}
	return nil
}

// GetTree fetches and decodes the current layout tree.
func (c *Conn) GetTree(ctx context.Context) (*state.Tree, error) {
	reply, err := c.Request(ctx, MessageGetTree, nil)
	if err != nil {
		return nil, err
	}
	tree, err := state.DecodeTree(reply)
	if err != nil {
		return nil, &ProtocolError{Op: "get_tree", Err: err}
	}
	return tree, nil
}

// CommandResult is the outcome of one semicolon-separated command.
type CommandResult struct {
	Success    bool   `json:"success"`
	ParseError bool   `json:"parse_error,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunCommand executes a command string. The results are returned even when
// one of them failed; the error is then a CommandError.
func (c *Conn) RunCommand(ctx context.Context, command string) ([]CommandResult, error) {
	reply, err := c.Request(ctx, MessageRunCommand, []byte(command))
	if err != nil {
		return nil, err
	}
	results, err := DecodeCommandResults(reply)
	if err != nil {
		return nil, err
	}
	return results, CheckResults(command, results)
}

// DecodeCommandResults parses a RUN_COMMAND reply.
func DecodeCommandResults(reply []byte) ([]CommandResult, error) {
	var results []CommandResult
	if err := json.Unmarshal(reply, &results); err != nil {
		return nil, &ProtocolError{Op: "run_command", Err: err}
	}
	if len(results) == 0 {
		return nil, &ProtocolError{Op: "run_command", Err: errors.New("empty reply")}
	}
	return results, nil
}

// CheckResults returns a CommandError for the first failed result.
func CheckResults(command string, results []CommandResult) error {
	for _, res := range results {
		if !res.Success {
			return &CommandError{Command: command, Message: res.Error}
		}
	}
	return nil
}

// Version describes the connected window manager.
type Version struct {
	Major         int    `json:"major"`
	Minor         int    `json:"minor"`
	Patch         int    `json:"patch"`
	HumanReadable string `json:"human_readable"`
	// Variant is "sway" on sway and empty on i3.
	Variant string `json:"variant,omitempty"`
}

// Version queries the window manager version.
func (c *Conn) Version(ctx context.Context) (Version, error) {
	var v Version
	reply, err := c.Request(ctx, MessageGetVersion, nil)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(reply, &v); err != nil {
		return v, &ProtocolError{Op: "get_version", Err: err}
	}
	return v, nil
}

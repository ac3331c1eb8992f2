package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hyprpal/autotile/internal/ipc"
	"github.com/hyprpal/autotile/internal/layout"
	"github.com/hyprpal/autotile/internal/metrics"
	"github.com/hyprpal/autotile/internal/state"
	"github.com/hyprpal/autotile/internal/util"
)

// Client is the subset of the IPC connection the engine drives.
type Client interface {
	Subscribe(ctx context.Context, events ...ipc.EventType) error
	NextEvent(ctx context.Context) (ipc.Event, error)
	GetTree(ctx context.Context) (*state.Tree, error)
	RunCommand(ctx context.Context, command string) ([]ipc.CommandResult, error)
}

var _ Client = (*ipc.Conn)(nil)

// Phase is the dispatch loop state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseEvaluating
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseCommitting:
		return "committing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Options configures an Engine.
type Options struct {
	Scope   layout.Scope
	DryRun  bool
	Metrics *metrics.Collector
}

// Engine reacts to focus events by switching the split layout of the focused container.
type Engine struct {
	client  Client
	logger  *util.Logger
	dryRun  bool
	metrics *metrics.Collector

	mu    sync.Mutex
	scope layout.Scope
	phase Phase

	// onPhase observes transitions; used by tests.
	onPhase func(Phase)
}

// New creates an engine that owns client for its lifetime.
func New(client Client, logger *util.Logger, opts Options) *Engine {
	return &Engine{
		client:  client,
		logger:  logger,
		dryRun:  opts.DryRun,
		metrics: opts.Metrics,
		scope:   opts.Scope,
	}
}

// SetScope replaces the workspace allow-list. It applies from the next cycle on.
func (e *Engine) SetScope(scope layout.Scope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scope = scope
	if scope.Unrestricted() {
		e.logger.Infof("managing all workspaces")
		return
	}
	e.logger.Infof("managing workspaces %s", strings.Join(scope.Workspaces(), ","))
}

// Scope returns the workspace allow-list in effect.
func (e *Engine) Scope() layout.Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scope
}

// Phase returns the current dispatch loop state.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	hook := e.onPhase
	e.mu.Unlock()
	if hook != nil {
		hook(p)
	}
}

// Run subscribes to window and shutdown events and handles focus changes
// until the connection fails, the window manager shuts down, or ctx ends.
// Errors from a single cycle are logged and never end the loop.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.client.Subscribe(ctx, ipc.EventWindow, ipc.EventShutdown); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	e.setPhase(PhaseIdle)
	for {
		ev, err := e.client.NextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isFatal(err) {
				return err
			}
			e.report(err)
			continue
		}
		switch ev.Type {
		case ipc.EventShutdown:
			shutdown, err := ev.Shutdown()
			if err != nil {
				e.report(err)
			}
			e.logger.Infof("window manager shutting down (%s)", shutdown.Change)
			return nil
		case ipc.EventWindow:
			win, err := ev.Window()
			if err != nil {
				e.report(err)
				continue
			}
			if win.Change != ipc.WindowChangeFocus {
				e.trace("event.ignored", map[string]any{"change": win.Change})
				continue
			}
			e.trace("event.focus", map[string]any{"container": win.Container.ID})
			if err := e.handleFocus(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if isFatal(err) {
					return err
				}
				e.report(err)
			}
		default:
			e.trace("event.ignored", map[string]any{"type": ev.Type.String()})
		}
	}
}

// handleFocus runs one decision cycle against a freshly fetched tree.
func (e *Engine) handleFocus(ctx context.Context) error {
	e.setPhase(PhaseEvaluating)
	defer e.setPhase(PhaseIdle)

	tree, err := e.client.GetTree(ctx)
	if err != nil {
		return err
	}
	ref, ok := tree.FindFocused()
	if !ok {
		e.logger.Debugf("no focused container found")
		e.metrics.RecordSkip("no focused container")
		return nil
	}
	node := tree.Node(ref)
	subject := tree.Subject(ref)
	decision := layout.Decide(subject, e.Scope())
	e.trace("decision", map[string]any{
		"id":           node.ID,
		"rect":         subject.Rect,
		"parentLayout": subject.ParentLayout,
		"workspace":    subject.WorkspaceNum,
		"action":       decision.Action.String(),
		"layout":       decision.Layout,
		"reason":       decision.Reason,
	})
	if decision.Action == layout.ActionNone {
		if decision.Reason == layout.ReasonOutOfScope {
			e.logger.Debugf("autotiling turned off on workspace %d", subject.WorkspaceNum)
		} else {
			e.logger.Debugf("leaving container %d: %s", node.ID, decision.Reason)
		}
		e.metrics.RecordSkip(decision.Reason)
		return nil
	}
	if e.dryRun {
		e.logger.Infof("dry-run: would switch container %d to %s", node.ID, decision.Layout)
		e.metrics.RecordDryRun(decision.Layout)
		return nil
	}

	e.setPhase(PhaseCommitting)
	if _, err := e.client.RunCommand(ctx, decision.Layout); err != nil {
		return err
	}
	e.logger.Debugf("switched to %s", decision.Layout)
	e.metrics.RecordSwitch(decision.Layout)
	return nil
}

func isFatal(err error) bool {
	var cerr *ipc.ConnectionError
	return errors.As(err, &cerr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// report logs a recoverable cycle error. Anything that is not a command
// failure is treated as a protocol error.
func (e *Engine) report(err error) {
	var cmdErr *ipc.CommandError
	if errors.As(err, &cmdErr) {
		e.logger.Errorf("switch failed: %v", cmdErr)
		e.metrics.RecordError("command")
		return
	}
	var perr *ipc.ProtocolError
	if !errors.As(err, &perr) {
		err = &ipc.ProtocolError{Op: "cycle", Err: err}
	}
	e.logger.Errorf("%v", err)
	e.metrics.RecordError("protocol")
}

func (e *Engine) trace(event string, fields map[string]any) {
	if e.logger == nil || !e.logger.Enabled(util.LevelTrace) {
		return
	}
	e.logger.Tracef("%s %s", event, formatTraceFields(fields))
}

func formatTraceFields(fields map[string]any) string {
	if len(fields) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		val, err := json.Marshal(fields[k])
		if err != nil {
			b.WriteString(strconv.Quote(fmt.Sprintf("<marshal error: %v>", err)))
			continue
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return b.String()
}

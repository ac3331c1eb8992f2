package layout

import (
	"strconv"
)

// Action is the outcome kind of a decision.
type Action int

const (
	// ActionNone leaves the layout untouched.
	ActionNone Action = iota
	// ActionSwitch sends exactly one split command.
	ActionSwitch
)

func (a Action) String() string {
	if a == ActionSwitch {
		return "switch"
	}
	return "none"
}

// Skip reasons reported alongside ActionNone.
const (
	ReasonOutOfScope = "workspace not managed"
	ReasonNoParent   = "no parent container"
	ReasonFloating   = "floating"
	ReasonFullscreen = "fullscreen"
	ReasonStacked    = "parent stacked"
	ReasonTabbed     = "parent tabbed"
	ReasonUnchanged  = "layout unchanged"
)

// Subject is the normalized view of a focused container the engine decides on.
// It carries no window-manager dialect fields: floating state is already resolved.
type Subject struct {
	Rect           Rect
	Floating       bool
	FullscreenMode int
	// HasParent is false when the focused node is the tree root.
	HasParent    bool
	ParentLayout string
	// HasWorkspace is false when no ancestor is a workspace.
	HasWorkspace bool
	WorkspaceNum int
}

// Scope restricts which workspaces are managed. The zero value manages all of them.
type Scope struct {
	workspaces map[string]struct{}
	order      []string
}

// NewScope builds a scope from workspace identifiers. Duplicates are collapsed.
func NewScope(workspaces []string) Scope {
	s := Scope{}
	if len(workspaces) == 0 {
		return s
	}
	s.workspaces = make(map[string]struct{}, len(workspaces))
	for _, ws := range workspaces {
		if _, ok := s.workspaces[ws]; ok {
			continue
		}
		s.workspaces[ws] = struct{}{}
		s.order = append(s.order, ws)
	}
	return s
}

// Unrestricted reports whether every workspace is managed.
func (s Scope) Unrestricted() bool {
	return len(s.workspaces) == 0
}

// Workspaces returns the allow-list in the order it was given.
func (s Scope) Workspaces() []string {
	return append([]string(nil), s.order...)
}

// Allows reports whether the workspace with the given number is managed.
func (s Scope) Allows(num int) bool {
	if s.Unrestricted() {
		return true
	}
	_, ok := s.workspaces[strconv.Itoa(num)]
	return ok
}

// Decision is the result of evaluating a Subject.
type Decision struct {
	Action Action
	// Layout is the command to send when Action is ActionSwitch.
	Layout string
	Reason string
}

// Decide maps a focused container to either no action or one split command.
func Decide(s Subject, scope Scope) Decision {
	if !scope.Unrestricted() && (!s.HasWorkspace || !scope.Allows(s.WorkspaceNum)) {
		return Decision{Reason: ReasonOutOfScope}
	}
	switch {
	case s.Floating:
		return Decision{Reason: ReasonFloating}
	case s.FullscreenMode == 1:
		return Decision{Reason: ReasonFullscreen}
	case !s.HasParent:
		return Decision{Reason: ReasonNoParent}
	case s.ParentLayout == Stacked:
		return Decision{Reason: ReasonStacked}
	case s.ParentLayout == Tabbed:
		return Decision{Reason: ReasonTabbed}
	}
	desired := Orientation(s.Rect)
	if desired == s.ParentLayout {
		return Decision{Layout: desired, Reason: ReasonUnchanged}
	}
	return Decision{Action: ActionSwitch, Layout: desired}
}

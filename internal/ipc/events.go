package ipc

import (
	"encoding/json"
	"fmt"
)

// EventType tags an event frame.
type EventType uint32

// Event types, as they appear on the wire.
const (
	EventWorkspace       EventType = eventBit | 0
	EventOutput          EventType = eventBit | 1
	EventMode            EventType = eventBit | 2
	EventWindow          EventType = eventBit | 3
	EventBarConfigUpdate EventType = eventBit | 4
	EventBinding         EventType = eventBit | 5
	EventShutdown        EventType = eventBit | 6
	EventTick            EventType = eventBit | 7
)

var eventNames = map[EventType]string{
	EventWorkspace:       "workspace",
	EventOutput:          "output",
	EventMode:            "mode",
	EventWindow:          "window",
	EventBarConfigUpdate: "barconfig_update",
	EventBinding:         "binding",
	EventShutdown:        "shutdown",
	EventTick:            "tick",
}

// Name returns the subscription name of the event type.
func (t EventType) Name() string {
	return eventNames[t]
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", uint32(t)&^eventBit)
}

// Event is a pushed event frame.
type Event struct {
	Type    EventType
	Payload []byte
}

// Window change kinds.
const (
	WindowChangeFocus = "focus"
	WindowChangeNew   = "new"
	WindowChangeClose = "close"
	WindowChangeMove  = "move"
)

// WindowEvent is the payload of a window event.
type WindowEvent struct {
	Change    string `json:"change"`
	Container struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"container"`
}

// ShutdownEvent is the payload of a shutdown event; Change is "restart" or "exit".
type ShutdownEvent struct {
	Change string `json:"change"`
}

// Window decodes the payload of a window event.
func (e Event) Window() (WindowEvent, error) {
	var ev WindowEvent
	if e.Type != EventWindow {
		return ev, &ProtocolError{Op: "decode window event", Err: fmt.Errorf("got %s event", e.Type)}
	}
	if err := json.Unmarshal(e.Payload, &ev); err != nil {
		return ev, &ProtocolError{Op: "decode window event", Err: err}
	}
	return ev, nil
}

// Shutdown decodes the payload of a shutdown event.
func (e Event) Shutdown() (ShutdownEvent, error) {
	var ev ShutdownEvent
	if e.Type != EventShutdown {
		return ev, &ProtocolError{Op: "decode shutdown event", Err: fmt.Errorf("got %s event", e.Type)}
	}
	if err := json.Unmarshal(e.Payload, &ev); err != nil {
		return ev, &ProtocolError{Op: "decode shutdown event", Err: err}
	}
	return ev, nil
}

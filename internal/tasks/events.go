package tasks

import "github.com/roach88/procstate/internal/workflow"

// StartEvent is the entry node of a process.
type StartEvent struct {
	workflow.Base
}

// NewStartEvent creates a start event.
func NewStartEvent(name string) *StartEvent {
	return &StartEvent{Base: workflow.NewBase(name)}
}

// EndEvent terminates a branch. It has no outputs.
type EndEvent struct {
	workflow.Base
}

// NewEndEvent creates an end event.
func NewEndEvent(name string) *EndEvent {
	return &EndEvent{Base: workflow.NewBase(name)}
}

const firedKey = "message.fired"

// MessageEvent is an intermediate catch event. A task of this kind waits
// until a message with the configured name is delivered; the message
// payload is merged into the task attributes.
type MessageEvent struct {
	workflow.Base
	message string
}

// NewMessageEvent creates a catch event for message.
func NewMessageEvent(name, message string) *MessageEvent {
	return &MessageEvent{Base: workflow.NewBase(name), message: message}
}

// Message returns the name of the awaited message.
func (e *MessageEvent) Message() string { return e.message }

// UpdateStateHook keeps the task WAITING until its message arrived.
func (e *MessageEvent) UpdateStateHook(m workflow.Mode, t *workflow.Task) error {
	if t.ApplyLoadTarget(m) {
		return nil
	}
	if !t.ParentFinished() {
		return nil
	}
	if fired, _ := t.Internal(firedKey); fired == true {
		t.SetReady(m)
		return nil
	}
	t.SetWaiting(m)
	return nil
}

// AcceptMessage matches messages by name.
func (e *MessageEvent) AcceptMessage(m workflow.Mode, t *workflow.Task, msg workflow.Message) (bool, error) {
	if t.State() != workflow.Waiting || msg.Name != e.message {
		return false, nil
	}
	t.SetAttributes(msg.Payload)
	t.SetInternal(firedKey, true)
	return true, t.Spec().UpdateStateHook(m, t)
}

package rules

import (
	"fmt"

	"github.com/google/uuid"
)

// Event represents a single proposed state change moving through an event
// window. Events are created by ability and framework code, owned exclusively
// by the window they are added to, and either resolve (handler executed) or
// are cancelled — never both.
type Event struct {
	ID   string
	Name EventName

	// Order is the tie-break key used to sort events immediately before
	// handler execution. It stays mutable until then so interrupts can
	// reorder events within the batch.
	Order int

	// Context carries event-specific data (card, player, province, amounts)
	// for conditions, handlers and ability code.
	Context map[string]any

	// Condition is re-evaluated every time the event is about to execute.
	// A nil condition always holds. Conditions must be pure with respect to
	// committed game state.
	Condition func(e *Event) bool

	// Handler performs the actual state mutation. Executed at most once.
	Handler func(e *Event)

	// ContingentEvents produces secondary events that happen as a
	// consequence of this event (e.g. a character leaving play causing a
	// dishonor trigger). Must not mutate state.
	ContingentEvents func(e *Event) []*Event

	// PreResolution runs after all interrupts but before the handler, for
	// state adjustments such as snapshotting values the handler reads.
	PreResolution func(e *Event)

	// Window points at the event window currently processing this event.
	Window *EventWindow

	cancelled bool
	resolved  bool
}

// NewEvent creates an event with the given name and a fresh identity.
func NewEvent(name EventName) *Event {
	return &Event{
		ID:      uuid.NewString(),
		Name:    name,
		Context: make(map[string]any),
	}
}

// Cancelled reports whether the event has been cancelled.
func (e *Event) Cancelled() bool {
	return e.cancelled
}

// Resolved reports whether the event's handler has executed.
func (e *Event) Resolved() bool {
	return e.resolved
}

// FullyResolved reports whether the event happened: handler executed and the
// event was never cancelled.
func (e *Event) FullyResolved() bool {
	return e.resolved && !e.cancelled
}

// Cancel idempotently marks the event as not to be executed. Cancellation is
// normal control flow, observable by ability windows and then registrations.
// An event whose handler already executed can no longer be cancelled; it
// transitions through at most one of cancelled and resolved.
func (e *Event) Cancel() {
	if e.resolved {
		return
	}
	e.cancelled = true
}

// CheckCondition re-evaluates the event's predicate and cancels the event if
// it no longer holds. Safe to call repeatedly; a failing predicate is an
// expected outcome of sibling events resolving in the same batch, not an
// error.
func (e *Event) CheckCondition() {
	if e.cancelled || e.resolved {
		return
	}
	if e.Condition != nil && !e.Condition(e) {
		e.Cancel()
	}
}

// ExecuteHandler runs the event's handler, marks the event resolved and
// returns the resolution notification name for the window to broadcast.
// Calling it on a resolved or cancelled event is a programmer error and
// panics: the exactly-once handler invariant cannot be trusted afterwards.
func (e *Event) ExecuteHandler() string {
	if e.resolved {
		panic(fmt.Sprintf("event %s (%s): handler executed twice", e.Name, e.ID))
	}
	if e.cancelled {
		panic(fmt.Sprintf("event %s (%s): handler executed on cancelled event", e.Name, e.ID))
	}
	e.resolved = true
	if e.Handler != nil {
		e.Handler(e)
	}
	return string(e.Name)
}

// CreateContingentEvents asks the event for its secondary events. Returning
// none is the common case.
func (e *Event) CreateContingentEvents() []*Event {
	if e.ContingentEvents == nil {
		return nil
	}
	return e.ContingentEvents(e)
}

func (e *Event) applyPreResolution() {
	if e.PreResolution != nil {
		e.PreResolution(e)
	}
}

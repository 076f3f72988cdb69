package rules

import (
	"sync"
	"time"
)

// Notification is published at well-defined points of event resolution:
// once per event after its handler executes (Name is the event name) and once
// per event before handlers run (Name carries the ":otherEffects" suffix).
type Notification struct {
	Name      string
	Event     *Event
	Timestamp time.Time
}

// Listener reacts to published notifications.
type Listener func(Notification)

// NamedListener is a listener filtered to a single notification name.
type NamedListener struct {
	Handle   int
	Name     string
	Callback func(Notification)
}

// NotificationBus provides a synchronous publish/subscribe implementation
// with optional name filtering. Publishing is fire-and-forget; the core never
// consumes a return value from listeners.
type NotificationBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	namedListeners map[string][]NamedListener
	nextHandle     int
}

// NewNotificationBus constructs an empty bus.
func NewNotificationBus() *NotificationBus {
	return &NotificationBus{
		listeners:      make(map[int]Listener),
		namedListeners: make(map[string][]NamedListener),
	}
}

// Subscribe registers a listener for all notifications and returns a handle.
func (bus *NotificationBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeName registers a listener for a specific notification name.
func (bus *NotificationBus) SubscribeName(name string, callback func(Notification)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.namedListeners[name] = append(bus.namedListeners[name], NamedListener{
		Handle:   handle,
		Name:     name,
		Callback: callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *NotificationBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for name, listeners := range bus.namedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.namedListeners[name] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the notification to all registered listeners
// synchronously.
func (bus *NotificationBus) Publish(n Notification) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(n)
	}
	if named, ok := bus.namedListeners[n.Name]; ok {
		for _, listener := range named {
			listener.Callback(n)
		}
	}
}

package rules

import "sync"

// Watcher observes published notifications to track conditions for
// persistent and delayed effects. A delayed effect typically watches the
// otherEffects broadcast of the events it cares about and cancels itself when
// its trigger can no longer happen.
type Watcher interface {
	// Watch is called for every published notification.
	Watch(n Notification)

	// Reset clears the watcher's tracked state, typically at phase or turn
	// boundaries.
	Reset()

	// ConditionMet reports whether the tracked condition currently holds.
	ConditionMet() bool

	// Key uniquely identifies the watcher instance.
	Key() string
}

// WatcherRegistry manages the watchers for a game and fans published
// notifications out to them.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
	order    []string
}

// NewWatcherRegistry creates an empty registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{
		watchers: make(map[string]Watcher),
	}
}

// Add registers a watcher; a watcher with an existing key replaces it.
func (r *WatcherRegistry) Add(w Watcher) {
	if w == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := w.Key()
	if _, exists := r.watchers[key]; !exists {
		r.order = append(r.order, key)
	}
	r.watchers[key] = w
}

// Remove deletes a watcher by key.
func (r *WatcherRegistry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.watchers[key]; !ok {
		return
	}
	delete(r.watchers, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get retrieves a watcher by key.
func (r *WatcherRegistry) Get(key string) Watcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.watchers[key]
}

// ResetAll resets every registered watcher.
func (r *WatcherRegistry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.watchers {
		w.Reset()
	}
}

// Notify fans a notification out to every watcher in registration order.
func (r *WatcherRegistry) Notify(n Notification) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.order {
		r.watchers[key].Watch(n)
	}
}

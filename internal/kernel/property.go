package kernel

import (
	"encoding/json"
	"sync"
)

// EventUpdate is the UI event name carrying a new value for a property.
const EventUpdate = "update"

// MetaReadOnly marks a property whose widget handler is skipped for peer
// events. Listeners still run.
const MetaReadOnly = "readonly"

// Listener receives the raw payload of a UI event.
type Listener func(data json.RawMessage)

// ListenerID identifies a registered listener so it can be removed with Off.
type ListenerID uint64

// Property is a typed, observable value that lives inside a View.
//
// Concrete widgets embed Base, which provides identity, metadata, dirty
// propagation and listeners. They implement HandleUIEvent, Value and Specs.
type Property interface {
	ID() string
	View() *View
	Attach(v *View, id string)

	// HandleUIEvent applies a UI-originated mutation. Unknown events are
	// ignored. Implementations call MarkDirtyFrom(origin) after changing
	// their value so the originating session is excluded from the echo.
	HandleUIEvent(origin Notifier, event string, data json.RawMessage)
	ReceiveUIEvent(origin Notifier, event string, data json.RawMessage)

	MarkDirty()
	MarkDirtyFrom(origin Notifier)

	Value() any
	Specs() PropertySpec

	SetMeta(key string, value any)
	Meta() map[string]any

	On(event string, fn Listener) ListenerID
	Off(event string, id ListenerID) bool
}

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Base implements the widget-independent part of Property. It must be
// initialised with Init before use so that it can reach the outer widget.
type Base struct {
	mu        sync.RWMutex
	self      Property
	id        string
	view      *View
	meta      map[string]any
	listeners map[string][]listenerEntry
	lastID    ListenerID
}

// Init binds the base to the widget embedding it and sets the title meta.
func (b *Base) Init(self Property, title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self = self
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta["title"] = title
}

func (b *Base) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

func (b *Base) View() *View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.view
}

// Attach binds the property to v under id. A second call re-binds.
func (b *Base) Attach(v *View, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view = v
	b.id = id
}

// MarkDirty announces a change to every live session, except the session
// whose frame is being dispatched, if any.
func (b *Base) MarkDirty() {
	b.MarkDirtyFrom(nil)
}

// MarkDirtyFrom announces a change to every live session except origin.
// It is a no-op until the property is attached.
func (b *Base) MarkDirtyFrom(origin Notifier) {
	b.mu.RLock()
	v, self := b.view, b.self
	b.mu.RUnlock()
	if v == nil || self == nil {
		return
	}
	v.MarkPropertyAsDirty(self, origin)
}

// ReceiveUIEvent runs the widget's handler, unless the property is read-only,
// and then the listeners registered for event, in registration order.
func (b *Base) ReceiveUIEvent(origin Notifier, event string, data json.RawMessage) {
	b.mu.RLock()
	self := b.self
	readOnly := b.meta[MetaReadOnly] == true
	entries := append([]listenerEntry(nil), b.listeners[event]...)
	b.mu.RUnlock()

	if self != nil && !readOnly {
		self.HandleUIEvent(origin, event, data)
	}
	for _, e := range entries {
		e.fn(data)
	}
}

// ReadOnly reports whether the property ignores value changes from peers.
func (b *Base) ReadOnly() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.meta[MetaReadOnly] == true
}

func (b *Base) SetMeta(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
}

// Meta returns a copy of the metadata.
func (b *Base) Meta() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyMeta(b.meta)
}

func (b *Base) On(event string, fn Listener) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[string][]listenerEntry)
	}
	b.lastID++
	b.listeners[event] = append(b.listeners[event], listenerEntry{id: b.lastID, fn: fn})
	return b.lastID
}

func (b *Base) Off(event string, id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.listeners[event]
	for i, e := range entries {
		if e.id == id {
			b.listeners[event] = append(entries[:i:i], entries[i+1:]...)
			if len(b.listeners[event]) == 0 {
				delete(b.listeners, event)
			}
			return true
		}
	}
	return false
}

// Spec builds the common part of a property descriptor.
func (b *Base) Spec(widget string, value any) PropertySpec {
	return PropertySpec{
		ID:     b.ID(),
		Widget: widget,
		Value:  value,
		Meta:   b.Meta(),
	}
}

// WithMeta sets one metadata entry on p and returns p, for chaining at
// construction time.
func WithMeta[T Property](p T, key string, value any) T {
	p.SetMeta(key, value)
	return p
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

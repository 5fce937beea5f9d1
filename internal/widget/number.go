package widget

import (
	"encoding/json"
	"sync"

	"github.com/wavesoft/marblebar/internal/kernel"
)

// Numeric is the set of value types a Number can hold.
type Numeric interface {
	~int | ~float32 | ~float64
}

// Number is a bounded numeric value. When max > min, every assignment is
// clamped to [min, max].
type Number[T Numeric] struct {
	kernel.Base
	mu     sync.RWMutex
	widget string
	value  T
	min    T
	max    T
}

type (
	Int    = Number[int]
	Float  = Number[float32]
	Double = Number[float64]
)

// NewInt creates an integer slider.
func NewInt(title string, value, min, max, step int) *Int {
	return newNumber("slider", title, value, min, max, step)
}

// NewFloat creates a single-precision slider.
func NewFloat(title string, value, min, max, step float32) *Float {
	return newNumber("slider", title, value, min, max, step)
}

// NewDouble creates a double-precision number input.
func NewDouble(title string, value, min, max, step float64) *Double {
	return newNumber("number", title, value, min, max, step)
}

func newNumber[T Numeric](widget, title string, value, min, max, step T) *Number[T] {
	n := &Number[T]{widget: widget, min: min, max: max}
	n.value = n.clamp(value)
	n.Init(n, title)
	n.SetMeta("min", min)
	n.SetMeta("max", max)
	n.SetMeta("step", step)
	return n
}

func (n *Number[T]) clamp(v T) T {
	if n.max <= n.min {
		return v
	}
	return max(n.min, min(n.max, v))
}

func (n *Number[T]) Get() T {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.value
}

func (n *Number[T]) Set(v T) {
	n.mu.Lock()
	n.value = n.clamp(v)
	n.mu.Unlock()
	n.MarkDirty()
}

// Add increments the value by delta.
func (n *Number[T]) Add(delta T) {
	n.mu.Lock()
	n.value = n.clamp(n.value + delta)
	n.mu.Unlock()
	n.MarkDirty()
}

func (n *Number[T]) HandleUIEvent(origin kernel.Notifier, event string, data json.RawMessage) {
	if event != kernel.EventUpdate {
		return
	}
	var payload struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Value == nil {
		return
	}
	n.mu.Lock()
	n.value = n.clamp(T(*payload.Value))
	n.mu.Unlock()
	n.MarkDirtyFrom(origin)
}

func (n *Number[T]) Value() any { return n.Get() }

func (n *Number[T]) Specs() kernel.PropertySpec {
	return n.Spec(n.widget, n.Get())
}

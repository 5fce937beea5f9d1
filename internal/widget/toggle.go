// Package widget provides the concrete property types understood by the
// browser UI: toggles, numbers, text, buttons, lists and images.
package widget

import (
	"encoding/json"
	"sync"

	"github.com/wavesoft/marblebar/internal/kernel"
)

// Bool is an on/off toggle.
type Bool struct {
	kernel.Base
	mu    sync.RWMutex
	value bool
}

func NewBool(title string, value bool) *Bool {
	b := &Bool{value: value}
	b.Init(b, title)
	return b
}

func (b *Bool) Get() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

func (b *Bool) Set(value bool) {
	b.mu.Lock()
	b.value = value
	b.mu.Unlock()
	b.MarkDirty()
}

func (b *Bool) HandleUIEvent(origin kernel.Notifier, event string, data json.RawMessage) {
	if event != kernel.EventUpdate {
		return
	}
	var payload struct {
		Value *bool `json:"value"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Value == nil {
		return
	}
	b.mu.Lock()
	b.value = *payload.Value
	b.mu.Unlock()
	b.MarkDirtyFrom(origin)
}

func (b *Bool) Value() any { return b.Get() }

func (b *Bool) Specs() kernel.PropertySpec {
	return b.Spec("toggle", b.Get())
}

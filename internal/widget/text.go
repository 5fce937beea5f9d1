package widget

import (
	"encoding/json"
	"sync"

	"github.com/wavesoft/marblebar/internal/kernel"
)

// Text is a string-valued widget: an editable text field, a label, or a
// button. Buttons ignore update events; their clicks only reach listeners.
type Text struct {
	kernel.Base
	mu       sync.RWMutex
	widget   string
	editable bool
	value    string
}

func NewString(title, value string) *Text {
	return newText("text", true, title, value)
}

func NewLabel(title, value string) *Text {
	return newText("label", true, title, value)
}

// NewButton creates a button showing value as its caption.
func NewButton(title, value string) *Text {
	t := newText("button", false, title, value)
	t.SetMeta("class", "btn-primary")
	return t
}

func newText(widget string, editable bool, title, value string) *Text {
	t := &Text{widget: widget, editable: editable, value: value}
	t.Init(t, title)
	return t
}

func (t *Text) Get() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

func (t *Text) Set(value string) {
	t.mu.Lock()
	t.value = value
	t.mu.Unlock()
	t.MarkDirty()
}

func (t *Text) Append(s string) {
	t.mu.Lock()
	t.value += s
	t.mu.Unlock()
	t.MarkDirty()
}

func (t *Text) HandleUIEvent(origin kernel.Notifier, event string, data json.RawMessage) {
	if !t.editable || event != kernel.EventUpdate {
		return
	}
	var payload struct {
		Value *string `json:"value"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Value == nil {
		return
	}
	t.mu.Lock()
	t.value = *payload.Value
	t.mu.Unlock()
	t.MarkDirtyFrom(origin)
}

func (t *Text) Value() any { return t.Get() }

func (t *Text) Specs() kernel.PropertySpec {
	return t.Spec(t.widget, t.Get())
}

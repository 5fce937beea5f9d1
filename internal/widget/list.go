package widget

import (
	"encoding/json"
	"sync"

	"github.com/wavesoft/marblebar/internal/kernel"
)

// Option is one entry of a List.
type Option struct {
	Label string
	Value string
}

// List is a single choice among ordered options. Its wire value is the
// selected index.
type List struct {
	kernel.Base
	mu      sync.RWMutex
	index   int
	options []Option
}

func NewList(title string, index int) *List {
	l := &List{index: index}
	l.Init(l, title)
	return l
}

// AddOption appends an option and returns the list for chaining.
func (l *List) AddOption(label, value string) *List {
	l.mu.Lock()
	l.options = append(l.options, Option{Label: label, Value: value})
	l.mu.Unlock()
	return l
}

func (l *List) Options() []Option {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Option(nil), l.options...)
}

func (l *List) Index() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.index
}

// Selected returns the value of the selected option, or "" when the index
// is out of range.
func (l *List) Selected() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.index < 0 || l.index >= len(l.options) {
		return ""
	}
	return l.options[l.index].Value
}

func (l *List) SetIndex(index int) {
	l.mu.Lock()
	l.index = index
	l.mu.Unlock()
	l.MarkDirty()
}

// Select picks the first option whose value equals value. It reports
// false, leaving the selection untouched, when no option matches.
func (l *List) Select(value string) bool {
	l.mu.Lock()
	for i, o := range l.options {
		if o.Value == value {
			l.index = i
			l.mu.Unlock()
			l.MarkDirty()
			return true
		}
	}
	l.mu.Unlock()
	return false
}

func (l *List) HandleUIEvent(origin kernel.Notifier, event string, data json.RawMessage) {
	if event != kernel.EventUpdate {
		return
	}
	var payload struct {
		Index *int `json:"index"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Index == nil {
		return
	}
	l.mu.Lock()
	l.index = *payload.Index
	l.mu.Unlock()
	l.MarkDirtyFrom(origin)
}

func (l *List) Value() any { return l.Index() }

func (l *List) Specs() kernel.PropertySpec {
	spec := l.Spec("list", l.Index())
	l.mu.RLock()
	spec.Options = make([][2]string, 0, len(l.options))
	for _, o := range l.options {
		spec.Options = append(spec.Options, [2]string{o.Label, o.Value})
	}
	l.mu.RUnlock()
	return spec
}

package kernel

// PropertySpec is the wire descriptor of a property. Options is only set
// by list widgets as ordered [label, value] pairs.
type PropertySpec struct {
	ID      string         `json:"id"`
	Widget  string         `json:"widget"`
	Value   any            `json:"value"`
	Meta    map[string]any `json:"meta"`
	Options [][2]string    `json:"options,omitempty"`
}

// ViewSpec is the wire descriptor of a view, used by view/add and view/update.
type ViewSpec struct {
	ID         string         `json:"id"`
	Properties []PropertySpec `json:"properties"`
	Meta       map[string]any `json:"meta"`
}

// Notifier receives structural and value-change notifications from the
// kernel. Sessions implement it.
type Notifier interface {
	NotifyViewAdded(v *View)
	NotifyViewRemoved(v *View)
	NotifyViewUpdated(v *View)
	NotifyViewPropertyUpdate(v *View, p Property)
}

// Sessions is the live session set the kernel broadcasts to. Notifiers
// returns a snapshot in registry order; the kernel iterates it without
// holding any registry lock.
type Sessions interface {
	Notifiers() []Notifier
}

package kernel

import (
	"strconv"
	"sync"
)

// View is an ordered collection of properties shown together in the UI.
// Property ids are local to the view and never reused.
type View struct {
	mu             sync.RWMutex
	id             string
	kernel         *Kernel
	properties     []Property
	meta           map[string]any
	lastPropertyID int
}

// NewView creates a detached view. It becomes usable once added to a Kernel.
func NewView(title string) *View {
	return &View{
		meta: map[string]any{"title": title},
	}
}

func (v *View) ID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.id
}

func (v *View) Kernel() *Kernel {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.kernel
}

func (v *View) Attached() bool {
	return v.Kernel() != nil
}

// Attach binds the view to k under id.
func (v *View) Attach(k *Kernel, id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.kernel = k
	v.id = id
}

func (v *View) detach() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.kernel = nil
}

// AddProperty assigns the next property id to p, attaches it and appends
// it to the view. Before the view is attached to a kernel it does nothing.
func (v *View) AddProperty(p Property) Property {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.kernel == nil {
		return p
	}
	v.lastPropertyID++
	p.Attach(v, "p"+strconv.Itoa(v.lastPropertyID))
	v.properties = append(v.properties, p)
	return p
}

// Add is AddProperty preserving the concrete widget type.
func Add[T Property](v *View, p T) T {
	v.AddProperty(p)
	return p
}

// RemoveProperty drops p from the view and pushes a view/update to every
// session. The id of p is not reused.
func (v *View) RemoveProperty(p Property) bool {
	v.mu.Lock()
	k := v.kernel
	idx := -1
	for i, q := range v.properties {
		if q == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		v.mu.Unlock()
		return false
	}
	v.properties = append(v.properties[:idx:idx], v.properties[idx+1:]...)
	v.mu.Unlock()

	p.Attach(nil, p.ID())
	if k != nil {
		k.BroadcastViewUpdated(v, nil)
	}
	return true
}

// Properties returns the properties in display order.
func (v *View) Properties() []Property {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Property(nil), v.properties...)
}

// PropertyByID returns the property with the given id, or nil.
func (v *View) PropertyByID(id string) Property {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, p := range v.properties {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

func (v *View) SetMeta(key string, value any) *View {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.meta[key] = value
	return v
}

func (v *View) Meta() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return copyMeta(v.meta)
}

// MarkPropertyAsDirty asks the kernel to broadcast the current value of p
// to every session except origin.
func (v *View) MarkPropertyAsDirty(p Property, origin Notifier) {
	k := v.Kernel()
	if k == nil {
		return
	}
	k.BroadcastViewPropertyUpdate(v, p, origin)
}

// Sync pushes the full view spec to every session as a view/update.
func (v *View) Sync() {
	if k := v.Kernel(); k != nil {
		k.BroadcastViewUpdated(v, nil)
	}
}

// Specs returns the wire descriptor of the view, or nil when detached.
func (v *View) Specs() *ViewSpec {
	v.mu.RLock()
	if v.kernel == nil {
		v.mu.RUnlock()
		return nil
	}
	spec := &ViewSpec{
		ID:         v.id,
		Properties: make([]PropertySpec, 0, len(v.properties)),
		Meta:       copyMeta(v.meta),
	}
	props := append([]Property(nil), v.properties...)
	v.mu.RUnlock()

	for _, p := range props {
		spec.Properties = append(spec.Properties, p.Specs())
	}
	return spec
}

// NextPropertyID consumes and returns the next property id ("p1", "p2", ...).
func (v *View) NextPropertyID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastPropertyID++
	return "p" + strconv.Itoa(v.lastPropertyID)
}

// Group is a titled subset of a view's properties.
type Group struct {
	title string
	view  *View
}

// Group returns a handle that adds properties to v tagged with
// meta "group" = title.
func (v *View) Group(title string) *Group {
	return &Group{title: title, view: v}
}

func (g *Group) Title() string { return g.title }

func (g *Group) AddProperty(p Property) Property {
	p.SetMeta("group", g.title)
	return g.view.AddProperty(p)
}

// AddTo is Group.AddProperty preserving the concrete widget type.
func AddTo[T Property](g *Group, p T) T {
	g.AddProperty(p)
	return p
}

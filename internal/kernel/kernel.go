package kernel

import (
	"strconv"
	"sync"
)

// Kernel is the root registry of views. It assigns view ids and fans out
// change notifications to the live sessions.
//
// Echo suppression: every broadcast skips the session that caused it.
// A direct change passes that session as exclude; anything else broadcast
// while Dispatch runs on behalf of a session skips that session too.
type Kernel struct {
	mu         sync.RWMutex
	views      []*View
	lastViewID int
	sessions   Sessions
	origin     Notifier

	dispatchMu sync.Mutex
}

func New() *Kernel {
	return &Kernel{}
}

// SetSessions installs the live session set used for broadcasts.
func (k *Kernel) SetSessions(s Sessions) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sessions = s
}

// CreateView creates a view titled title, attaches it and announces it.
func (k *Kernel) CreateView(title string) *View {
	return k.AddView(NewView(title))
}

// AddView attaches v under the next view id and broadcasts view/add.
// A view that is already attached is returned unchanged.
func (k *Kernel) AddView(v *View) *View {
	if v.Attached() {
		return v
	}
	k.mu.Lock()
	k.lastViewID++
	id := "v" + strconv.Itoa(k.lastViewID)
	k.views = append(k.views, v)
	v.Attach(k, id)
	k.mu.Unlock()

	k.BroadcastViewAdded(v, nil)
	return v
}

// RemoveView detaches v and broadcasts view/remove. The id is not reused.
func (k *Kernel) RemoveView(v *View) bool {
	k.mu.Lock()
	idx := -1
	for i, w := range k.views {
		if w == v {
			idx = i
			break
		}
	}
	if idx < 0 {
		k.mu.Unlock()
		return false
	}
	k.views = append(k.views[:idx:idx], k.views[idx+1:]...)
	k.mu.Unlock()

	k.BroadcastViewRemoved(v, nil)
	v.detach()
	return true
}

// Views returns the views in attach order.
func (k *Kernel) Views() []*View {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]*View(nil), k.views...)
}

// ViewByID returns the view with the given id, or nil.
func (k *Kernel) ViewByID(id string) *View {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, v := range k.views {
		if v.ID() == id {
			return v
		}
	}
	return nil
}

// Specs returns the descriptors of every view in attach order.
func (k *Kernel) Specs() []ViewSpec {
	views := k.Views()
	out := make([]ViewSpec, 0, len(views))
	for _, v := range views {
		if spec := v.Specs(); spec != nil {
			out = append(out, *spec)
		}
	}
	return out
}

// NextViewID consumes and returns the next view id ("v1", "v2", ...).
func (k *Kernel) NextViewID() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.lastViewID++
	return "v" + strconv.Itoa(k.lastViewID)
}

// Dispatch runs fn while holding the kernel's dispatch lock, so at most one
// inbound frame is applied to the tree at a time. Every broadcast made
// while fn runs skips origin, including ones raised by listeners.
//
// Host goroutines that mutate the tree concurrently with sessions should
// wrap their changes in Dispatch(nil, fn) so they are not mistaken for part
// of a session's dispatch. Dispatch is not reentrant.
func (k *Kernel) Dispatch(origin Notifier, fn func()) {
	k.dispatchMu.Lock()
	defer k.dispatchMu.Unlock()

	k.mu.Lock()
	k.origin = origin
	k.mu.Unlock()
	defer func() {
		k.mu.Lock()
		k.origin = nil
		k.mu.Unlock()
	}()

	fn()
}

func (k *Kernel) BroadcastViewAdded(v *View, exclude Notifier) {
	k.broadcast(exclude, func(n Notifier) { n.NotifyViewAdded(v) })
}

func (k *Kernel) BroadcastViewRemoved(v *View, exclude Notifier) {
	k.broadcast(exclude, func(n Notifier) { n.NotifyViewRemoved(v) })
}

func (k *Kernel) BroadcastViewUpdated(v *View, exclude Notifier) {
	k.broadcast(exclude, func(n Notifier) { n.NotifyViewUpdated(v) })
}

func (k *Kernel) BroadcastViewPropertyUpdate(v *View, p Property, exclude Notifier) {
	k.broadcast(exclude, func(n Notifier) { n.NotifyViewPropertyUpdate(v, p) })
}

func (k *Kernel) broadcast(exclude Notifier, fn func(Notifier)) {
	k.mu.RLock()
	sessions := k.sessions
	if exclude == nil {
		exclude = k.origin
	}
	k.mu.RUnlock()
	if sessions == nil {
		return
	}
	for _, n := range sessions.Notifiers() {
		if exclude != nil && n == exclude {
			continue
		}
		fn(n)
	}
}

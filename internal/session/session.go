package session

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/wavesoft/marblebar/internal/kernel"
	"golang.org/x/time/rate"
)

type State int

const (
	Open State = iota
	Closing
	Closed
)

var stateNames = map[State]string{
	Open:    "open",
	Closing: "closing",
	Closed:  "closed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Options tunes per-session limits. The zero value imposes none.
type Options struct {
	// EgressLimit is the number of queued frames after which the session
	// is disconnected as too slow. Zero means unbounded.
	EgressLimit int
	// FrameRate and FrameBurst limit inbound frames per second.
	// A zero FrameRate disables the limit.
	FrameRate  float64
	FrameBurst int
}

// Session is the protocol adapter of one live connection. It turns inbound
// frames into kernel operations and kernel notifications into outbound
// frames queued for the transport.
type Session struct {
	id     string
	domain string
	path   string
	kernel *kernel.Kernel
	opts   Options
	limit  *rate.Limiter

	mu       sync.Mutex
	state    State
	egress   [][]byte
	detached bool
	ready  chan struct{}
	done   chan struct{}
	once   sync.Once
}

func New(k *kernel.Kernel, id, domain, path string, opts Options) *Session {
	s := &Session{
		id:     id,
		domain: domain,
		path:   path,
		kernel: k,
		opts:   opts,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if opts.FrameRate > 0 {
		burst := opts.FrameBurst
		if burst < 1 {
			burst = 1
		}
		s.limit = rate.NewLimiter(rate.Limit(opts.FrameRate), burst)
	}
	return s
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Domain() string { return s.domain }
func (s *Session) Path() string   { return s.path }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the session still accepts frames.
func (s *Session) Connected() bool {
	return s.State() == Open
}

// Disconnect moves the session to Closing. Frames already queued are
// still handed to the transport.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == Open {
		s.state = Closing
	}
	s.mu.Unlock()
	s.signal()
}

// Cleanup closes the session for good and drops pending egress. It is
// safe to call more than once.
func (s *Session) Cleanup() {
	s.once.Do(func() {
		s.mu.Lock()
		s.state = Closed
		s.egress = nil
		s.mu.Unlock()
		close(s.done)
	})
}

// Done is closed by Cleanup.
func (s *Session) Done() <-chan struct{} { return s.done }

// Ready receives a value whenever egress was queued or the state changed.
func (s *Session) Ready() <-chan struct{} { return s.ready }

func (s *Session) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// SendRawData queues frame for the transport.
func (s *Session) SendRawData(frame []byte) {
	s.mu.Lock()
	if s.state == Closed || s.detached {
		s.mu.Unlock()
		return
	}
	if s.opts.EgressLimit > 0 && len(s.egress) >= s.opts.EgressLimit {
		s.mu.Unlock()
		log.Printf("session %s egress queue full, disconnecting", s.id)
		s.Disconnect()
		return
	}
	s.egress = append(s.egress, frame)
	s.mu.Unlock()
	s.signal()
}

// PopEgress removes and returns the oldest queued frame.
func (s *Session) PopEgress() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.egress) == 0 {
		return nil, false
	}
	frame := s.egress[0]
	s.egress[0] = nil
	s.egress = s.egress[1:]
	return frame, true
}

// Pending returns the number of queued frames.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.egress)
}

// CloseEgress tells the session its transport has stopped writing. Queued
// frames are dropped, later sends are discarded and the session moves to
// Closing, so the registry can remove it on its next poll.
func (s *Session) CloseEgress() {
	s.mu.Lock()
	s.detached = true
	s.egress = nil
	if s.state == Open {
		s.state = Closing
	}
	s.mu.Unlock()
}

func (s *Session) send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("session %s marshal error: %v", s.id, err)
		return
	}
	s.SendRawData(data)
}

// SendAction pushes an action frame. id is empty for unsolicited pushes.
func (s *Session) SendAction(name string, data interface{}, id string) {
	s.send(ActionMessage{Type: MsgAction, Name: name, ID: id, Data: data})
}

// Reply answers request id with data.
func (s *Session) Reply(id string, data interface{}) {
	s.send(ResultMessage{Type: MsgResult, ID: id, Data: data})
}

// SendError reports a rejected request. An empty id is omitted.
func (s *Session) SendError(message, id string) {
	s.send(ErrorMessage{Type: MsgError, ID: id, Error: message})
}

func (s *Session) NotifyViewAdded(v *kernel.View) {
	s.SendAction(ActionViewAdd, v.Specs(), "")
}

func (s *Session) NotifyViewRemoved(v *kernel.View) {
	s.SendAction(ActionViewRemove, ViewRemovedPayload{ID: v.ID()}, "")
}

func (s *Session) NotifyViewUpdated(v *kernel.View) {
	s.SendAction(ActionViewUpdate, v.Specs(), "")
}

func (s *Session) NotifyViewPropertyUpdate(v *kernel.View, p kernel.Property) {
	s.SendAction(ActionViewPropChange, PropChangePayload{
		ID:    v.ID(),
		Prop:  p.ID(),
		Value: p.Value(),
	}, "")
}

// HandleRawData parses one inbound frame and applies it. Every failure is
// answered with a single error frame to this session only.
func (s *Session) HandleRawData(data []byte) {
	if !s.Connected() {
		return
	}
	root, err := decodeFields(data)
	if err != nil {
		s.SendError(ErrTextParse, "")
		return
	}

	if !root.has("id") {
		s.SendError(missingParam("id"), "")
		return
	}
	id := root.text("id")
	for _, name := range []string{"type", "name", "data"} {
		if !root.has(name) {
			s.SendError(missingParam(name), id)
			return
		}
	}
	if root.text("type") != string(MsgEvent) {
		s.SendError(ErrTextUnknownType, id)
		return
	}
	if s.limit != nil && !s.limit.Allow() {
		s.SendError(ErrTextRateLimited, id)
		return
	}

	s.kernel.Dispatch(s, func() {
		s.handleEvent(id, root.text("name"), root["data"])
	})
}

func (s *Session) handleEvent(id, event string, data json.RawMessage) {
	switch event {
	case EventUIInit:
		for _, v := range s.kernel.Views() {
			s.NotifyViewAdded(v)
		}

	case EventPropertyEvent:
		args, err := decodeFields(data)
		if err != nil {
			args = fields{}
		}
		for _, name := range []string{"view", "prop", "name", "data"} {
			if !args.has(name) {
				s.SendError(missingParam(name), id)
				return
			}
		}
		v := s.kernel.ViewByID(args.text("view"))
		if v == nil {
			s.SendError(ErrTextViewNotFound, id)
			return
		}
		p := v.PropertyByID(args.text("prop"))
		if p == nil {
			s.SendError(ErrTextPropertyMissing, id)
			return
		}
		p.ReceiveUIEvent(s, args.text("name"), args["data"])

	default:
		s.SendError(ErrTextUnknownEvent, id)
	}
}

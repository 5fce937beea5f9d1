package session

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/wavesoft/marblebar/internal/kernel"
	"github.com/wavesoft/marblebar/internal/widget"
)

// drain pops every queued frame of s and decodes it.
func drain(t *testing.T, s *Session) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		frame, ok := s.PopEgress()
		if !ok {
			return out
		}
		var m map[string]any
		if err := json.Unmarshal(frame, &m); err != nil {
			t.Fatalf("egress frame %q is not JSON: %v", frame, err)
		}
		out = append(out, m)
	}
}

func newPair(t *testing.T) (*kernel.Kernel, *Registry, *Session, *Session) {
	t.Helper()
	k := kernel.New()
	r := NewRegistry(k, Options{}, 0)
	a, err := r.Open("localhost", "/")
	if err != nil {
		t.Fatalf("Open A: %v", err)
	}
	b, err := r.Open("localhost", "/")
	if err != nil {
		t.Fatalf("Open B: %v", err)
	}
	return k, r, a, b
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Open, "open"},
		{Closing, "closing"},
		{Closed, "closed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}

	data, err := json.Marshal(Closing)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"closing"` {
		t.Errorf("Marshal(Closing) = %s, want \"closing\"", data)
	}
}

func TestRoundTripToggle(t *testing.T) {
	k, _, a, b := newPair(t)
	v := k.CreateView("Primary")
	toggle := kernel.Add(v, widget.NewBool("Toggler", false))
	drain(t, a)
	drain(t, b)

	if v.ID() != "v1" || toggle.ID() != "p1" {
		t.Fatalf("ids = %s/%s, want v1/p1", v.ID(), toggle.ID())
	}

	a.HandleRawData([]byte(`{"type":"event","name":"property/event","id":"1",` +
		`"data":{"view":"v1","prop":"p1","name":"update","data":{"value":true}}}`))

	if !toggle.Get() {
		t.Error("toggle value not updated by UI event")
	}
	if got := drain(t, a); len(got) != 0 {
		t.Errorf("originating session received %d frames, want 0: %v", len(got), got)
	}

	got := drain(t, b)
	want := []map[string]any{{
		"type": "action",
		"name": "view/propchange",
		"id":   "",
		"data": map[string]any{"id": "v1", "prop": "p1", "value": true},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("peer frames = %v, want %v", got, want)
	}
}

func TestHostChangeReachesEverySession(t *testing.T) {
	k, _, a, b := newPair(t)
	v := k.CreateView("Primary")
	n := kernel.Add(v, widget.NewInt("Range", 0, 0, 0, 1))
	drain(t, a)
	drain(t, b)

	n.Set(42)

	for name, s := range map[string]*Session{"A": a, "B": b} {
		frames := drain(t, s)
		if len(frames) != 1 {
			t.Fatalf("session %s received %d frames, want 1", name, len(frames))
		}
		if frames[0]["name"] != ActionViewPropChange {
			t.Errorf("session %s frame name = %v", name, frames[0]["name"])
		}
		data := frames[0]["data"].(map[string]any)
		if data["value"] != float64(42) {
			t.Errorf("session %s value = %v, want 42", name, data["value"])
		}
	}
}

func TestListenerBroadcastSkipsOrigin(t *testing.T) {
	k, _, a, b := newPair(t)
	v := k.CreateView("Primary")
	button := kernel.Add(v, widget.NewButton("Go", "Click"))
	label := kernel.Add(v, widget.NewLabel("Status", "idle"))
	button.On("click", func(json.RawMessage) {
		label.Set("clicked")
	})
	drain(t, a)
	drain(t, b)

	a.HandleRawData([]byte(`{"type":"event","name":"property/event","id":"7",` +
		`"data":{"view":"v1","prop":"p1","name":"click","data":{}}}`))

	if got := drain(t, a); len(got) != 0 {
		t.Errorf("originating session received %v", got)
	}
	frames := drain(t, b)
	if len(frames) != 1 {
		t.Fatalf("peer received %d frames, want 1", len(frames))
	}
	data := frames[0]["data"].(map[string]any)
	if data["prop"] != "p2" || data["value"] != "clicked" {
		t.Errorf("peer data = %v", data)
	}

	label.Set("host")
	if len(drain(t, a)) != 1 || len(drain(t, b)) != 1 {
		t.Error("host change after dispatch did not reach both sessions")
	}
}

func TestListenerCreatedViewSkipsOrigin(t *testing.T) {
	k, _, a, b := newPair(t)
	v := k.CreateView("Primary")
	button := kernel.Add(v, widget.NewButton("Spawn", "Spawn"))
	button.On("click", func(json.RawMessage) {
		k.CreateView("Spawned")
	})
	drain(t, a)
	drain(t, b)

	a.HandleRawData([]byte(`{"type":"event","name":"property/event","id":"8",` +
		`"data":{"view":"v1","prop":"p1","name":"click","data":{}}}`))

	if got := drain(t, a); len(got) != 0 {
		t.Errorf("originating session received %v", got)
	}
	frames := drain(t, b)
	if len(frames) != 1 || frames[0]["name"] != ActionViewAdd {
		t.Fatalf("peer frames = %v, want one view/add", frames)
	}
	if id := frames[0]["data"].(map[string]any)["id"]; id != "v2" {
		t.Errorf("spawned view id = %v, want v2", id)
	}
}

func TestReplyFrame(t *testing.T) {
	s := New(kernel.New(), "s1", "localhost", "/", Options{})
	s.Reply("42", map[string]any{"ok": true})

	got := drain(t, s)
	want := []map[string]any{{
		"type": "result",
		"id":   "42",
		"data": map[string]any{"ok": true},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("frames = %v, want %v", got, want)
	}
}

func TestRemoveViewFrame(t *testing.T) {
	k, _, a, b := newPair(t)
	v := k.CreateView("Primary")
	k.CreateView("Other")
	drain(t, a)
	drain(t, b)

	k.RemoveView(v)

	want := []map[string]any{{
		"type": "action",
		"name": "view/remove",
		"id":   "",
		"data": map[string]any{"id": "v1"},
	}}
	for name, s := range map[string]*Session{"A": a, "B": b} {
		if got := drain(t, s); !reflect.DeepEqual(got, want) {
			t.Errorf("session %s frames = %v, want %v", name, got, want)
		}
	}
}

func TestViewUpdateFrames(t *testing.T) {
	k, _, a, _ := newPair(t)
	v := k.CreateView("Primary")
	first := kernel.Add(v, widget.NewBool("Toggler", true))
	kernel.Add(v, widget.NewLabel("Status", "idle"))
	drain(t, a)

	v.RemoveProperty(first)

	frames := drain(t, a)
	want := []map[string]any{{
		"type": "action",
		"name": "view/update",
		"id":   "",
		"data": map[string]any{
			"id": "v1",
			"properties": []any{map[string]any{
				"id":     "p2",
				"widget": "label",
				"value":  "idle",
				"meta":   map[string]any{"title": "Status"},
			}},
			"meta": map[string]any{"title": "Primary"},
		},
	}}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("after RemoveProperty frames = %v, want %v", frames, want)
	}

	v.SetMeta("title", "Renamed")
	if got := drain(t, a); len(got) != 0 {
		t.Errorf("SetMeta pushed %v", got)
	}
	v.Sync()
	frames = drain(t, a)
	if len(frames) != 1 || frames[0]["name"] != ActionViewUpdate {
		t.Fatalf("after Sync frames = %v, want one view/update", frames)
	}
	data := frames[0]["data"].(map[string]any)
	if data["id"] != "v1" || data["meta"].(map[string]any)["title"] != "Renamed" {
		t.Errorf("Sync spec = %v", data)
	}
	if props := data["properties"].([]any); len(props) != 1 {
		t.Errorf("Sync properties = %v, want 1", props)
	}
}

func TestUIInitResync(t *testing.T) {
	k, _, a, b := newPair(t)
	first := k.CreateView("First")
	kernel.Add(first, widget.NewBool("On", true))
	k.CreateView("Second")
	k.CreateView("Third")
	drain(t, a)
	drain(t, b)

	a.HandleRawData([]byte(`{"type":"event","name":"ui/init","id":"1","data":null}`))

	frames := drain(t, a)
	if len(frames) != 3 {
		t.Fatalf("ui/init produced %d frames, want 3", len(frames))
	}
	for i, id := range []string{"v1", "v2", "v3"} {
		if frames[i]["name"] != ActionViewAdd {
			t.Errorf("frame %d name = %v, want %s", i, frames[i]["name"], ActionViewAdd)
		}
		data := frames[i]["data"].(map[string]any)
		if data["id"] != id {
			t.Errorf("frame %d view id = %v, want %s", i, data["id"], id)
		}
	}
	props := frames[0]["data"].(map[string]any)["properties"].([]any)
	if len(props) != 1 || props[0].(map[string]any)["widget"] != "toggle" {
		t.Errorf("first view properties = %v", props)
	}
	if got := drain(t, b); len(got) != 0 {
		t.Errorf("ui/init leaked %d frames to another session", len(got))
	}
}

func TestRejectedFrames(t *testing.T) {
	tests := []struct {
		name   string
		frame  string
		wantID any
		want   string
	}{
		{"not json", `{nope`, nil, ErrTextParse},
		{"missing id", `{"type":"event"}`, nil, "Missing 'id' parameter in the incoming request"},
		{"missing type", `{"id":"1","name":"ui/init","data":null}`, "1", "Missing 'type' parameter in the incoming request"},
		{"missing name", `{"id":"1","type":"event","data":null}`, "1", "Missing 'name' parameter in the incoming request"},
		{"missing data", `{"id":"1","type":"event","name":"ui/init"}`, "1", "Missing 'data' parameter in the incoming request"},
		{"wrong type", `{"id":"1","type":"action","name":"ui/init","data":null}`, "1", ErrTextUnknownType},
		{"unknown event", `{"id":"1","type":"event","name":"nope","data":null}`, "1", ErrTextUnknownEvent},
		{"missing view", `{"id":"1","type":"event","name":"property/event","data":{"prop":"p1","name":"update","data":{}}}`, "1", "Missing 'view' parameter in the incoming request"},
		{"missing prop", `{"id":"1","type":"event","name":"property/event","data":{"view":"v1","name":"update","data":{}}}`, "1", "Missing 'prop' parameter in the incoming request"},
		{"missing event name", `{"id":"1","type":"event","name":"property/event","data":{"view":"v1","prop":"p1","data":{}}}`, "1", "Missing 'name' parameter in the incoming request"},
		{"missing event data", `{"id":"1","type":"event","name":"property/event","data":{"view":"v1","prop":"p1","name":"update"}}`, "1", "Missing 'data' parameter in the incoming request"},
		{"unknown view", `{"id":"1","type":"event","name":"property/event","data":{"view":"v9","prop":"p1","name":"update","data":{}}}`, "1", ErrTextViewNotFound},
		{"unknown prop", `{"id":"1","type":"event","name":"property/event","data":{"view":"v1","prop":"p9","name":"update","data":{}}}`, "1", ErrTextPropertyMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, _, a, b := newPair(t)
			v := k.CreateView("Primary")
			toggle := kernel.Add(v, widget.NewBool("Toggler", false))
			drain(t, a)
			drain(t, b)

			a.HandleRawData([]byte(tt.frame))

			frames := drain(t, a)
			if len(frames) != 1 {
				t.Fatalf("got %d frames, want exactly 1: %v", len(frames), frames)
			}
			f := frames[0]
			if f["type"] != "error" || f["error"] != tt.want {
				t.Errorf("frame = %v, want error %q", f, tt.want)
			}
			if f["id"] != tt.wantID {
				t.Errorf("frame id = %v, want %v", f["id"], tt.wantID)
			}
			if toggle.Get() {
				t.Error("rejected frame changed state")
			}
			if got := drain(t, b); len(got) != 0 {
				t.Errorf("rejected frame reached another session: %v", got)
			}
		})
	}
}

func TestMalformedUpdateIsIgnored(t *testing.T) {
	k, _, a, b := newPair(t)
	v := k.CreateView("Primary")
	toggle := kernel.Add(v, widget.NewBool("Toggler", true))
	drain(t, a)
	drain(t, b)

	a.HandleRawData([]byte(`{"type":"event","name":"property/event","id":"1",` +
		`"data":{"view":"v1","prop":"p1","name":"update","data":{"other":1}}}`))

	if !toggle.Get() {
		t.Error("update without value changed the toggle")
	}
	if len(drain(t, a))+len(drain(t, b)) != 0 {
		t.Error("ignored update produced frames")
	}
}

func TestFrameRateLimit(t *testing.T) {
	k := kernel.New()
	r := NewRegistry(k, Options{FrameRate: 0.001, FrameBurst: 2}, 0)
	s, err := r.Open("localhost", "/")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 3; i++ {
		s.HandleRawData([]byte(`{"type":"event","name":"ui/init","id":"1","data":null}`))
	}

	frames := drain(t, s)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 rate-limit error", len(frames))
	}
	if frames[0]["error"] != ErrTextRateLimited {
		t.Errorf("frame = %v, want rate-limit error", frames[0])
	}
}

func TestEgressLimitDisconnects(t *testing.T) {
	k := kernel.New()
	s := New(k, "s1", "localhost", "/", Options{EgressLimit: 2})

	s.SendRawData([]byte(`1`))
	s.SendRawData([]byte(`2`))
	if !s.Connected() {
		t.Fatal("session disconnected before reaching the limit")
	}
	s.SendRawData([]byte(`3`))

	if s.State() != Closing {
		t.Errorf("state = %s, want closing", s.State())
	}
	if got := s.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}
}

func TestClosingSessionIgnoresInbound(t *testing.T) {
	k := kernel.New()
	s := New(k, "s1", "localhost", "/", Options{})
	s.Disconnect()

	s.HandleRawData([]byte(`{nope`))

	if got := s.Pending(); got != 0 {
		t.Errorf("closing session queued %d frames", got)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	k := kernel.New()
	s := New(k, "s1", "localhost", "/", Options{})
	s.SendRawData([]byte(`1`))

	s.Cleanup()
	s.Cleanup()

	select {
	case <-s.Done():
	default:
		t.Error("Done not closed after Cleanup")
	}
	if s.State() != Closed {
		t.Errorf("state = %s, want closed", s.State())
	}
	if s.Pending() != 0 {
		t.Error("Cleanup kept egress")
	}
	s.SendRawData([]byte(`2`))
	if s.Pending() != 0 {
		t.Error("closed session accepted egress")
	}
}

func TestReadySignalled(t *testing.T) {
	k := kernel.New()
	s := New(k, "s1", "localhost", "/", Options{})
	s.SendRawData([]byte(`1`))
	s.SendRawData([]byte(`2`))

	select {
	case <-s.Ready():
	default:
		t.Fatal("Ready not signalled after SendRawData")
	}
	frame, ok := s.PopEgress()
	if !ok || string(frame) != "1" {
		t.Errorf("PopEgress() = %q, %v; want oldest frame first", frame, ok)
	}
}

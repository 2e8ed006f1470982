package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screening-room-server/domain"
	"screening-room-server/events"
)

type mockConn struct {
	id       string
	addr     string
	received [][]byte
	mu       sync.Mutex
	sendErr  error
}

func newConn(id string) *mockConn {
	return &mockConn{id: id, addr: id + ":1234"}
}

func (m *mockConn) ID() string         { return m.id }
func (m *mockConn) RemoteAddr() string { return m.addr }
func (m *mockConn) Close() error       { return nil }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

type received struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (m *mockConn) envelopes(t *testing.T) []received {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]received, 0, len(m.received))
	for _, data := range m.received {
		var env received
		require.NoError(t, json.Unmarshal(data, &env))
		out = append(out, env)
	}
	return out
}

func (m *mockConn) events(t *testing.T) []string {
	t.Helper()
	var names []string
	for _, env := range m.envelopes(t) {
		names = append(names, env.Event)
	}
	return names
}

func (m *mockConn) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = nil
}

type fixedCodes struct {
	codes []string
	next  int
}

func (f *fixedCodes) Generate() string {
	code := f.codes[f.next%len(f.codes)]
	f.next++
	return code
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(ev events.Event) { r.events = append(r.events, ev) }

func (r *recordingEmitter) types() []string {
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func chat(t *testing.T, env received) domain.ChatMessage {
	t.Helper()
	require.Equal(t, domain.EventRoomMessage, env.Event)
	var msg domain.ChatMessage
	require.NoError(t, json.Unmarshal(env.Payload, &msg))
	return msg
}

// roomOf builds a room with the given members; the first one hosts.
func roomOf(t *testing.T, h *Hub, code string, conns ...*mockConn) {
	t.Helper()
	for i, c := range conns {
		h.JoinRoom(c, code, "user-"+c.id)
		if i == 0 {
			s, ok := h.Session(c.id)
			require.True(t, ok)
			require.True(t, s.IsHost)
		}
	}
	for _, c := range conns {
		c.reset()
	}
}

func TestHub_CreateRoom(t *testing.T) {
	h := New(WithCodeGenerator(&fixedCodes{codes: []string{"1111", "2222", "3333"}}))

	conns := []*mockConn{newConn("a"), newConn("b"), newConn("c")}
	for _, c := range conns {
		h.CreateRoom(c, "name-"+c.id)
	}

	rooms, sessions := h.Stats()
	assert.Equal(t, 3, rooms)
	assert.Equal(t, 3, sessions)

	for i, c := range conns {
		envs := c.envelopes(t)
		require.Len(t, envs, 1)
		assert.Equal(t, domain.EventRoomCreated, envs[0].Event)

		var code string
		require.NoError(t, json.Unmarshal(envs[0].Payload, &code))
		assert.Equal(t, []string{"1111", "2222", "3333"}[i], code)

		r, ok := h.Room(code)
		require.True(t, ok)
		assert.Equal(t, 1, r.Size())
		assert.Equal(t, c.addr, r.HostAddr)

		s, ok := h.Session(c.id)
		require.True(t, ok)
		assert.True(t, s.IsHost)
		assert.Equal(t, code, s.RoomCode)
		assert.Equal(t, "name-"+c.id, s.UserName)
	}
}

func TestHub_CreateRoom_RegeneratesOnCollision(t *testing.T) {
	h := New(WithCodeGenerator(&fixedCodes{codes: []string{"4821", "4821", "0007"}}))
	a, b := newConn("a"), newConn("b")

	h.CreateRoom(a, "A")
	h.CreateRoom(b, "B")

	ra, ok := h.Room("4821")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, ra.Members)

	s, ok := h.Session("b")
	require.True(t, ok)
	assert.Equal(t, "0007", s.RoomCode)
}

func TestHub_CreateRoom_CodeSpaceExhausted(t *testing.T) {
	h := New(WithCodeGenerator(&fixedCodes{codes: []string{"4821"}}))
	a, b := newConn("a"), newConn("b")

	h.CreateRoom(a, "A")
	h.CreateRoom(b, "B")

	_, ok := h.Session("b")
	assert.False(t, ok)
	assert.Empty(t, b.envelopes(t))

	r, ok := h.Room("4821")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, r.Members)
}

func TestHub_JoinRoom_MissingRoomActsAsCreate(t *testing.T) {
	emitter := &recordingEmitter{}
	h := New(WithEmitter(emitter))
	a := newConn("a")

	h.JoinRoom(a, "4821", "A")

	envs := a.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, domain.EventRoomCreated, envs[0].Event)
	assert.JSONEq(t, `"4821"`, string(envs[0].Payload))

	s, ok := h.Session("a")
	require.True(t, ok)
	assert.True(t, s.IsHost)

	r, ok := h.Room("4821")
	require.True(t, ok)
	assert.Equal(t, 1, r.Size())
	assert.Equal(t, []string{events.TypeRoomCreated}, emitter.types())
}

func TestHub_JoinRoom_Existing(t *testing.T) {
	h := New()
	a, b, c := newConn("a"), newConn("b"), newConn("c")
	roomOf(t, h, "4821", a, b)

	h.JoinRoom(c, "4821", "C")

	r, ok := h.Room("4821")
	require.True(t, ok)
	assert.Equal(t, 3, r.Size())
	assert.Equal(t, []string{"a", "b", "c"}, r.Members)

	assert.Equal(t, []string{domain.EventRoomJoined}, c.events(t))
	for _, other := range []*mockConn{a, b} {
		envs := other.envelopes(t)
		require.Len(t, envs, 1)
		msg := chat(t, envs[0])
		assert.Equal(t, domain.MessageSystem, msg.Type)
		assert.Equal(t, domain.SystemUserName, msg.UserName)
		assert.Equal(t, "C 来了", msg.Text)
	}

	s, ok := h.Session("c")
	require.True(t, ok)
	assert.False(t, s.IsHost)
}

func TestHub_JoinRoom_SameRoomTwiceIsIgnored(t *testing.T) {
	h := New()
	a, b := newConn("a"), newConn("b")
	roomOf(t, h, "4821", a, b)

	h.JoinRoom(b, "4821", "B")

	r, _ := h.Room("4821")
	assert.Equal(t, 2, r.Size())
	assert.Empty(t, a.events(t))
	assert.Empty(t, b.events(t))
}

func TestHub_JoinRoom_SwitchingRoomsLeavesOld(t *testing.T) {
	h := New()
	a, b, c := newConn("a"), newConn("b"), newConn("c")
	roomOf(t, h, "1000", a, b)
	roomOf(t, h, "2000", c)

	h.JoinRoom(a, "2000", "A")

	old, ok := h.Room("1000")
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, old.Members)

	sb, _ := h.Session("b")
	assert.True(t, sb.IsHost, "b inherits host of the room a left")
	assert.Equal(t, []string{domain.EventRoomMessage, domain.EventHostChanged}, b.events(t))

	sa, _ := h.Session("a")
	assert.Equal(t, "2000", sa.RoomCode)
	assert.False(t, sa.IsHost)

	joined, _ := h.Room("2000")
	assert.Equal(t, []string{"c", "a"}, joined.Members)
}

func TestHub_CreateRoom_WhileInRoomLeavesOld(t *testing.T) {
	h := New(WithCodeGenerator(&fixedCodes{codes: []string{"9999"}}))
	a := newConn("a")
	h.JoinRoom(a, "1000", "A")

	h.CreateRoom(a, "A")

	_, ok := h.Room("1000")
	assert.False(t, ok)
	s, _ := h.Session("a")
	assert.Equal(t, "9999", s.RoomCode)
	assert.True(t, s.IsHost)
	rooms, sessions := h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, sessions)
}

func TestHub_RoomMessage(t *testing.T) {
	tests := []struct {
		name     string
		isHost   bool
		wantType string
	}{
		{name: "host message", isHost: true, wantType: domain.MessageHost},
		{name: "user message", isHost: false, wantType: domain.MessageUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			a, b, c := newConn("a"), newConn("b"), newConn("c")
			roomOf(t, h, "4821", a, b, c)

			h.RoomMessage(b, "B", tt.isHost, "hello")

			for _, member := range []*mockConn{a, b, c} {
				envs := member.envelopes(t)
				require.Len(t, envs, 1, "member %s", member.id)
				msg := chat(t, envs[0])
				assert.Equal(t, tt.wantType, msg.Type)
				assert.Equal(t, "B", msg.UserName)
				assert.Equal(t, "hello", msg.Text)
			}
		})
	}
}

func TestHub_NoSessionIsIgnored(t *testing.T) {
	h := New()
	a, stranger := newConn("a"), newConn("x")
	roomOf(t, h, "4821", a)

	h.RoomMessage(stranger, "X", false, "hi")
	h.Relay(stranger, domain.Envelope{Event: domain.EventPlayed})
	h.SyncVideo(stranger)
	h.SendVideoInfo(stranger, "a", json.RawMessage(`{}`))
	h.Disconnect(stranger)

	assert.Empty(t, a.events(t))
	assert.Empty(t, stranger.events(t))
	rooms, sessions := h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, sessions)
}

func TestHub_Relay_ExcludesSender(t *testing.T) {
	h := New()
	a, b, c := newConn("a"), newConn("b"), newConn("c")
	other := newConn("z")
	roomOf(t, h, "4821", a, b, c)
	roomOf(t, h, "5555", other)

	h.Relay(a, domain.Envelope{Event: domain.EventSeeked, Payload: 42.0})

	assert.Empty(t, a.envelopes(t))
	assert.Empty(t, other.envelopes(t))
	for _, member := range []*mockConn{b, c} {
		envs := member.envelopes(t)
		require.Len(t, envs, 1)
		assert.Equal(t, domain.EventSeeked, envs[0].Event)
		assert.JSONEq(t, `42`, string(envs[0].Payload))
	}
}

func TestHub_Broadcast_SendFailureDoesNotAbort(t *testing.T) {
	h := New()
	a, b, c := newConn("a"), newConn("b"), newConn("c")
	roomOf(t, h, "4821", a, b, c)
	b.sendErr = errors.New("broken pipe")

	h.Relay(a, domain.Envelope{Event: domain.EventPlayed})

	assert.Equal(t, []string{domain.EventPlayed}, c.events(t))
}

func TestHub_SyncVideo(t *testing.T) {
	h := New()
	a, b, c := newConn("a"), newConn("b"), newConn("c")
	roomOf(t, h, "4821", a, b, c)

	h.SyncVideo(c)

	envs := a.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, domain.EventVideoSyncRequest, envs[0].Event)
	assert.JSONEq(t, `"c"`, string(envs[0].Payload))
	assert.Empty(t, b.envelopes(t))
	assert.Empty(t, c.envelopes(t))

	h.SendVideoInfo(a, "c", json.RawMessage(`{"time":12.5,"ep":3}`))

	envs = c.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, domain.EventVideoInfo, envs[0].Event)
	assert.JSONEq(t, `{"time":12.5,"ep":3}`, string(envs[0].Payload))
	assert.Empty(t, b.envelopes(t))
}

func TestHub_SendVideoInfo_UnknownTarget(t *testing.T) {
	h := New()
	a, b := newConn("a"), newConn("b")
	roomOf(t, h, "4821", a, b)

	h.SendVideoInfo(a, "gone", json.RawMessage(`{}`))

	assert.Empty(t, a.envelopes(t))
	assert.Empty(t, b.envelopes(t))
}

func TestHub_Disconnect_LastMemberClosesRoom(t *testing.T) {
	emitter := &recordingEmitter{}
	h := New(WithEmitter(emitter))
	a := newConn("a")
	h.JoinRoom(a, "4821", "A")

	h.Disconnect(a)

	_, ok := h.Room("4821")
	assert.False(t, ok)
	_, ok = h.Session("a")
	assert.False(t, ok)
	assert.Equal(t, []string{events.TypeRoomCreated, events.TypeRoomClosed}, emitter.types())

	h.Disconnect(a)
	rooms, sessions := h.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, sessions)
}

func TestHub_Disconnect_NonHost(t *testing.T) {
	h := New()
	a, b, c := newConn("a"), newConn("b"), newConn("c")
	roomOf(t, h, "4821", a, b, c)

	h.Disconnect(b)

	r, ok := h.Room("4821")
	require.True(t, ok)
	assert.Equal(t, 2, r.Size())
	assert.Equal(t, a.addr, r.HostAddr)

	sa, _ := h.Session("a")
	assert.True(t, sa.IsHost)

	for _, member := range []*mockConn{a, c} {
		envs := member.envelopes(t)
		require.Len(t, envs, 1)
		assert.Equal(t, "user-b 走了", chat(t, envs[0]).Text)
	}
	assert.Empty(t, b.envelopes(t))
}

func TestHub_Disconnect_HostMigrates(t *testing.T) {
	emitter := &recordingEmitter{}
	h := New(WithEmitter(emitter))
	a, b, c := newConn("a"), newConn("b"), newConn("c")
	roomOf(t, h, "4821", a, b, c)
	emitter.events = nil

	h.Disconnect(a)

	r, ok := h.Room("4821")
	require.True(t, ok)
	assert.Equal(t, 2, r.Size())
	assert.Equal(t, b.addr, r.HostAddr)

	sb, _ := h.Session("b")
	sc, _ := h.Session("c")
	assert.True(t, sb.IsHost)
	assert.False(t, sc.IsHost)

	assert.Equal(t, []string{domain.EventRoomMessage, domain.EventHostChanged}, b.events(t))
	assert.Equal(t, []string{domain.EventRoomMessage}, c.events(t))
	assert.Equal(t, "user-a 走了", chat(t, c.envelopes(t)[0]).Text)

	assert.Equal(t, []string{events.TypeMemberLeft, events.TypeHostChanged}, emitter.types())
}

func TestHub_HostMigrationChain(t *testing.T) {
	h := New()
	a, b, c := newConn("a"), newConn("b"), newConn("c")
	roomOf(t, h, "4821", a, b, c)

	h.Disconnect(a)
	h.Disconnect(b)

	sc, ok := h.Session("c")
	require.True(t, ok)
	assert.True(t, sc.IsHost)

	h.Disconnect(c)
	assert.Empty(t, h.Rooms())
}

func TestHub_Rooms(t *testing.T) {
	h := New()
	roomOf(t, h, "3000", newConn("a"), newConn("b"))
	roomOf(t, h, "1000", newConn("c"))

	assert.Equal(t, []domain.RoomInfo{
		{Code: "1000", Size: 1},
		{Code: "3000", Size: 2},
	}, h.Rooms())
}

func TestHub_ConcurrentJoinLeave(t *testing.T) {
	h := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newConn(string(rune('A'+i%26)) + string(rune('a'+i/26)))
			h.JoinRoom(c, "4821", c.id)
			h.Relay(c, domain.Envelope{Event: domain.EventPlayed})
			h.Disconnect(c)
		}(i)
	}
	wg.Wait()

	rooms, sessions := h.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, sessions)
}

func TestDigitCodeGenerator(t *testing.T) {
	for _, length := range []int{0, 4, 6} {
		code := DigitCodeGenerator{Length: length}.Generate()
		want := length
		if want == 0 {
			want = DefaultCodeLength
		}
		assert.Len(t, code, want)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q", code)
		}
	}
}

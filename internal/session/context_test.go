package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mutamba/erp-backend/internal/access"
)

type fakeProvider struct {
	mu           sync.Mutex
	fn           func(Notification)
	unsubscribed bool
	signOuts     int
	initial      *Notification
}

func (p *fakeProvider) OnAuthStateChanged(fn func(Notification)) func() {
	p.mu.Lock()
	p.fn = fn
	initial := p.initial
	p.mu.Unlock()
	if initial != nil {
		fn(*initial)
	}
	return func() {
		p.mu.Lock()
		p.unsubscribed = true
		p.fn = nil
		p.mu.Unlock()
	}
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	return nil
}

func (p *fakeProvider) emit(n Notification) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// gatedResolver blocks each uid until release is called for it.
type gatedResolver struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	roles map[string]access.Role
	errs  map[string]error
}

func newGatedResolver() *gatedResolver {
	return &gatedResolver{
		gates: make(map[string]chan struct{}),
		roles: make(map[string]access.Role),
		errs:  make(map[string]error),
	}
}

func (r *gatedResolver) gate(uid string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gates[uid]
	if !ok {
		g = make(chan struct{})
		r.gates[uid] = g
	}
	return g
}

func (r *gatedResolver) hold(uid string) { r.gate(uid) }

func (r *gatedResolver) release(uid string) { close(r.gate(uid)) }

func (r *gatedResolver) Resolve(ctx context.Context, id *access.Identity) (access.Role, error) {
	r.mu.Lock()
	g, gated := r.gates[id.UID]
	role, hasRole := r.roles[id.UID]
	err := r.errs[id.UID]
	r.mu.Unlock()

	if gated {
		select {
		case <-g:
		case <-ctx.Done():
			return access.RoleNone, ctx.Err()
		}
	}
	if err != nil {
		return access.RoleNone, err
	}
	if !hasRole {
		role = access.RoleUser
	}
	return role, nil
}

func ident(uid string) *access.Identity {
	return &access.Identity{UID: uid, Email: uid + "@mutamba.com"}
}

func eventually(t *testing.T, c *Context, pred func(State) bool) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := c.WaitFor(ctx, pred)
	require.NoError(t, err, "last state: %+v", s)
	return s
}

func TestContext_InitialState(t *testing.T) {
	t.Parallel()

	c := New(&fakeProvider{}, newGatedResolver())
	defer c.Close()

	s := c.State()
	require.True(t, s.Loading)
	require.Nil(t, s.Identity)
	require.Equal(t, access.RoleNone, s.Role)
	require.Nil(t, c.Screens())
	require.False(t, c.Can(access.ScreenDashboard, access.ActionView))
}

func TestContext_InitialSignedOut(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{initial: &Notification{}}
	c := New(p, newGatedResolver())
	defer c.Close()
	c.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := c.WaitReady(ctx)
	require.NoError(t, err)
	require.False(t, s.Loading)
	require.Nil(t, s.Identity)
	require.Equal(t, access.RoleNone, s.Role)
}

func TestContext_SignInResolvesRole(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	r := newGatedResolver()
	r.roles["admin"] = access.RoleAdmin
	c := New(p, r)
	defer c.Close()
	c.Start()

	p.emit(Notification{Identity: ident("admin")})

	s := eventually(t, c, func(s State) bool { return !s.Loading })
	require.Equal(t, "admin", s.Identity.UID)
	require.Equal(t, access.RoleAdmin, s.Role)
	require.NoError(t, s.Err)
	require.True(t, c.Can(access.ScreenUsuarios, access.ActionCreate))
	require.Len(t, c.Screens(), len(access.Screens))
}

func TestContext_LoadingStaysTrueUntilResolved(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	r := newGatedResolver()
	r.hold("ana")
	c := New(p, r)
	defer c.Close()
	c.Start()

	p.emit(Notification{Identity: ident("ana")})
	time.Sleep(20 * time.Millisecond)
	require.True(t, c.State().Loading)
	require.Nil(t, c.State().Identity)

	r.release("ana")
	s := eventually(t, c, func(s State) bool { return !s.Loading })
	require.Equal(t, "ana", s.Identity.UID)
	require.Equal(t, access.RoleUser, s.Role)
}

func TestContext_SignOutWhileResolutionPending(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	r := newGatedResolver()
	r.roles["admin"] = access.RoleAdmin
	r.hold("admin")
	c := New(p, r)
	defer c.Close()
	c.Start()

	p.emit(Notification{Identity: ident("admin")})
	p.emit(Notification{})

	eventually(t, c, func(s State) bool { return !s.Loading && s.Identity == nil })

	r.release("admin")
	time.Sleep(50 * time.Millisecond)

	s := c.State()
	require.False(t, s.Loading)
	require.Nil(t, s.Identity)
	require.Equal(t, access.RoleNone, s.Role)
}

func TestContext_StaleResolutionDoesNotOverwriteNewer(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	r := newGatedResolver()
	r.roles["first"] = access.RoleAdmin
	r.roles["second"] = access.RoleUser
	r.hold("first")
	c := New(p, r)
	defer c.Close()
	c.Start()

	var mu sync.Mutex
	var published []State
	c.Subscribe(func(s State) {
		mu.Lock()
		published = append(published, s)
		mu.Unlock()
	})

	p.emit(Notification{Identity: ident("first")})
	p.emit(Notification{Identity: ident("second")})
	eventually(t, c, func(s State) bool { return s.Identity != nil && s.Identity.UID == "second" })

	r.release("first")
	time.Sleep(50 * time.Millisecond)

	s := c.State()
	require.Equal(t, "second", s.Identity.UID)
	require.Equal(t, access.RoleUser, s.Role)

	mu.Lock()
	defer mu.Unlock()
	for _, st := range published {
		if st.Identity != nil {
			require.NotEqual(t, "first", st.Identity.UID)
		}
	}
}

func TestContext_OutOfOrderSequencesKeepGreatest(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	r := newGatedResolver()
	c := New(p, r)
	defer c.Close()
	c.Start()

	p.emit(Notification{Seq: 3, Identity: ident("third")})
	p.emit(Notification{Seq: 1, Identity: ident("first")})
	p.emit(Notification{Seq: 2})

	s := eventually(t, c, func(s State) bool { return !s.Loading })
	time.Sleep(50 * time.Millisecond)
	s = c.State()
	require.NotNil(t, s.Identity)
	require.Equal(t, "third", s.Identity.UID)

	p.emit(Notification{Seq: 4})
	s = eventually(t, c, func(s State) bool { return s.Identity == nil })
	require.Equal(t, access.RoleNone, s.Role)
}

func TestContext_ResolutionFailureDegradesToUser(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	r := newGatedResolver()
	cause := errors.New("directory unavailable")
	r.errs["ana"] = cause
	c := New(p, r)
	defer c.Close()
	c.Start()

	p.emit(Notification{Identity: ident("ana")})

	s := eventually(t, c, func(s State) bool { return !s.Loading })
	require.Equal(t, access.RoleUser, s.Role)
	require.ErrorIs(t, s.Err, cause)
	require.False(t, c.Can(access.ScreenUsuarios, access.ActionView))
}

func TestContext_SignOutDelegatesWithoutClearing(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	c := New(p, newGatedResolver())
	defer c.Close()
	c.Start()

	p.emit(Notification{Identity: ident("ana")})
	eventually(t, c, func(s State) bool { return s.Identity != nil })

	require.NoError(t, c.SignOut(context.Background()))
	require.Equal(t, 1, p.signOuts)
	require.NotNil(t, c.State().Identity)

	p.emit(Notification{})
	eventually(t, c, func(s State) bool { return s.Identity == nil })
}

func TestContext_CloseStopsPublishing(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	r := newGatedResolver()
	r.hold("ana")
	c := New(p, r)
	c.Start()

	p.emit(Notification{Identity: ident("ana")})
	c.Close()
	r.release("ana")
	time.Sleep(50 * time.Millisecond)

	p.mu.Lock()
	require.True(t, p.unsubscribed)
	p.mu.Unlock()

	s := c.State()
	require.True(t, s.Loading)
	require.Nil(t, s.Identity)

	c.handle(Notification{Identity: ident("late")})
	require.Nil(t, c.State().Identity)
}

func TestContext_ListenersSeeStatesInOrder(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	c := New(p, newGatedResolver())
	defer c.Close()
	c.Start()

	got := make(chan State, 8)
	c.Subscribe(func(s State) { got <- s })

	p.emit(Notification{Identity: ident("ana")})
	first := <-got
	require.Equal(t, "ana", first.Identity.UID)

	p.emit(Notification{})
	second := <-got
	require.Nil(t, second.Identity)
}

func TestContext_CloseStopsPendingDeliveries(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	c := New(p, newGatedResolver())
	c.Start()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	c.Subscribe(func(State) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	})

	p.emit(Notification{Seq: 1})
	<-entered
	p.emit(Notification{Seq: 2})
	p.emit(Notification{Seq: 3})

	c.Close()
	close(release)
	time.Sleep(50 * time.Millisecond)

	require.EqualValues(t, 1, calls.Load())
}

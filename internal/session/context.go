// Package session keeps the caller's access state ({identity, role, loading})
// in step with the identity provider's auth-state notifications.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mutamba/erp-backend/internal/access"
)

// Notification is one auth-state change. Seq is the provider's logical
// timestamp; zero means unsequenced and is ordered by arrival.
type Notification struct {
	Seq      uint64
	Identity *access.Identity
}

type IdentityProvider interface {
	// OnAuthStateChanged registers fn and delivers the current state first.
	OnAuthStateChanged(fn func(Notification)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

type RoleResolver interface {
	Resolve(ctx context.Context, id *access.Identity) (access.Role, error)
}

// State is a published snapshot. Err is set when the role could not be read
// from the directory; Role is then degraded to RoleUser.
type State struct {
	Identity *access.Identity
	Role     access.Role
	Loading  bool
	Err      error
}

func (s State) SignedIn() bool { return s.Identity != nil }

type Option func(*Context)

func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

func WithPolicy(p *access.Policy) Option {
	return func(c *Context) { c.policy = p }
}

func WithResolveTimeout(d time.Duration) Option {
	return func(c *Context) { c.resolveTimeout = d }
}

// Context is the single writer of the access state. Every accepted
// notification bumps the generation; a resolution only publishes if its
// generation is still current, so a slow answer for an older notification
// can never overwrite a newer one.
type Context struct {
	provider       IdentityProvider
	resolver       RoleResolver
	policy         *access.Policy
	logger         *slog.Logger
	resolveTimeout time.Duration

	mu          sync.Mutex
	state       State
	generation  uint64
	lastSeq     uint64
	started     bool
	closed      bool
	unsubscribe func()
	listeners   map[int]func(State)
	nextID      int
	queue       []State

	wake      chan struct{}
	done      chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
}

func New(provider IdentityProvider, resolver RoleResolver, opts ...Option) *Context {
	c := &Context{
		provider:       provider,
		resolver:       resolver,
		logger:         slog.Default(),
		resolveTimeout: 10 * time.Second,
		state:          State{Loading: true},
		listeners:      make(map[int]func(State)),
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
		ready:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy == nil {
		c.policy = access.MustNewPolicy()
	}
	go c.dispatch()
	return c
}

// Start subscribes to the provider. Calling it more than once is a no-op.
func (c *Context) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	unsubscribe := c.provider.OnAuthStateChanged(c.handle)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

// Close unsubscribes from the provider. Nothing is published afterwards and
// no listener call starts once Close has returned; a call already running is
// not interrupted.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.queue = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	close(c.done)
}

func (c *Context) handle(n Notification) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if n.Seq != 0 {
		if n.Seq <= c.lastSeq {
			c.mu.Unlock()
			c.logger.Debug("stale auth notification dropped", "seq", n.Seq, "last_seq", c.lastSeq)
			return
		}
		c.lastSeq = n.Seq
	}
	c.generation++
	gen := c.generation

	if n.Identity == nil {
		c.publishLocked(State{})
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	id := *n.Identity
	go c.resolve(gen, &id)
}

func (c *Context) resolve(gen uint64, id *access.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), c.resolveTimeout)
	defer cancel()

	role, err := c.resolver.Resolve(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation {
		c.logger.Debug("superseded role resolution discarded", "uid", id.UID, "generation", gen)
		return
	}

	next := State{Identity: id, Role: role}
	if err != nil {
		c.logger.Warn("role resolution failed, falling back to user", "uid", id.UID, "error", err)
		next.Role = access.RoleUser
		next.Err = err
	}
	c.publishLocked(next)
}

func (c *Context) publishLocked(s State) {
	c.state = s
	if !s.Loading {
		c.readyOnce.Do(func() { close(c.ready) })
	}
	c.queue = append(c.queue, s)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers published states to listeners in publish order.
func (c *Context) dispatch() {
	for {
		select {
		case <-c.wake:
		case <-c.done:
			return
		}

		for {
			c.mu.Lock()
			if len(c.queue) == 0 || c.closed {
				c.mu.Unlock()
				break
			}
			batch := c.queue
			c.queue = nil
			listeners := make([]func(State), 0, len(c.listeners))
			for _, l := range c.listeners {
				listeners = append(listeners, l)
			}
			c.mu.Unlock()

			for _, s := range batch {
				for _, l := range listeners {
					if c.isClosed() {
						return
					}
					l(s)
				}
			}
		}
	}
}

func (c *Context) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// State returns the current snapshot.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every state published from now on.
func (c *Context) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// WaitReady blocks until the first resolution completes.
func (c *Context) WaitReady(ctx context.Context) (State, error) {
	select {
	case <-c.ready:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// WaitFor blocks until a published state satisfies pred.
func (c *Context) WaitFor(ctx context.Context, pred func(State) bool) (State, error) {
	matched := make(chan State, 1)
	unsubscribe := c.Subscribe(func(s State) {
		if pred(s) {
			select {
			case matched <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	if s := c.State(); pred(s) {
		return s, nil
	}

	select {
	case s := <-matched:
		return s, nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// SignOut asks the provider to sign out. The state is cleared when the
// provider's resulting notification arrives, not here.
func (c *Context) SignOut(ctx context.Context) error {
	return c.provider.SignOut(ctx)
}

// Can is advisory gating for the front end; the server re-validates every
// privileged operation.
func (c *Context) Can(resource, action string) bool {
	s := c.State()
	if s.Loading {
		return false
	}
	return c.policy.Can(s.Role, resource, action)
}

func (c *Context) Screens() []access.Screen {
	s := c.State()
	if s.Loading {
		return nil
	}
	return c.policy.VisibleScreens(s.Role)
}

package client

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/dto"
	"github.com/mutamba/erp-backend/internal/session"
)

// subscriber delivers notifications in emit order from its own goroutine,
// so a slow listener never blocks the client.
type subscriber struct {
	fn    func(session.Notification)
	mu    sync.Mutex
	queue []session.Notification
	wake  chan struct{}
	done  chan struct{}
}

func newSubscriber(fn func(session.Notification)) *subscriber {
	s := &subscriber{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) push(n session.Notification) {
	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		for {
			s.mu.Lock()
			batch := s.queue
			s.queue = nil
			s.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, n := range batch {
				select {
				case <-s.done:
					return
				default:
				}
				s.fn(n)
			}
		}
	}
}

// OnAuthStateChanged implements session.IdentityProvider. The current state
// is delivered first.
func (c *Client) OnAuthStateChanged(fn func(session.Notification)) func() {
	s := newSubscriber(fn)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = s
	s.push(session.Notification{Seq: c.seq, Identity: c.identityLocked()})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(s.done)
		})
	}
}

func (c *Client) identityLocked() *access.Identity {
	if c.session == nil {
		return nil
	}
	id := c.session.User
	return &id
}

// setSession swaps the session and notifies subscribers when the signed-in
// identity changed.
func (c *Client) setSession(next *dto.AuthResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.identityLocked()
	c.session = next
	cur := c.identityLocked()
	if sameIdentity(prev, cur) {
		return
	}

	c.seq++
	n := session.Notification{Seq: c.seq, Identity: cur}
	for _, s := range c.subs {
		s.push(n)
	}
}

func sameIdentity(a, b *access.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UID == b.UID
}

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*access.Identity, error) {
	var resp dto.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", dto.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	c.setSession(&resp)
	return &resp.User, nil
}

// Resume restores a session from a persisted refresh token.
func (c *Client) Resume(ctx context.Context, refreshToken string) (*access.Identity, error) {
	var resp dto.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/refresh", dto.RefreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	c.setSession(&resp)
	return &resp.User, nil
}

func (c *Client) refresh(ctx context.Context) error {
	rt := c.RefreshToken()
	if rt == "" {
		return ErrNotSignedIn
	}
	var resp dto.AuthResponse
	err := c.doJSONNoRetry(ctx, http.MethodPost, "/api/auth/refresh", dto.RefreshRequest{RefreshToken: rt}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			c.setSession(nil)
			return ErrNotSignedIn
		}
		return err
	}
	c.setSession(&resp)
	return nil
}

func (c *Client) doJSONNoRetry(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Del("Authorization")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	return decodeInto(resp, out)
}

// SignOut implements session.IdentityProvider: it revokes the refresh token
// and then notifies subscribers that nobody is signed in.
func (c *Client) SignOut(ctx context.Context) error {
	rt := c.RefreshToken()
	if rt == "" {
		return nil
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", dto.LogoutRequest{RefreshToken: rt}, nil)
	c.setSession(nil)
	return err
}

// Me returns the identity the server sees for the current token.
func (c *Client) Me(ctx context.Context) (*access.Identity, error) {
	if c.accessToken() == "" {
		return nil, ErrNotSignedIn
	}
	var id access.Identity
	if err := c.doJSON(ctx, http.MethodGet, "/api/me", nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

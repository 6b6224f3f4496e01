// Package authctx extracts the authenticated caller bound to a request.
package authctx

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mutamba/erp-backend/internal/access"
)

// LocalsKey is where the JWT middleware stores the verified token.
const LocalsKey = "user"

var (
	ErrNoToken       = errors.New("no verified token in context")
	ErrInvalidClaims = errors.New("invalid claims")
	ErrMissingSub    = errors.New("missing sub claim")
)

// Caller is the identity a verified session token was issued to. It is only
// ever built from the token, never from a request payload.
type Caller struct {
	UID   string
	Email string
	Name  string
}

func (c *Caller) Identity() *access.Identity {
	if c == nil {
		return nil
	}
	return &access.Identity{UID: c.UID, Email: c.Email, DisplayName: c.Name}
}

// FromFiber returns the caller of the current request.
func FromFiber(c *fiber.Ctx) (*Caller, error) {
	token, ok := c.Locals(LocalsKey).(*jwt.Token)
	if !ok || token == nil {
		return nil, ErrNoToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrMissingSub
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &Caller{UID: sub, Email: email, Name: name}, nil
}

// Optional returns the caller or nil when the request is anonymous.
func Optional(c *fiber.Ctx) *Caller {
	caller, err := FromFiber(c)
	if err != nil {
		return nil
	}
	return caller
}

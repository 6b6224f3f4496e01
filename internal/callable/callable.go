// Package callable implements the remotely callable function protocol:
// POST /functions/:name with {"data": ...}, answered with {"result": ...} or
// {"error": {"status", "code", "message"}}. The caller is bound from the
// verified bearer token, never from the payload.
package callable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"

	"github.com/mutamba/erp-backend/internal/authctx"
	"github.com/mutamba/erp-backend/internal/metrics"
)

const (
	internalMessage        = "Ocorreu um erro interno."
	unauthenticatedMessage = "É necessário estar autenticado."
)

type Request struct {
	Data json.RawMessage `json:"data"`
}

type ErrorBody struct {
	Status  string `json:"status"`
	Code    Kind   `json:"code"`
	Message string `json:"message"`
}

type Response struct {
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// Func is a callable function. caller is nil for anonymous requests.
type Func func(ctx context.Context, caller *authctx.Caller, data json.RawMessage) (any, error)

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

func (r *Registry) lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

// Handler serves POST /functions/:name.
func (r *Registry) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		fn, ok := r.lookup(name)
		if !ok {
			return WriteError(c, NewError(NotFound, fmt.Sprintf("Função %q não encontrada.", name)))
		}

		caller := authctx.Optional(c)

		var req Request
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				// Anonymous callers learn nothing about the payload.
				kind := InvalidArgument
				message := "Corpo da requisição inválido."
				if caller == nil {
					kind, message = Unauthenticated, unauthenticatedMessage
				}
				metrics.CallableInvocations.WithLabelValues(name, string(kind)).Inc()
				return WriteError(c, NewError(kind, message))
			}
		}

		result, err := fn(c.UserContext(), caller, req.Data)
		if err != nil {
			metrics.CallableInvocations.WithLabelValues(name, string(KindOf(err))).Inc()
			if KindOf(err) == Internal {
				slog.Error("callable function failed",
					"function", name,
					"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
					"error", err,
				)
				captureException(c, err)
			}
			return WriteError(c, err)
		}

		metrics.CallableInvocations.WithLabelValues(name, "ok").Inc()
		return c.JSON(Response{Result: result})
	}
}

// WriteError renders err in the callable error envelope. Causes of internal
// errors are never sent to the client.
func WriteError(c *fiber.Ctx, err error) error {
	kind := KindOf(err)
	message := internalMessage

	var ce *Error
	if errors.As(err, &ce) && ce.Message != "" {
		message = ce.Message
	}

	return c.Status(kind.HTTPStatus()).JSON(Response{Error: &ErrorBody{
		Status:  kind.Status(),
		Code:    kind,
		Message: message,
	}})
}

// Decode unmarshals the request data into T.
func Decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, Wrap(InvalidArgument, "Dados da requisição inválidos.", err)
	}
	return v, nil
}

func captureException(c *fiber.Ctx, err error) {
	hub := sentryfiber.GetHubFromContext(c)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}

package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/issuegate/internal/dedupe"
	"github.com/mattjoyce/issuegate/internal/log"
)

// State is the terminal state of one delivery.
type State string

const (
	StateRejected     State = "rejected"
	StateAcknowledged State = "acknowledged"
	StateInvalid      State = "invalid"
	StateSkipped      State = "skipped"
	StateIgnored      State = "ignored"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Delivery is one inbound webhook request. Body holds the raw bytes exactly
// as received.
type Delivery struct {
	ID        string
	Event     string
	Signature string
	Body      []byte
}

// Outcome is the dispatcher's verdict for a delivery.
type Outcome struct {
	State  State
	Status int
	Err    error
}

// Handler performs the business side effects of one event type.
// Returning an error leaves the delivery unrecorded so the sender retries it.
type Handler interface {
	Handle(ctx context.Context, d Delivery) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, d Delivery) error

func (f HandlerFunc) Handle(ctx context.Context, d Delivery) error { return f(ctx, d) }

// Publisher receives dispatch outcomes. *events.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

// Dispatcher verifies, deduplicates and routes deliveries.
type Dispatcher struct {
	secret []byte
	store  dedupe.Store
	pub    Publisher
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher builds a dispatcher around a fixed secret and a dedupe store.
// pub may be nil.
func NewDispatcher(secret []byte, store dedupe.Store, pub Publisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = log.WithComponent("webhook")
	}
	return &Dispatcher{
		secret:   append([]byte(nil), secret...),
		store:    store,
		pub:      pub,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for eventType, replacing any previous handler.
func (d *Dispatcher) Handle(eventType string, h Handler) {
	d.mu.Lock()
	d.handlers[eventType] = h
	d.mu.Unlock()
}

func (d *Dispatcher) handler(eventType string) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[eventType]
}

// Dispatch runs one delivery to a terminal state.
func (d *Dispatcher) Dispatch(ctx context.Context, dl Delivery) Outcome {
	dl.ID = strings.TrimSpace(dl.ID)
	logger := log.WithDelivery(d.logger, dl.ID, dl.Event)

	out := d.dispatch(ctx, dl, logger)
	d.publish(dl, out)
	return out
}

func (d *Dispatcher) dispatch(ctx context.Context, dl Delivery, logger *slog.Logger) Outcome {
	if !Verify(dl.Body, dl.Signature, d.secret) {
		logger.Warn("webhook signature verification failed")
		return Outcome{State: StateRejected, Status: http.StatusUnauthorized}
	}

	if dl.Event == EventPing {
		logger.Info("webhook ping acknowledged")
		return Outcome{State: StateAcknowledged, Status: http.StatusOK}
	}

	if dl.ID == "" {
		logger.Warn("webhook delivery id missing")
		return Outcome{State: StateInvalid, Status: http.StatusBadRequest, Err: errors.New("missing delivery id")}
	}

	token, claimed, err := d.store.Claim(ctx, dl.ID)
	if err != nil {
		logger.Error("dedupe claim failed", "error", err)
		return Outcome{State: StateFailed, Status: http.StatusServiceUnavailable, Err: err}
	}
	if !claimed {
		logger.Info("duplicate webhook delivery skipped")
		return Outcome{State: StateSkipped, Status: http.StatusOK}
	}

	h := d.handler(dl.Event)
	if h == nil {
		d.release(ctx, dl.ID, token, logger)
		logger.Info("webhook event type ignored")
		return Outcome{State: StateIgnored, Status: http.StatusOK}
	}

	if err := invoke(ctx, d.store.Lease(), h, dl); err != nil {
		d.release(ctx, dl.ID, token, logger)
		logger.Error("webhook handler failed", "error", err)
		return Outcome{State: StateFailed, Status: http.StatusInternalServerError, Err: err}
	}

	if err := d.store.MarkProcessed(ctx, dl.ID, token); err != nil {
		d.release(ctx, dl.ID, token, logger)
		if errors.Is(err, dedupe.ErrClaimLost) {
			logger.Warn("dedupe claim expired before the handler finished", "lease", d.store.Lease())
		} else {
			logger.Error("dedupe mark failed", "error", err)
		}
		return Outcome{State: StateFailed, Status: http.StatusServiceUnavailable, Err: err}
	}

	logger.Info("webhook delivery completed")
	return Outcome{State: StateCompleted, Status: http.StatusOK}
}

// invoke runs h within the claim lease and turns a panic into an error so
// the claim is still released.
func invoke(ctx context.Context, lease time.Duration, h Handler, dl Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, lease)
	defer cancel()
	return h.Handle(ctx, dl)
}

func (d *Dispatcher) release(ctx context.Context, id, token string, logger *slog.Logger) {
	// The request context may already be cancelled; release anyway.
	if err := d.store.Release(context.WithoutCancel(ctx), id, token); err != nil {
		logger.Warn("dedupe release failed", "error", err)
	}
}

func (d *Dispatcher) publish(dl Delivery, out Outcome) {
	if d.pub == nil {
		return
	}
	payload := map[string]any{
		"delivery_id": dl.ID,
		"event":       dl.Event,
		"status":      out.Status,
	}
	if out.Err != nil {
		payload["error"] = out.Err.Error()
	}
	d.pub.Publish("webhook."+string(out.State), payload)
}

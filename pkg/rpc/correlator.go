package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/jsonrpc2"

	"github.com/stacklok/mcp-funnel/pkg/logger"
)

// pendingRequest is spec.md §3 PendingRequest. Exactly one of
// resolve/reject fires per id, and the entry never outlives the timer or
// the transport.
type pendingRequest struct {
	id        string
	method    string
	createdAt time.Time
	timer     *time.Timer
	done      chan struct{}
	once      sync.Once
	result    json.RawMessage
	err       error
}

func (p *pendingRequest) resolve(result json.RawMessage) {
	p.once.Do(func() {
		p.result = result
		close(p.done)
	})
}

func (p *pendingRequest) reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// SendFunc writes an already-encoded frame to the wire.
type SendFunc func(raw []byte) error

// NotificationSink receives notifications (method present, no id) in
// arrival order (spec.md §5).
type NotificationSink func(method string, params json.RawMessage)

// UnknownIDSink is invoked when a response arrives for an id with no
// pending entry; per spec.md §4.5 this must be observable but must never
// destabilize the connection.
type UnknownIDSink func(id string)

// Correlator implements spec.md §4.5 MessageCorrelator. It is owned
// exclusively by one transport.
type Correlator struct {
	mu             sync.Mutex
	pending        map[string]*pendingRequest
	nextID         atomic.Int64
	requestTimeout time.Duration
	onNotify       NotificationSink
	onUnknownID    UnknownIDSink
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithRequestTimeout sets the per-request timeout (default 30s).
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Correlator) { c.requestTimeout = d }
}

// WithNotificationSink sets the single notification consumer.
func WithNotificationSink(sink NotificationSink) Option {
	return func(c *Correlator) { c.onNotify = sink }
}

// WithUnknownIDSink sets the observer for orphan responses.
func WithUnknownIDSink(sink UnknownIDSink) Option {
	return func(c *Correlator) { c.onUnknownID = sink }
}

// New creates a Correlator.
func New(opts ...Option) *Correlator {
	c := &Correlator{
		pending:        make(map[string]*pendingRequest),
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PendingRequestCount returns the number of in-flight requests.
func (c *Correlator) PendingRequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// SendRequest allocates the next id, serializes a request, registers a
// PendingRequest with a timeout timer, invokes send, and blocks until
// resolved, rejected, timed out, or ctx is cancelled.
func (c *Correlator) SendRequest(ctx context.Context, method string, params any, send SendFunc) (json.RawMessage, error) {
	idNum := c.nextID.Add(1)
	id := jsonrpc2.NewID(idNum)
	idJSON, err := json.Marshal(idNum)
	if err != nil {
		return nil, fmt.Errorf("marshal id: %w", err)
	}

	raw, err := EncodeRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	pr := &pendingRequest{id: string(idJSON), method: method, createdAt: time.Now(), done: make(chan struct{})}

	c.mu.Lock()
	c.pending[pr.id] = pr
	c.mu.Unlock()

	pr.timer = time.AfterFunc(c.requestTimeout, func() {
		c.removePending(pr.id)
		pr.reject(&RPCError{Code: CodeRequestTimeout, Message: "Request timeout"})
	})

	if err := send(raw); err != nil {
		c.removePending(pr.id)
		if pr.timer != nil {
			pr.timer.Stop()
		}
		return nil, err
	}

	select {
	case <-pr.done:
		if pr.timer != nil {
			pr.timer.Stop()
		}
		if pr.err != nil {
			return nil, pr.err
		}
		return pr.result, nil
	case <-ctx.Done():
		c.removePending(pr.id)
		if pr.timer != nil {
			pr.timer.Stop()
		}
		return nil, ctx.Err()
	}
}

func (c *Correlator) removePending(id string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	pr := c.pending[id]
	delete(c.pending, id)
	return pr
}

// HandleMessage dispatches one decoded incoming frame: resolves/rejects a
// pending request, forwards a notification, or — for an id with no
// pending entry — reports it via onUnknownID without destabilizing the
// connection.
func (c *Correlator) HandleMessage(raw []byte) error {
	msg, err := Decode(raw)
	if err != nil {
		return err
	}

	switch msg.Kind {
	case KindResponse:
		pr := c.removePending(msg.ID)
		if pr == nil {
			if c.onUnknownID != nil {
				c.onUnknownID(msg.ID)
			}
			logger.Warnw("response for unknown request id", "id", msg.ID)
			return nil
		}
		if pr.timer != nil {
			pr.timer.Stop()
		}
		if msg.Error != nil {
			pr.reject(msg.Error)
		} else {
			pr.resolve(msg.Result)
		}
	case KindNotification:
		if c.onNotify != nil {
			c.onNotify(msg.Method, msg.Params)
		}
	case KindRequest:
		// Inbound requests from the upstream server are out of scope for
		// the correlator; the kernel handles server->client requests (e.g.
		// elicitation) via its own dispatch, not through this correlator.
		logger.Debugw("ignoring upstream-initiated request in correlator", "method", msg.Method)
	}
	return nil
}

// RejectAllPending clears every timer and rejects every outstanding
// request with err, used on disconnect/close (spec.md §5).
func (c *Correlator) RejectAllPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, pr := range pending {
		if pr.timer != nil {
			pr.timer.Stop()
		}
		pr.reject(err)
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shockzort/tion-core/internal/device"
	"github.com/shockzort/tion-core/internal/infrastructure/mqtt"
)

const defaultRequestTimeout = 10 * time.Second

// Broker is the subset of the MQTT client the transport needs.
// *mqtt.Client satisfies it.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface used by the Transport.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Transport implements device.Transport as MQTT request/response against
// the BLE gateway. Each request carries a fresh UUID; the gateway answers
// on the response topic named after it.
type Transport struct {
	broker  Broker
	qos     byte
	timeout time.Duration
	logger  Logger

	mu      sync.Mutex
	pending map[string]chan Response
	started bool
	closed  bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithTimeout bounds each round trip. Context deadlines still apply.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithQoS sets the QoS for requests and the response subscription.
func WithQoS(qos byte) Option {
	return func(t *Transport) { t.qos = qos }
}

// WithLogger sets the transport logger.
func WithLogger(l Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// New creates a transport over broker. Start must be called before use.
func New(broker Broker, opts ...Option) *Transport {
	t := &Transport{
		broker:  broker,
		qos:     1,
		timeout: defaultRequestTimeout,
		logger:  noopLogger{},
		pending: make(map[string]chan Response),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start subscribes to gateway responses.
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}
	if err := t.broker.Subscribe(mqtt.Topics{}.AllGatewayResponses(), t.qos, t.handleResponse); err != nil {
		return fmt.Errorf("subscribing to gateway responses: %w", err)
	}
	t.started = true
	return nil
}

// Close unsubscribes and fails every outstanding request with ErrClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	started := t.started
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if started {
		return t.broker.Unsubscribe(mqtt.Topics{}.AllGatewayResponses())
	}
	return nil
}

// Connect asks the gateway to open a BLE link to address.
func (t *Transport) Connect(ctx context.Context, address string) error {
	_, err := t.roundTrip(ctx, OpConnect, address, nil)
	return err
}

// Disconnect asks the gateway to close the link.
func (t *Transport) Disconnect(ctx context.Context, address string) error {
	_, err := t.roundTrip(ctx, OpDisconnect, address, nil)
	return err
}

// Read fetches the current property set.
func (t *Transport) Read(ctx context.Context, address string) (device.Properties, error) {
	resp, err := t.roundTrip(ctx, OpRead, address, nil)
	if err != nil {
		return nil, err
	}
	if resp.Properties == nil {
		return device.Properties{}, nil
	}
	return resp.Properties, nil
}

// Write sends properties to the device.
func (t *Transport) Write(ctx context.Context, address string, props device.Properties) error {
	_, err := t.roundTrip(ctx, OpWrite, address, props)
	return err
}

// Pending returns the number of requests awaiting a response.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Transport) roundTrip(ctx context.Context, op Op, address string, props device.Properties) (Response, error) {
	req := Request{ID: uuid.NewString(), Op: op, Address: address, Properties: props}
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encoding %s request: %w", op, err)
	}

	ch := make(chan Response, 1)
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Response{}, ErrClosed
	}
	t.pending[req.ID] = ch
	t.mu.Unlock()
	defer t.forget(req.ID)

	if err := t.broker.Publish(mqtt.Topics{}.GatewayRequest(address), payload, t.qos, false); err != nil {
		return Response{}, fmt.Errorf("publishing %s request: %w", op, err)
	}
	t.logger.Debug("gateway request sent", "id", req.ID, "op", op, "address", address)

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, ErrClosed
		}
		return resp, responseError(op, resp)
	case <-timer.C:
		return Response{}, fmt.Errorf("%s %s: %w", op, address, ErrTimeout)
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (t *Transport) forget(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// handleResponse routes a gateway reply to its waiting request. Replies
// for unknown or expired ids are dropped.
func (t *Transport) handleResponse(topic string, payload []byte) error {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("decoding gateway response: %w", err)
	}
	if resp.ID == "" {
		resp.ID = topic[strings.LastIndex(topic, "/")+1:]
	}

	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	if ok {
		delete(t.pending, resp.ID)
	}
	t.mu.Unlock()

	if !ok {
		t.logger.Warn("gateway response for unknown request", "id", resp.ID)
		return nil
	}
	ch <- resp
	return nil
}

// responseError maps a failed reply to an error. A lost link becomes
// device.ErrNotConnected so handles notice it.
func responseError(op Op, resp Response) error {
	if resp.OK {
		return nil
	}
	msg := resp.Error
	if msg == "" {
		msg = "no detail"
	}
	if resp.Code == CodeNotConnected {
		return fmt.Errorf("%s: %s: %w", op, msg, device.ErrNotConnected)
	}
	return fmt.Errorf("%s: %s: %w", op, msg, ErrRejected)
}

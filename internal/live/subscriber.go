// Package live delivers task updates pushed by the backend over
// STOMP-over-WebSocket.
//
// A Subscription owns one background goroutine. It connects, subscribes to
// the topic and hands each decoded task to the handler on that goroutine.
// When the connection drops it waits a fixed delay and reconnects, forever,
// until Unsubscribe is called.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3"
	"golang.org/x/oauth2"

	"taskboard/internal/logging"
	"taskboard/internal/service"
)

const (
	// DefaultTopic is the broadcast destination for task updates.
	DefaultTopic = "/topic/tasks"

	// DefaultReconnectDelay is the fixed wait between connection attempts.
	DefaultReconnectDelay = 5 * time.Second
)

// State is the connection state of a subscription.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives one pushed task.
type Handler func(service.Task)

// Options configures a Subscriber.
type Options struct {
	Topic          string
	ReconnectDelay time.Duration

	// Tokens supplies the bearer token sent in the STOMP CONNECT frame and the
	// WebSocket handshake. It is read on every (re)connect.
	Tokens oauth2.TokenSource

	// Host is the STOMP virtual host. Empty means "/".
	Host string

	Logger *logging.Logger

	// OnState, if set, is called on every state change from the
	// subscription goroutine.
	OnState func(State)
}

// Subscriber opens subscriptions over a Dialer.
type Subscriber struct {
	dialer Dialer
	opts   Options
}

// NewSubscriber creates a subscriber. Zero options take the defaults.
func NewSubscriber(dialer Dialer, opts Options) *Subscriber {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Host == "" {
		opts.Host = "/"
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Subscriber{dialer: dialer, opts: opts}
}

// Subscribe starts delivering updates to handler and returns immediately.
// The handler runs on the subscription goroutine, one call at a time.
// Cancelling ctx stops the subscription like Unsubscribe does, without
// waiting.
func (s *Subscriber) Subscribe(ctx context.Context, handler Handler) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
		opts:   s.opts,
		dialer: s.dialer,
		log:    s.opts.Logger.With("topic", s.opts.Topic),
	}
	go sub.run(ctx, handler)
	return sub
}

// Subscription is an active topic subscription.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	opts   Options
	dialer Dialer
	log    *logging.Logger

	state atomic.Int32

	mu     sync.Mutex
	stream io.Closer
}

// Unsubscribe stops the subscription and waits for its goroutine to exit.
// When it returns no handler call is running and none will start. It is
// idempotent. It must not be called from the handler; cancel the context
// passed to Subscribe instead.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	s.closeStream()
	<-s.done
}

// Done is closed when the subscription goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// State reports the current connection state.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

func (s *Subscription) setState(st State) {
	if State(s.state.Swap(int32(st))) == st {
		return
	}
	s.log.Debug("bus state", "state", st.String())
	if s.opts.OnState != nil {
		s.opts.OnState(st)
	}
}

func (s *Subscription) run(ctx context.Context, handler Handler) {
	defer close(s.done)
	defer s.setState(Disconnected)

	for {
		s.setState(Connecting)
		err := s.session(ctx, handler)
		s.setState(Disconnected)
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("bus connection lost",
			"error", err.Error(),
			"retry_in", s.opts.ReconnectDelay.String(),
		)

		timer := time.NewTimer(s.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails or ctx is cancelled.
func (s *Subscription) session(ctx context.Context, handler Handler) error {
	header := http.Header{}
	var connOpts []func(*stomp.Conn) error
	connOpts = append(connOpts,
		stomp.ConnOpt.Host(s.opts.Host),
		stomp.ConnOpt.Logger(StompLogger(s.log)),
	)
	if s.opts.Tokens != nil {
		if tok, err := s.opts.Tokens.Token(); err == nil && tok.AccessToken != "" {
			auth := tok.Type() + " " + tok.AccessToken
			header.Set("Authorization", auth)
			connOpts = append(connOpts, stomp.ConnOpt.Header("Authorization", auth))
		}
	}

	stream, err := s.dialer.Dial(ctx, header)
	if err != nil {
		return err
	}
	if !s.setStream(ctx, stream) {
		_ = stream.Close()
		return ctx.Err()
	}
	defer s.clearStream()

	conn, err := stomp.Connect(stream, connOpts...)
	if err != nil {
		_ = stream.Close()
		return fmt.Errorf("stomp connect: %w", err)
	}
	// A graceful DISCONNECT waits for a receipt; a dead peer must not block
	// shutdown.
	defer func() { _ = conn.MustDisconnect() }()

	sub, err := conn.Subscribe(s.opts.Topic, stomp.AckAuto)
	if err != nil {
		return fmt.Errorf("stomp subscribe: %w", err)
	}
	s.setState(Connected)
	s.log.Info("bus connected")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C:
			if !ok {
				return errors.New("subscription closed")
			}
			if msg.Err != nil {
				return msg.Err
			}
			s.deliver(ctx, msg.Body, handler)
		}
	}
}

// deliver hands any well-formed JSON body to handler. The body only signals
// that tasks changed; its fields are decoded as far as they go.
func (s *Subscription) deliver(ctx context.Context, body []byte, handler Handler) {
	if !json.Valid(body) {
		s.log.Warn("dropping malformed task update", "bytes", len(body))
		return
	}
	task, err := decodeTask(body)
	if err != nil {
		s.log.Debug("partial task update", "error", err.Error())
	}
	if ctx.Err() != nil {
		return
	}
	handler(task)
}

// decodeTask decodes body field by field, keeping whatever fields parse.
// Ids may arrive as numbers or numeric strings.
func decodeTask(body []byte) (service.Task, error) {
	var task service.Task
	if err := json.Unmarshal(body, &task); err == nil {
		return task, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return task, err
	}
	var errs []error
	keep := func(name string, dst any) {
		raw, ok := fields[name]
		if !ok {
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	keepID := func(name string, dst *int64) {
		raw, ok := fields[name]
		if !ok {
			return
		}
		id, err := parseID(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = id
	}

	keepID("id", &task.ID)
	keep("title", &task.Title)
	keep("description", &task.Description)
	keep("status", &task.Status)
	keep("createdAt", &task.CreatedAt)
	keepID("assignedUserId", &task.AssignedUserID)
	keep("assignedUserName", &task.AssignedUserName)
	return task, errors.Join(errs...)
}

func parseID(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, err
		}
		n = json.Number(str)
	}
	return n.Int64()
}

// setStream records the open stream so Unsubscribe can break a blocked read.
// It reports false if the subscription is already stopping.
func (s *Subscription) setStream(ctx context.Context, c io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	s.stream = c
	return true
}

func (s *Subscription) clearStream() {
	s.mu.Lock()
	s.stream = nil
	s.mu.Unlock()
}

func (s *Subscription) closeStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		_ = s.stream.Close()
	}
}

package ldap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/netresearch/raw-ldap-go/internal/ber"
)

// State is the session state of a Conn.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateBound
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnected:
		return "Connected"
	case StateBound:
		return "Bound"
	default:
		return "Unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Conn is a single LDAP session over one TCP socket. It owns the socket and
// the message ID counter; neither is shared with other connections.
//
// Operations are serialized: a Conn may be shared between goroutines, but
// each operation completes (request written, all responses read) before the
// next one is issued. There is no pipelining.
type Conn struct {
	mu     sync.Mutex
	config Config
	logger *slog.Logger

	host   string
	port   int
	server string

	frame  *framer
	state  State
	nextID int64
}

// NewConn creates a disconnected Conn. A nil config uses the defaults.
func NewConn(config *Config) *Conn {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()
	return &Conn{config: cfg, logger: cfg.Logger}
}

// State returns the current session state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Server returns the host:port of the last connect attempt.
func (c *Conn) Server() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// Connect opens the TCP connection. It requires StateDisconnected and moves
// to StateConnected. A port of 0 selects DefaultPort.
func (c *Conn) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisconnected {
		return fmt.Errorf("%w: Connect requires %s, state is %s", ErrInvalidState, StateDisconnected, c.state)
	}
	if port == 0 {
		port = DefaultPort
	}
	c.host = host
	c.port = port
	c.server = net.JoinHostPort(host, strconv.Itoa(port))
	return c.dial(ctx)
}

func (c *Conn) dial(ctx context.Context) error {
	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()

	nc, err := c.config.Dialer.DialContext(dctx, "tcp", c.server)
	if err != nil {
		c.logger.Error("ldap_connect_failed",
			slog.String("server", c.server),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		} else {
			err = classifyIOError(err)
		}
		return &TransportError{Op: "Connect", Server: c.server, Err: err}
	}

	c.frame = newFramer(nc, c.server, c.config.MaxMessageSize, c.logger)
	c.state = StateConnected
	c.nextID = 1
	c.logger.Info("ldap_connected",
		slog.String("server", c.server),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Bind authenticates with a simple password. It requires StateConnected or
// StateBound. On resultCode 0 the session becomes StateBound; any other
// code returns an *AuthenticationError and leaves it StateConnected. An I/O
// failure during the round trip is retried once on a fresh connection.
func (c *Conn) Bind(ctx context.Context, dn, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return fmt.Errorf("%w: Bind requires a connection, state is %s", ErrInvalidState, c.state)
	}

	start := time.Now()
	c.logger.Debug("ldap_bind_started",
		slog.String("server", c.server),
		slog.String("dn", dn))

	res, err := c.bindOnce(ctx, dn, password)
	if err != nil && IsRetryable(err) {
		c.logger.Warn("ldap_bind_retrying",
			slog.String("server", c.server),
			slog.String("dn", dn),
			slog.String("error", err.Error()))
		if derr := c.dial(ctx); derr != nil {
			return derr
		}
		res, err = c.bindOnce(ctx, dn, password)
	}
	if err != nil {
		c.logger.Error("ldap_bind_failed",
			slog.String("server", c.server),
			slog.String("dn", dn),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return err
	}

	if res.Code != ResultSuccess {
		c.state = StateConnected
		c.logger.Warn("ldap_bind_rejected",
			slog.String("server", c.server),
			slog.String("dn", dn),
			slog.Int("result_code", int(res.Code)),
			slog.String("reason", res.Code.Reason()))
		return &AuthenticationError{
			Server:     c.server,
			DN:         dn,
			Code:       res.Code,
			Diagnostic: res.DiagnosticMessage,
		}
	}

	c.state = StateBound
	c.logger.Info("ldap_bind_completed",
		slog.String("server", c.server),
		slog.String("dn", dn),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (c *Conn) bindOnce(ctx context.Context, dn, password string) (LDAPResult, error) {
	var res LDAPResult
	req := &BindRequest{Version: ProtocolVersion, DN: dn, Password: []byte(password)}
	err := c.roundTrip(ctx, "Bind", req, c.config.BindTimeout, func(msg *Message) (bool, error) {
		resp, ok := msg.Op.(*BindResponse)
		if !ok {
			return true, c.unexpected("Bind", msg)
		}
		res = resp.LDAPResult
		return true, nil
	})
	return res, err
}

// Search runs req and collects entries until SearchResultDone. It requires
// StateBound. A non-zero final resultCode returns an *OperationError; a
// successful search without entries returns an empty result.
func (c *Conn) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateBound {
		return nil, fmt.Errorf("%w: Search requires %s, state is %s", ErrInvalidState, StateBound, c.state)
	}

	start := time.Now()
	filter := "<nil>"
	if req.Filter != nil {
		filter = req.Filter.String()
	}
	c.logger.Debug("ldap_search_started",
		slog.String("server", c.server),
		slog.String("base_dn", req.BaseDN),
		slog.String("filter", filter),
		slog.Any("attributes", req.Attributes))

	result := &SearchResult{}
	err := c.roundTrip(ctx, "Search", req, c.config.SearchTimeout, func(msg *Message) (bool, error) {
		switch op := msg.Op.(type) {
		case *SearchResultEntry:
			result.Entries = append(result.Entries, &Entry{DN: op.DN, Attributes: op.Attributes})
			return false, nil
		case *SearchResultReference:
			result.Referrals = append(result.Referrals, op.URIs...)
			return false, nil
		case *SearchResultDone:
			result.Code = op.Code
			if op.Code != ResultSuccess {
				return true, &OperationError{
					Op:         "Search",
					Server:     c.server,
					DN:         req.BaseDN,
					Code:       op.Code,
					MatchedDN:  op.MatchedDN,
					Diagnostic: op.DiagnosticMessage,
				}
			}
			return true, nil
		default:
			return true, c.unexpected("Search", msg)
		}
	})
	if err != nil {
		c.logger.Error("ldap_search_failed",
			slog.String("server", c.server),
			slog.String("base_dn", req.BaseDN),
			slog.String("filter", filter),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return nil, err
	}

	c.logger.Debug("ldap_search_completed",
		slog.String("server", c.server),
		slog.String("base_dn", req.BaseDN),
		slog.Int("entries", len(result.Entries)),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

// Add creates the entry dn with attrs. It requires StateBound.
func (c *Conn) Add(ctx context.Context, dn string, attrs []Attribute) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateBound {
		return fmt.Errorf("%w: Add requires %s, state is %s", ErrInvalidState, StateBound, c.state)
	}

	start := time.Now()
	req := &AddRequest{DN: dn, Attributes: attrs}
	err := c.roundTrip(ctx, "Add", req, c.config.AddTimeout, func(msg *Message) (bool, error) {
		resp, ok := msg.Op.(*AddResponse)
		if !ok {
			return true, c.unexpected("Add", msg)
		}
		if resp.Code != ResultSuccess {
			return true, &OperationError{
				Op:         "Add",
				Server:     c.server,
				DN:         dn,
				Code:       resp.Code,
				MatchedDN:  resp.MatchedDN,
				Diagnostic: resp.DiagnosticMessage,
			}
		}
		return true, nil
	})
	if err != nil {
		c.logger.Error("ldap_add_failed",
			slog.String("server", c.server),
			slog.String("dn", dn),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return err
	}

	c.logger.Info("ldap_add_completed",
		slog.String("server", c.server),
		slog.String("dn", dn),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Unbind sends an UnbindRequest, closes the socket and moves to
// StateDisconnected. No response is read. The socket is closed even when
// the write fails.
func (c *Conn) Unbind() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return fmt.Errorf("%w: Unbind requires a connection, state is %s", ErrInvalidState, c.state)
	}

	err := c.roundTrip(context.Background(), "Unbind", &UnbindRequest{}, 0, nil)
	c.teardown("unbind")
	return err
}

// Close drops the socket without sending an UnbindRequest.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return nil
	}
	c.teardown("close")
	return nil
}

// roundTrip sends req under a fresh message ID and feeds every correlated
// response to handle until it reports done. A nil handle sends without
// reading. Transport failures, framing errors and ID mismatches tear the
// connection down. A response that does not decode aborts only this
// operation: the rest of its responses are drained first.
func (c *Conn) roundTrip(ctx context.Context, op string, req ProtocolOp, timeout time.Duration, handle func(*Message) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: op, Server: c.server, Err: fmt.Errorf("%w: %w", ErrContextCancelled, err)}
	}
	id, err := c.nextMessageID(op)
	if err != nil {
		return err
	}

	fr := c.frame
	stop := context.AfterFunc(ctx, func() { _ = fr.close() })
	err = c.exchange(ctx, fr, op, id, req, timeout, handle)
	if !stop() && c.frame == fr {
		// The socket was closed under a completed operation.
		c.teardown(op)
	}
	return err
}

func (c *Conn) exchange(ctx context.Context, fr *framer, op string, id int32, req ProtocolOp, timeout time.Duration, handle func(*Message) (bool, error)) error {
	if err := fr.writeMessage(op, &Message{ID: id, Op: req}, c.deadline(ctx, c.config.WriteTimeout)); err != nil {
		if IsTransportError(err) {
			return c.fail(ctx, op, err)
		}
		return err
	}
	if handle == nil {
		return nil
	}

	for {
		el, err := fr.readFrame(op, c.deadline(ctx, timeout))
		if err != nil {
			return c.fail(ctx, op, err)
		}
		msg, err := DecodeMessage(el)
		if err != nil {
			perr := &ProtocolError{Op: op, Server: c.server, MessageID: id, Err: err}
			msgID, tag, ok := peekEnvelope(el)
			switch {
			case !ok || msgID != id:
				c.teardown(op)
			case !isFinalResponseTag(tag):
				c.drain(ctx, fr, op, id, timeout)
			}
			return perr
		}
		if msg.ID != id {
			c.logger.Warn("ldap_response_out_of_sync",
				slog.String("server", c.server),
				slog.Int("expected_message_id", int(id)),
				slog.Int("message_id", int(msg.ID)),
				slog.String("protocol_op", msg.Op.Name()))
			// Responses to other requests may still be queued.
			c.teardown(op)
			return &ProtocolError{
				Op:        op,
				Server:    c.server,
				MessageID: id,
				Err:       fmt.Errorf("%w: got response for message %d", ErrSync, msg.ID),
			}
		}
		done, err := handle(msg)
		if err != nil && errors.Is(err, ErrUnexpectedResponse) && !isFinalResponseTag(opTag(msg.Op)) {
			c.drain(ctx, fr, op, id, timeout)
		}
		if err != nil || done {
			return err
		}
	}
}

// drain discards the remaining responses to request id up to its final
// response, so that the next operation starts on a frame boundary. The
// connection is torn down when that cannot be reached before the deadline.
func (c *Conn) drain(ctx context.Context, fr *framer, op string, id int32, timeout time.Duration) {
	discarded := 0
	for {
		el, err := fr.readFrame(op, c.deadline(ctx, timeout))
		if err != nil {
			c.teardown(op)
			return
		}
		msgID, tag, ok := peekEnvelope(el)
		if !ok || msgID != id {
			c.teardown(op)
			return
		}
		discarded++
		if isFinalResponseTag(tag) {
			c.logger.Debug("ldap_responses_discarded",
				slog.String("server", c.server),
				slog.Int("message_id", int(id)),
				slog.Int("count", discarded))
			return
		}
	}
}

// peekEnvelope reads the message ID and protocolOp tag of a frame whose
// operation may not decode.
func peekEnvelope(el ber.Element) (int32, byte, bool) {
	if el.Tag != ber.TagSequence {
		return 0, 0, false
	}
	children, err := el.Children()
	if err != nil || len(children) < 2 || children[0].Tag != ber.TagInteger {
		return 0, 0, false
	}
	id, err := children[0].Int()
	if err != nil || id < 0 || id > math.MaxInt32 {
		return 0, 0, false
	}
	return int32(id), children[1].Tag, true
}

func isFinalResponseTag(tag byte) bool {
	return tag == tagBindResponse || tag == tagSearchResultDone || tag == tagAddResponse
}

func opTag(op ProtocolOp) byte {
	switch op.(type) {
	case *BindResponse:
		return tagBindResponse
	case *SearchResultDone:
		return tagSearchResultDone
	case *AddResponse:
		return tagAddResponse
	default:
		return 0
	}
}

func (c *Conn) nextMessageID(op string) (int32, error) {
	if c.nextID < 1 || c.nextID > math.MaxInt32 {
		return 0, &ProtocolError{Op: op, Server: c.server, Err: errors.New("message IDs exhausted on this connection")}
	}
	id := int32(c.nextID)
	c.nextID++
	return id, nil
}

// fail tears the connection down after a stream failure and reports
// cancellation in place of the I/O error it caused.
func (c *Conn) fail(ctx context.Context, op string, err error) error {
	c.teardown(op)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &TransportError{Op: op, Server: c.server, Err: fmt.Errorf("%w: %w", ErrContextCancelled, ctxErr)}
	}
	return err
}

func (c *Conn) teardown(reason string) {
	if c.frame != nil {
		_ = c.frame.close()
		c.frame = nil
	}
	if c.state != StateDisconnected {
		c.logger.Info("ldap_disconnected",
			slog.String("server", c.server),
			slog.String("reason", reason))
	}
	c.state = StateDisconnected
	c.nextID = 0
}

func (c *Conn) unexpected(op string, msg *Message) error {
	return &ProtocolError{
		Op:        op,
		Server:    c.server,
		MessageID: msg.ID,
		Err:       fmt.Errorf("%w: %s", ErrUnexpectedResponse, msg.Op.Name()),
	}
}

// deadline is now+timeout, shortened to the context deadline if earlier.
func (c *Conn) deadline(ctx context.Context, timeout time.Duration) time.Time {
	if timeout <= 0 {
		timeout = c.config.ReadTimeout
	}
	t := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(t) {
		return dl
	}
	return t
}

package ldap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/netresearch/raw-ldap-go/internal/ber"
)

// framer moves whole LDAPMessages over a stream. It owns no protocol state;
// every error it returns leaves the stream at an unknown position and the
// caller must discard the connection.
type framer struct {
	conn           net.Conn
	server         string
	maxMessageSize int
	logger         *slog.Logger
}

func newFramer(conn net.Conn, server string, maxMessageSize int, logger *slog.Logger) *framer {
	if maxMessageSize <= 0 {
		maxMessageSize = ber.DefaultMaxLength
	}
	return &framer{conn: conn, server: server, maxMessageSize: maxMessageSize, logger: logger}
}

// writeMessage encodes msg into one buffer and writes it with a single call.
func (f *framer) writeMessage(op string, msg *Message, deadline time.Time) error {
	data, err := msg.Encode()
	if err != nil {
		return &ProtocolError{Op: op, Server: f.server, MessageID: msg.ID, Err: err}
	}
	if err := f.conn.SetWriteDeadline(deadline); err != nil {
		return &TransportError{Op: op, Server: f.server, Err: err}
	}
	if _, err := f.conn.Write(data); err != nil {
		return &TransportError{Op: op, Server: f.server, Err: classifyIOError(err)}
	}

	f.logger.Debug("ldap_message_sent",
		slog.String("server", f.server),
		slog.Int("message_id", int(msg.ID)),
		slog.String("protocol_op", msg.Op.Name()),
		slog.Int("bytes", len(data)))
	return nil
}

// readFrame blocks until one complete TLV has been read or the deadline
// passes. A stream that closes mid-message is never reported as a short
// frame.
func (f *framer) readFrame(op string, deadline time.Time) (ber.Element, error) {
	if err := f.conn.SetReadDeadline(deadline); err != nil {
		return ber.Element{}, &TransportError{Op: op, Server: f.server, Err: err}
	}

	el, err := ber.ReadElement(f.conn, f.maxMessageSize)
	if err != nil {
		var de *ber.DecodeError
		if errors.As(err, &de) {
			return ber.Element{}, &ProtocolError{Op: op, Server: f.server, Err: err}
		}
		return ber.Element{}, &TransportError{Op: op, Server: f.server, Err: classifyIOError(err)}
	}

	f.logger.Debug("ldap_frame_received",
		slog.String("server", f.server),
		slog.Int("tag", int(el.Tag)),
		slog.Int("bytes", len(el.Content)))
	return el, nil
}

func (f *framer) close() error {
	return f.conn.Close()
}

// classifyIOError attaches ErrUnexpectedEOF or ErrTimeout to stream errors.
func classifyIOError(err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", ErrUnexpectedEOF, err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

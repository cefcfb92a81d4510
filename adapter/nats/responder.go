package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/reprise/internal/logging"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// ErrNoReply makes a Responder drop the request without answering, which
// the requester sees as a timeout.
var ErrNoReply = errors.New("reprise/nats: no reply")

// Handler answers one command.
//
// A returned *types.ServerError is sent as a failed reply. ErrNoReply sends
// nothing. Any other error is sent as a failed reply with its message.
type Handler func(ctx context.Context, db string, cmd wire.Document) (wire.Document, error)

// Responder serves a Handler on a server subject.
type Responder struct {
	sub    *nats.Subscription
	server types.ServerID
	fn     Handler
	logger types.Logger
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithResponderLogger sets the responder logger.
func WithResponderLogger(l types.Logger) ResponderOption {
	return func(r *Responder) {
		r.logger = l
	}
}

// Serve subscribes fn to the subject of server.
//
// Parameters:
//   - nc: NATS connection
//   - prefix: Subject prefix, matching the transport's
//   - server: Server id served
//   - fn: Command handler
//
// Returns:
//   - *Responder: The running responder
//   - error: ErrNilConn or a subscription error
func Serve(nc *nats.Conn, prefix string, server types.ServerID, fn Handler, opts ...ResponderOption) (*Responder, error) {
	if nc == nil {
		return nil, ErrNilConn
	}

	r := &Responder{server: server, fn: fn}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger)

	sub, err := nc.Subscribe(Subject(prefix, server), r.handle)
	if err != nil {
		return nil, err
	}
	r.sub = sub

	return r, nil
}

// Server returns the server id this responder answers for.
func (r *Responder) Server() types.ServerID {
	return r.server
}

// Stop unsubscribes the responder.
func (r *Responder) Stop() error {
	return r.sub.Unsubscribe()
}

func (r *Responder) handle(m *nats.Msg) {
	db := m.Header.Get(HeaderDatabase)

	cmd, err := wire.Decode(m.Data)
	if err != nil {
		r.respond(m, wire.ErrorReply(&types.ServerError{Code: 2, CodeName: "BadValue", Message: err.Error()}))
		return
	}

	doc, err := r.fn(context.Background(), db, cmd)
	if errors.Is(err, ErrNoReply) {
		r.logger.Debug("dropping request", "server", r.server, "command", cmd.Name())
		return
	}

	var se *types.ServerError
	switch {
	case errors.As(err, &se):
		doc = wire.ErrorReply(se)
	case err != nil:
		doc = wire.ErrorReply(&types.ServerError{Code: 1, CodeName: "InternalError", Message: err.Error()})
	}

	r.respond(m, doc)
}

func (r *Responder) respond(m *nats.Msg, doc wire.Document) {
	data, err := wire.Encode(doc)
	if err != nil {
		r.logger.Error("failed to encode reply", "server", r.server, "error", err)
		return
	}

	if err := m.Respond(data); err != nil {
		r.logger.Warn("failed to send reply", "server", r.server, "error", err)
	}
}

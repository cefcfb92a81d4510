package nats

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/reprise/internal/logging"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// Request headers.
const (
	HeaderDatabase = "Reprise-Database"
	HeaderCommand  = "Reprise-Command"
	HeaderSession  = "Reprise-Session"
)

// DefaultSubjectPrefix is the subject prefix used when none is configured.
const DefaultSubjectPrefix = "reprise.server"

// DefaultRequestTimeout bounds requests whose context has no deadline.
const DefaultRequestTimeout = 5 * time.Second

// ErrNilConn is returned when a nil connection is passed to NewTransport or Serve.
var ErrNilConn = errors.New("reprise/nats: connection cannot be nil")

var subjectEscaper = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// Subject returns the request subject of a server.
//
// Parameters:
//   - prefix: Subject prefix
//   - server: Server id
//
// Returns:
//   - string: "<prefix>.<server>" with the server id escaped to one token
func Subject(prefix string, server types.ServerID) string {
	return prefix + "." + subjectEscaper.Replace(string(server))
}

// Transport sends commands to servers over NATS request/reply.
//
// Transport is safe for concurrent use.
type Transport struct {
	nc      *nats.Conn
	prefix  string
	timeout time.Duration
	logger  types.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithSubjectPrefix sets the subject prefix.
//
// Parameters:
//   - prefix: Subject prefix (default: DefaultSubjectPrefix)
//
// Returns:
//   - Option: Configuration option
func WithSubjectPrefix(prefix string) Option {
	return func(t *Transport) {
		t.prefix = prefix
	}
}

// WithRequestTimeout sets the timeout of requests whose context has no deadline.
//
// Parameters:
//   - d: Request timeout (default: DefaultRequestTimeout)
//
// Returns:
//   - Option: Configuration option
func WithRequestTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.timeout = d
	}
}

// WithLogger sets the transport logger.
func WithLogger(l types.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// NewTransport creates a NATS transport on an existing connection.
//
// The transport does not own the connection; closing it is up to the caller.
//
// Parameters:
//   - nc: NATS connection
//   - opts: Configuration options
//
// Returns:
//   - *Transport: The transport
//   - error: ErrNilConn if nc is nil
func NewTransport(nc *nats.Conn, opts ...Option) (*Transport, error) {
	if nc == nil {
		return nil, ErrNilConn
	}

	t := &Transport{
		nc:      nc,
		prefix:  DefaultSubjectPrefix,
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.OrNop(t.logger)

	return t, nil
}

// Send requests msg from the server's responder and parses the reply.
func (t *Transport) Send(ctx context.Context, server types.ServerID, msg *wire.Message) (*wire.Reply, error) {
	if _, ok := ctx.Deadline(); !ok && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	req := nats.NewMsg(Subject(t.prefix, server))
	req.Header.Set(HeaderDatabase, msg.Database)
	req.Header.Set(HeaderCommand, msg.Command)
	if msg.SessionID != "" {
		req.Header.Set(HeaderSession, msg.SessionID)
	}
	req.Data = msg.Body

	resp, err := t.nc.RequestMsgWithContext(ctx, req)
	if err != nil {
		return nil, t.mapError(server, err)
	}

	reply, err := wire.ParseReply(resp.Data)
	if err != nil {
		var se *types.ServerError
		if errors.As(err, &se) {
			return nil, se
		}

		t.logger.Warn("malformed reply", "server", server, "bytes", len(resp.Data), "error", err)

		return nil, &types.NetworkError{Server: server, BytesRead: len(resp.Data), Cause: err}
	}

	return reply, nil
}

func (t *Transport) mapError(server types.ServerID, err error) error {
	switch {
	case errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return &types.NetworkError{Server: server, Cause: err}
	default:
		t.logger.Debug("nats request failed", "server", server, "error", err)
		return err
	}
}

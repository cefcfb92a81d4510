package cql

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/reprise/internal/logging"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// CommandName is the command this transport executes.
//
// The command document carries the statement under "cql" and optionally
// "args", "consistency" and "pageSize":
//
//	wire.Document{
//	    wire.E("cql", "SELECT id, total FROM orders WHERE customer = ?"),
//	    wire.E("args", []any{"c-42"}),
//	    wire.E("consistency", "LOCAL_ONE"),
//	}
const CommandName = "cql"

// Native protocol error codes that may succeed on another coordinator.
const (
	codeUnavailable   = 0x1000
	codeOverloaded    = 0x1001
	codeBootstrapping = 0x1002
	codeReadTimeout   = 0x1200
)

var retryableCodes = map[int]string{
	codeUnavailable:   "Unavailable",
	codeOverloaded:    "Overloaded",
	codeBootstrapping: "IsBootstrapping",
	codeReadTimeout:   "ReadTimeout",
}

// ErrUnknownServer is returned when no session is registered for a server.
var ErrUnknownServer = errors.New("reprise/cql: no session registered for server")

// Transport sends "cql" commands to per-server CQL sessions.
//
// Transport is safe for concurrent use.
type Transport struct {
	mu       sync.RWMutex
	sessions map[types.ServerID]Session

	isConnErr   func(error) bool
	consistency Consistency
	pageSize    int
	logger      types.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithConnectionErrors sets the driver-specific check for connection
// failures, which are reported as network errors.
//
// Parameters:
//   - fn: Predicate, typically v1.IsConnectionError or v2.IsConnectionError
//
// Returns:
//   - Option: Configuration option
func WithConnectionErrors(fn func(error) bool) Option {
	return func(t *Transport) {
		t.isConnErr = fn
	}
}

// WithDefaultConsistency sets the consistency of commands that do not set one.
//
// Parameters:
//   - c: Consistency level (default: LocalOne)
//
// Returns:
//   - Option: Configuration option
func WithDefaultConsistency(c Consistency) Option {
	return func(t *Transport) {
		t.consistency = c
	}
}

// WithPageSize sets the page size of queries.
func WithPageSize(n int) Option {
	return func(t *Transport) {
		t.pageSize = n
	}
}

// WithLogger sets the transport logger.
func WithLogger(l types.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// NewTransport creates a CQL transport with no sessions.
//
// Example:
//
//	transport := cql.NewTransport(cql.WithConnectionErrors(v1.IsConnectionError))
//	for _, host := range hosts {
//	    cluster := gocql.NewCluster(host)
//	    cluster.HostFilter = gocql.WhiteListHostFilter(host)
//	    s, _ := cluster.CreateSession()
//	    transport.Register(reprise.ServerID(host), v1.NewSession(s))
//	}
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		sessions:    make(map[types.ServerID]Session),
		isConnErr:   func(error) bool { return false },
		consistency: LocalOne,
		pageSize:    5000,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.OrNop(t.logger)

	return t
}

// Register sets the session used for a server, replacing any previous one.
func (t *Transport) Register(server types.ServerID, s Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[server] = s
}

// Send executes a "cql" command on the server's session.
//
// Reply:
//
//	{rows: [{column: value, ...}, ...], ok: 1}
func (t *Transport) Send(ctx context.Context, server types.ServerID, msg *wire.Message) (*wire.Reply, error) {
	t.mu.RLock()
	s, ok := t.sessions[server]
	t.mu.RUnlock()
	if !ok {
		return nil, &types.NetworkError{Server: server, Cause: ErrUnknownServer}
	}

	if msg.Command != CommandName {
		return nil, &types.ServerError{
			Code:     59,
			CodeName: "CommandNotFound",
			Message:  fmt.Sprintf("no such command: '%s'", msg.Command),
		}
	}

	cmd, err := msg.Document()
	if err != nil {
		return nil, err
	}

	stmt, _ := cmd.String(CommandName)
	var args []any
	if v, ok := cmd.Lookup("args"); ok {
		args, _ = v.([]any)
	}

	consistency := t.consistency
	if name, ok := cmd.String("consistency"); ok {
		c, ok := ParseConsistency(name)
		if !ok {
			return nil, &types.ServerError{Code: 2, CodeName: "BadValue", Message: "unknown consistency " + name}
		}
		consistency = c
	}
	pageSize := t.pageSize
	if n, ok := cmd.Int("pageSize"); ok && n > 0 {
		pageSize = int(n)
	}

	iter := s.Query(stmt, args...).Consistency(consistency).PageSize(pageSize).IterContext(ctx)

	rows := []wire.Document{}
	for {
		row := make(map[string]any)
		if !iter.MapScan(row) {
			break
		}
		rows = append(rows, rowDocument(row))
	}
	if err := iter.Close(); err != nil {
		return nil, t.mapError(server, len(rows), err)
	}

	return wire.NewReply(wire.OK(wire.E("rows", rows)))
}

// Close closes every registered session.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, s := range t.sessions {
		s.Close()
		delete(t.sessions, id)
	}

	return nil
}

func (t *Transport) mapError(server types.ServerID, rowsRead int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &types.NetworkError{Server: server, Cause: err}
	}

	if t.isConnErr(err) {
		// Rows already consumed cannot be replayed on another server
		return &types.NetworkError{Server: server, BytesRead: rowsRead, Cause: err}
	}

	var reqErr RequestError
	if errors.As(err, &reqErr) {
		se := &types.ServerError{
			//nolint:gosec // protocol codes fit in int32
			Code:    int32(reqErr.Code()),
			Message: reqErr.Message(),
		}
		if name, ok := retryableCodes[reqErr.Code()]; ok {
			se.CodeName = name
			se.Labels = []string{types.LabelRetryableReadError}
		}

		return se
	}

	t.logger.Debug("unclassified cql error", "server", server, "error", err)

	return err
}

// rowDocument converts a scanned row to a document with sorted keys.
func rowDocument(row map[string]any) wire.Document {
	doc := make(wire.Document, 0, len(row))
	for k, v := range row {
		doc = append(doc, wire.E(k, cqlValue(v)))
	}
	slices.SortFunc(doc, func(a, b wire.Element) int { return strings.Compare(a.Key, b.Key) })

	return doc
}

// cqlValue converts driver values the codec does not encode natively.
func cqlValue(v any) any {
	switch x := v.(type) {
	case time.Time, []byte:
		return x
	case fmt.Stringer:
		// UUIDs, inet and similar driver types
		return x.String()
	default:
		return v
	}
}

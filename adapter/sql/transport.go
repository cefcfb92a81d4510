package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/arloliu/reprise/internal/logging"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// CommandName is the command this transport executes.
//
// The command document carries the query under "sql" and its positional
// arguments under "args":
//
//	wire.Document{
//	    wire.E("sql", "SELECT id, name FROM users WHERE team = ?"),
//	    wire.E("args", []any{"core"}),
//	}
const CommandName = "sql"

// ErrUnknownServer is returned when no database is registered for a server.
var ErrUnknownServer = errors.New("reprise/sql: no database registered for server")

// Transport sends "sql" commands to per-server read replicas.
//
// Transport is safe for concurrent use.
type Transport struct {
	mu  sync.RWMutex
	dbs map[types.ServerID]DB

	mapErr func(error) error
	logger types.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithErrorMapper sets a driver-specific mapping applied to query errors
// that are not connection or context failures.
//
// The mapper typically turns driver error codes into *types.ServerError
// so the classifier can inspect them.
//
// Parameters:
//   - fn: Mapping function; returning the error unchanged is allowed
//
// Returns:
//   - Option: Configuration option
func WithErrorMapper(fn func(error) error) Option {
	return func(t *Transport) {
		t.mapErr = fn
	}
}

// WithLogger sets the transport logger.
func WithLogger(l types.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// NewTransport creates a SQL transport with no databases.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		dbs:    make(map[types.ServerID]DB),
		mapErr: func(err error) error { return err },
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.OrNop(t.logger)

	return t
}

// Register sets the database used for a server, replacing any previous one.
func (t *Transport) Register(server types.ServerID, db DB) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dbs[server] = db
}

// Ping checks that a registered server answers.
//
// Parameters:
//   - ctx: Context for cancellation
//   - server: Server to ping
//
// Returns:
//   - error: ErrUnknownServer or the mapped ping error
func (t *Transport) Ping(ctx context.Context, server types.ServerID) error {
	db, ok := t.lookup(server)
	if !ok {
		return &types.NetworkError{Server: server, Cause: ErrUnknownServer}
	}
	if err := db.PingContext(ctx); err != nil {
		return t.mapError(server, 0, err)
	}

	return nil
}

// Send executes a "sql" command on the server's database.
//
// Reply:
//
//	{rows: [{column: value, ...}, ...], ok: 1}
func (t *Transport) Send(ctx context.Context, server types.ServerID, msg *wire.Message) (*wire.Reply, error) {
	db, ok := t.lookup(server)
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

	query, _ := cmd.String(CommandName)
	var args []any
	if v, ok := cmd.Lookup("args"); ok {
		args, _ = v.([]any)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, t.mapError(server, 0, err)
	}
	defer rows.Close()

	docs, err := scanRows(rows)
	if err != nil {
		return nil, t.mapError(server, len(docs), err)
	}

	return wire.NewReply(wire.OK(wire.E("rows", docs)))
}

// Close closes every registered database.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for id, db := range t.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(t.dbs, id)
	}

	return errors.Join(errs...)
}

func (t *Transport) lookup(server types.ServerID) (DB, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	db, ok := t.dbs[server]

	return db, ok
}

func (t *Transport) mapError(server types.ServerID, rowsRead int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &types.NetworkError{Server: server, Cause: err}
	}

	if isConnectionError(err) {
		// Rows already consumed cannot be replayed on another server
		return &types.NetworkError{Server: server, BytesRead: rowsRead, Cause: err}
	}

	t.logger.Debug("sql query failed", "server", server, "error", err)

	return t.mapErr(err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}

// scanRows reads every row into a document keyed by column name.
//
// On error the rows scanned so far are returned with it.
func scanRows(rows *sql.Rows) ([]wire.Document, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	docs := []wire.Document{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return docs, err
		}

		doc := make(wire.Document, len(cols))
		for i, col := range cols {
			doc[i] = wire.E(col, sqlValue(values[i]))
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// sqlValue converts scanned driver values to codec friendly ones.
func sqlValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}

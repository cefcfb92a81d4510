package reprise

import (
	"context"
	"sync/atomic"

	"github.com/arloliu/reprise/internal/logging"
	"github.com/arloliu/reprise/internal/metrics"
	"github.com/arloliu/reprise/internal/observe"
	"github.com/arloliu/reprise/policy"
	"github.com/arloliu/reprise/session"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// Client executes read commands with at most one automatic retry.
//
// Each operation selects a server through the ServerSelector, sends the
// encoded command through the Transport and, when the first attempt fails
// with a retryable error, sends the byte-identical command once more to a
// server selected with the failed one deprioritized.
//
// Client is safe for concurrent use from multiple goroutines.
type Client struct {
	transport  Transport
	view       TopologyView
	config     *ClientConfig
	selector   ServerSelector
	tracker    FailoverTracker
	classifier Classifier
	eligible   EligibilityFunc
	observer   Observer
	metrics    types.MetricsCollector
	logger     types.Logger
	sessions   *session.Pool

	opSeq  atomic.Uint64
	closed atomic.Bool
}

// NewClient creates a new retryable read client.
//
// Parameters:
//   - transport: Sends encoded commands to servers (required)
//   - view: Topology view used by the default selector and tracker (required)
//   - opts: Optional configuration options
//
// Returns:
//   - *Client: A new client
//   - error: ErrNilTransport or ErrNilTopology, or an invalid default read preference
//
// Example:
//
//	view := topology.NewLocal(
//	    reprise.ServerDescription{ID: "db-1:27017", Type: types.ServerRSPrimary},
//	    reprise.ServerDescription{ID: "db-2:27017", Type: types.ServerRSSecondary},
//	)
//	client, err := reprise.NewClient(transport, view,
//	    reprise.WithReadPreference(reprise.ReadPreference{Mode: reprise.SecondaryPreferred}),
//	)
func NewClient(transport Transport, view TopologyView, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, types.ErrNilTransport
	}
	if view == nil {
		return nil, types.ErrNilTopology
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if err := config.ReadPreference.Validate(); err != nil {
		return nil, err
	}

	logger := logging.OrNop(config.Logger)
	collector := metrics.OrNop(config.Metrics)

	c := &Client{
		transport:  transport,
		view:       view,
		config:     config,
		selector:   config.Selector,
		tracker:    config.FailoverTracker,
		classifier: config.Classifier,
		eligible:   config.Eligibility,
		observer:   config.Observer,
		metrics:    collector,
		logger:     logger,
		sessions:   session.NewPool(config.SessionIdleTimeout),
	}

	if c.selector == nil {
		c.selector = policy.NewSelector(view,
			policy.WithSelectionTimeout(config.ServerSelectionTimeout),
			policy.WithLocalThreshold(config.LocalThreshold),
			policy.WithSelectorLogger(logger),
		)
	}
	if c.tracker == nil {
		marker, _ := view.(policy.SuspectMarker)
		c.tracker = policy.NewFailoverTracker(marker,
			policy.WithSuspectTTL(config.SuspectTTL),
			policy.WithTrackerMetrics(collector),
			policy.WithTrackerLogger(logger),
		)
	}
	if c.classifier == nil {
		c.classifier = policy.NewDefaultClassifier()
	}
	if c.eligible == nil {
		c.eligible = policy.DefaultEligibility
	}
	if c.observer == nil {
		c.observer = observe.NopObserver{}
	}

	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() *ClientConfig {
	return c.config
}

// StartSession starts an explicit session.
//
// Explicit sessions are causally consistent unless disabled, and must be
// ended by the caller. A session is used by one operation at a time.
//
// Parameters:
//   - opts: Session options
//
// Returns:
//   - *session.Session: A new session
//   - error: ErrClientClosed after Close
func (c *Client) StartSession(opts ...session.Option) (*session.Session, error) {
	if c.closed.Load() {
		return nil, types.ErrClientClosed
	}

	return session.NewExplicit(opts...), nil
}

// ExecuteRead runs a read command.
//
// The command is decorated with the session fields and encoded once; the
// same bytes are sent on the first attempt and on the retry. A nil sess runs
// the operation in an implicit session.
//
// Parameters:
//   - ctx: Context carrying the overall deadline of the operation
//   - db: Target database
//   - cmd: Command document; its first key is the command name
//   - rp: Read preference; the zero value means primary
//   - sess: Explicit session, or nil
//
// Returns:
//   - *wire.Reply: The reply of the successful attempt
//   - error: *types.ReadError describing the last failed attempt, or a
//     validation error
func (c *Client) ExecuteRead(
	ctx context.Context,
	db string,
	cmd wire.Document,
	rp ReadPreference,
	sess *session.Session,
) (*wire.Reply, error) {
	return c.run(ctx, db, cmd, rp, sess, "")
}

// Command starts building a read command.
//
// Example:
//
//	reply, err := client.Command("app", wire.Document{
//	    wire.E("find", "orders"),
//	    wire.E("filter", wire.Document{wire.E("status", "open")}),
//	}).ReadPreference(reprise.ReadPreference{Mode: reprise.Nearest}).ExecContext(ctx)
//
// Parameters:
//   - db: Target database
//   - cmd: Command document
//
// Returns:
//   - *ReadCommand: Builder for the command
func (c *Client) Command(db string, cmd wire.Document) *ReadCommand {
	return &ReadCommand{
		client: c,
		db:     db,
		cmd:    cmd,
		rp:     c.config.ReadPreference,
	}
}

// Close closes the client. Subsequent operations return ErrClientClosed.
//
// The transport and topology view are owned by the caller and are not closed.
func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *Client) run(
	ctx context.Context,
	db string,
	cmd wire.Document,
	rp ReadPreference,
	sess *session.Session,
	pinned ServerID,
) (*wire.Reply, error) {
	if c.closed.Load() {
		return nil, types.ErrClientClosed
	}
	if err := rp.Validate(); err != nil {
		return nil, err
	}
	if len(cmd) == 0 || cmd.Name() == "" {
		return nil, types.ErrInvalidCommand
	}

	if sess == nil {
		sess = c.sessions.Implicit()
		defer sess.End()
	}
	if err := sess.Checkout(); err != nil {
		return nil, err
	}
	defer sess.Checkin()

	msg, err := wire.NewMessage(db, sess.Decorate(cmd))
	if err != nil {
		return nil, err
	}

	shape := wire.ShapeOf(db, cmd)
	shape.Pinned = pinned != ""

	op := &operation{
		id:       c.opSeq.Add(1),
		msg:      msg,
		rp:       rp,
		sess:     sess,
		pinned:   pinned,
		eligible: !shape.Pinned && c.eligible(shape),
	}

	return c.execute(ctx, op)
}

// ReadCommand is a read command under construction.
type ReadCommand struct {
	client *Client
	db     string
	cmd    wire.Document
	rp     ReadPreference
	sess   *session.Session
	pinned ServerID
}

// ReadPreference sets the read preference of the command.
func (r *ReadCommand) ReadPreference(rp ReadPreference) *ReadCommand {
	r.rp = rp
	return r
}

// Session runs the command in an explicit session.
func (r *ReadCommand) Session(sess *session.Session) *ReadCommand {
	r.sess = sess
	return r
}

// Pinned sends the command to a fixed server, as for a getMore on an open
// cursor. Pinned commands are never retried.
func (r *ReadCommand) Pinned(server ServerID) *ReadCommand {
	r.pinned = server
	return r
}

// ExecContext runs the command.
//
// Parameters:
//   - ctx: Context carrying the overall deadline of the operation
//
// Returns:
//   - *wire.Reply: The reply of the successful attempt
//   - error: *types.ReadError or a validation error
func (r *ReadCommand) ExecContext(ctx context.Context) (*wire.Reply, error) {
	return r.client.run(ctx, r.db, r.cmd, r.rp, r.sess, r.pinned)
}

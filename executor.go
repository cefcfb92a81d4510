package reprise

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/arloliu/reprise/session"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// Attempt lifecycle states.
const (
	stateNotStarted   = "not_started"
	stateFirstAttempt = "first_attempt"
	stateRetryAttempt = "retry_attempt"
	stateDone         = "done"
)

// Attempt lifecycle events.
const (
	eventStart  = "start"
	eventRetry  = "retry"
	eventFinish = "finish"
)

// errEmptyReply is returned when a transport reports neither a reply nor an error.
var errEmptyReply = errors.New("reprise: transport returned no reply")

// newAttemptMachine builds the per-operation attempt state machine.
//
// retry is only defined from first_attempt, so an operation can move to
// retry_attempt at most once.
func newAttemptMachine() *fsm.FSM {
	return fsm.NewFSM(
		stateNotStarted,
		fsm.Events{
			{Name: eventStart, Src: []string{stateNotStarted}, Dst: stateFirstAttempt},
			{Name: eventRetry, Src: []string{stateFirstAttempt}, Dst: stateRetryAttempt},
			{Name: eventFinish, Src: []string{stateNotStarted, stateFirstAttempt, stateRetryAttempt}, Dst: stateDone},
		},
		fsm.Callbacks{},
	)
}

// operation is one logical read.
type operation struct {
	id       uint64
	msg      *wire.Message
	rp       types.ReadPreference
	sess     *session.Session
	pinned   types.ServerID
	eligible bool
}

// attemptResult describes the last attempt of an operation.
type attemptResult struct {
	server   types.ServerID
	attempt  int
	category types.ErrorCategory
	err      error
}

// retryBudget returns the number of retries the operation may consume.
func (c *Client) retryBudget(op *operation) int {
	if !c.config.RetryReads || !op.eligible {
		return 0
	}

	return 1
}

// execute runs the attempt loop of one operation.
func (c *Client) execute(ctx context.Context, op *operation) (*wire.Reply, error) {
	// State transitions must not fail because the caller's context ended.
	fsmCtx := context.WithoutCancel(ctx)
	machine := newAttemptMachine()
	defer func() { _ = machine.Event(fsmCtx, eventFinish) }()

	budget := c.retryBudget(op)

	if err := ctx.Err(); err != nil {
		return nil, c.terminal(op, attemptResult{err: err}, types.ReasonDeadline)
	}
	if err := machine.Event(fsmCtx, eventStart); err != nil {
		return nil, fmt.Errorf("reprise: attempt state %s: %w", machine.Current(), err)
	}

	var (
		last     attemptResult
		excluded types.ServerID
	)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last.err == nil {
				last.err = err
			}

			return nil, c.terminal(op, last, types.ReasonDeadline)
		}

		server, err := c.selectServer(ctx, op, attempt, excluded)
		if err != nil {
			c.metrics.IncServerSelectionFailure()
			if last.err == nil {
				last.err = err
			} else {
				last.err = fmt.Errorf("%w (retry server selection failed: %w)", last.err, err)
			}
			reason := types.ReasonNoEligibleServer
			if ctx.Err() != nil {
				reason = types.ReasonDeadline
			}

			return nil, c.terminal(op, last, reason)
		}

		reply, category, err := c.attempt(ctx, op, attempt, server)
		if err == nil {
			op.sess.RecordSuccess(reply.Metadata)
			if attempt > 1 {
				c.metrics.IncRetrySuccess(server)
			}

			return reply, nil
		}

		last = attemptResult{server: server, attempt: attempt, category: category, err: err}

		reason, retry := c.decide(ctx, category, budget, attempt)
		if !retry {
			return nil, c.terminal(op, last, reason)
		}
		if err := machine.Event(fsmCtx, eventRetry); err != nil {
			return nil, c.terminal(op, last, types.ReasonRetryExhausted)
		}
		budget--

		c.tracker.MarkFailed(server, category)
		c.observer.RetryScheduled(ctx, types.RetryEvent{
			OperationID:  op.id,
			Command:      op.msg.Command,
			FailedServer: server,
			Category:     category,
			Err:          err,
		})
		c.logger.Warn("read failed, retrying on another server",
			"command", op.msg.Command,
			"server", server,
			"category", category,
			"error", err,
		)
		excluded = server
	}
}

// decide returns whether a failed attempt may be retried and, when not,
// the reason the operation ends.
func (c *Client) decide(ctx context.Context, category types.ErrorCategory, budget, attempt int) (types.TerminalReason, bool) {
	switch {
	case ctx.Err() != nil:
		return types.ReasonDeadline, false
	case !category.Retryable():
		return types.ReasonNonRetryable, false
	case budget > 0:
		return 0, true
	case attempt > 1:
		return types.ReasonRetryExhausted, false
	case !c.config.RetryReads:
		return types.ReasonRetryDisabled, false
	default:
		return types.ReasonIneligible, false
	}
}

// selectServer picks the server for an attempt.
//
// Pinned operations go to their server directly, as long as the topology
// still reports it reachable.
func (c *Client) selectServer(ctx context.Context, op *operation, attempt int, excluded types.ServerID) (types.ServerID, error) {
	var (
		server types.ServerID
		err    error
	)
	if op.pinned != "" {
		server, err = c.pinnedServer(op.pinned)
	} else {
		var desc types.ServerDescription
		if excluded != "" {
			desc, err = c.selector.Select(ctx, op.rp, excluded)
		} else {
			desc, err = c.selector.Select(ctx, op.rp)
		}
		server = desc.ID
	}
	if err != nil {
		return "", err
	}

	if excluded != "" {
		c.metrics.IncRetryTotal(excluded, server)
	}
	if excluded != "" && server == excluded {
		c.logger.Debug("retrying on the failed server, no other server is suitable",
			"command", op.msg.Command,
			"server", server,
		)
	}

	c.observer.ServerSelected(ctx, types.ServerSelectedEvent{
		OperationID: op.id,
		Attempt:     attempt,
		Command:     op.msg.Command,
		Server:      server,
		Excluded:    excluded,
	})

	return server, nil
}

func (c *Client) pinnedServer(id types.ServerID) (types.ServerID, error) {
	if c.view.ServerState(id) == types.Unreachable {
		return "", fmt.Errorf("%w: pinned server %s is unreachable", types.ErrNoEligibleServer, id)
	}

	return id, nil
}

// attempt sends the operation's message once.
func (c *Client) attempt(
	ctx context.Context,
	op *operation,
	attempt int,
	server types.ServerID,
) (*wire.Reply, types.ErrorCategory, error) {
	c.observer.CommandStarted(ctx, types.CommandStartedEvent{
		OperationID: op.id,
		Attempt:     attempt,
		Command:     op.msg.Command,
		Database:    op.msg.Database,
		Server:      server,
		Payload:     op.msg.Body,
		SessionID:   op.msg.SessionID,
	})
	c.metrics.IncReadTotal(server)

	start := time.Now()
	reply, err := c.transport.Send(ctx, server, op.msg)
	if err == nil && reply == nil {
		err = errEmptyReply
	}
	elapsed := time.Since(start)
	c.metrics.ObserveReadDuration(server, elapsed.Seconds())

	if err == nil {
		c.observer.CommandSucceeded(ctx, types.CommandSucceededEvent{
			OperationID: op.id,
			Attempt:     attempt,
			Command:     op.msg.Command,
			Server:      server,
			Duration:    elapsed,
		})

		return reply, types.NonRetryable, nil
	}

	category := c.classifier.Classify(err)
	c.metrics.IncReadError(server, category)
	c.observer.CommandFailed(ctx, types.CommandFailedEvent{
		OperationID: op.id,
		Attempt:     attempt,
		Command:     op.msg.Command,
		Server:      server,
		Duration:    elapsed,
		Category:    category,
		Err:         err,
	})

	return nil, category, err
}

// terminal builds the error returned to the caller.
func (c *Client) terminal(op *operation, last attemptResult, reason types.TerminalReason) error {
	c.metrics.IncTerminalError(reason)

	return &types.ReadError{
		Server:   last.server,
		Command:  op.msg.Command,
		Attempt:  last.attempt,
		Category: last.category,
		Reason:   reason,
		Cause:    last.err,
	}
}

// Package reprise provides the retryable read execution core of a database
// client driver.
//
// A read command is encoded once, sent to a server chosen by read
// preference and, when the first attempt fails with a transient error, sent
// exactly once more to a server selected with the failed one deprioritized.
// The caller always sees either a reply or the error of the last attempt.
//
// # Key Features
//
//   - Single Retry: At most two sends per operation, enforced by a state machine
//   - Byte-Identical Resend: The retry sends the same encoded command
//   - Server Selection: Read preference modes, tag sets and latency window
//   - Failover Tracking: The failed server is marked suspect for a short time
//   - Sessions: Explicit and implicit sessions with causal consistency tokens
//   - Observability: Per-attempt events, metrics and structured logging
//
// # Basic Usage
//
//	view := topology.NewLocal(
//	    reprise.ServerDescription{ID: "db-1:27017", Type: types.ServerRSPrimary},
//	    reprise.ServerDescription{ID: "db-2:27017", Type: types.ServerRSSecondary},
//	)
//	transport := natsadapter.NewTransport(nc)
//
//	client, err := reprise.NewClient(transport, view,
//	    reprise.WithRetryReads(true),
//	    reprise.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	reply, err := client.ExecuteRead(ctx, "app", wire.Document{
//	    wire.E("find", "orders"),
//	    wire.E("filter", wire.Document{wire.E("status", "open")}),
//	}, reprise.ReadPreference{Mode: reprise.SecondaryPreferred}, nil)
//
// # Retry Rules
//
// An operation gets a retry budget of one when retryable reads are enabled
// and the command is eligible (see policy.DefaultEligibility). The first
// failure is retried when:
//
//   - its category is retryable (network error, not primary, node recovering,
//     shutdown in progress), see policy.DefaultClassifier
//   - the operation deadline has not passed
//   - a server can be selected for the retry
//
// Ineligible operations and clients with retries disabled still send the
// command once; their first failure is final.
//
// # Error Handling
//
// Failed operations return a *types.ReadError. It unwraps to the error of
// the last attempt and matches a sentinel describing why the operation
// ended:
//
//	_, err := client.ExecuteRead(ctx, "app", cmd, rp, nil)
//	var readErr *reprise.ReadError
//	if errors.As(err, &readErr) {
//	    log.Printf("%s failed on %s after %d attempt(s)", readErr.Command, readErr.Server, readErr.Attempt)
//	}
//	if errors.Is(err, reprise.ErrNoEligibleServer) {
//	    // no server matched the read preference
//	}
//
//	var srvErr *reprise.ServerError
//	if errors.As(err, &srvErr) {
//	    log.Printf("server error %d", srvErr.Code)
//	}
//
// # Sentinel Errors
//
//   - ErrNoEligibleServer: Selection found no server before its timeout
//   - ErrDeadlineExceeded: The operation deadline passed
//   - ErrIneligibleOperation: The command may not be retried
//   - ErrRetryDisabled: Retryable reads are disabled
//   - ErrClientClosed: Operation attempted on a closed client
//
// # Sessions
//
// Operations run in an explicit session when one is given, otherwise in an
// implicit session drawn from a pool. The session identifier and causal
// consistency fields are attached before encoding, so both attempts carry
// the same identifier:
//
//	sess, _ := client.StartSession()
//	defer sess.End()
//
//	reply, err := client.Command("app", cmd).Session(sess).ExecContext(ctx)
//
// # Configuration
//
// Settings come from functional options, a connection string or a YAML
// file:
//
//	cs, err := reprise.ParseURI("reprise://db-1:27017,db-2:27017/app?readPreference=nearest")
//	client, err := reprise.NewClient(transport, view, cs.Options()...)
//
// # Thread Safety
//
// Client is safe for concurrent use. A session is used by one operation at
// a time; concurrent use returns types.ErrSessionInUse.
package reprise

// Package policy provides the decision components of a retryable read:
// error classification, retry eligibility, server selection and failover
// tracking.
//
// # Classification
//
// [DefaultClassifier] maps an attempt failure to a types.ErrorCategory.
// Network failures before any reply bytes were read, and server errors
// with known transient codes or labels, are retryable; everything else,
// including a failure while a reply was partially streamed, is not:
//
//	c := policy.NewDefaultClassifier()
//	c.Classify(&types.ServerError{Code: 10107}) // types.NotPrimary
//
// # Eligibility
//
// [DefaultEligibility] decides which commands may be retried at all. It is
// injected into the client so the list can follow server releases:
//
//	client, _ := reprise.NewClient(transport, view,
//	    reprise.WithEligibility(policy.EligibleCommands("find", "count")),
//	)
//
// # Server Selection
//
// [Selector] honors the read preference (mode, tag sets, latency window),
// deprioritizes suspect servers and avoids the server that just failed
// when an alternative exists.
//
// # Failover Tracking
//
// [FailoverTracker] marks a failed server suspect for a short TTL through
// the topology's [SuspectMarker]. It never removes servers:
//
//	tracker := policy.NewFailoverTracker(view,
//	    policy.WithSuspectTTL(5 * time.Second),
//	)
package policy

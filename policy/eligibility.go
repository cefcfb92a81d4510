package policy

import (
	"strings"

	"github.com/arloliu/reprise/types"
)

// retryableReadCommands lists the read commands that can be safely resent.
var retryableReadCommands = map[string]struct{}{
	"find":            {},
	"aggregate":       {},
	"distinct":        {},
	"count":           {},
	"listdatabases":   {},
	"listcollections": {},
	"listindexes":     {},
}

// DefaultEligibility reports whether a read command may be retried.
//
// Eligible: find, aggregate (unless the pipeline writes through $out or
// $merge), distinct, count, listDatabases, listCollections and listIndexes.
// Commands bound to server-pinned state, such as getMore on an open cursor,
// are never eligible.
//
// Parameters:
//   - cmd: Shape of the command
//
// Returns:
//   - bool: true if a transient failure may be retried once
func DefaultEligibility(cmd types.CommandShape) bool {
	if cmd.Pinned {
		return false
	}

	name := strings.ToLower(cmd.Name)
	if _, ok := retryableReadCommands[name]; !ok {
		return false
	}

	if name == "aggregate" && (cmd.HasStage("$out") || cmd.HasStage("$merge")) {
		return false
	}

	return true
}

// EligibleCommands returns an eligibility predicate that accepts exactly
// the given command names, case-insensitively. Pinned commands are still
// rejected.
func EligibleCommands(names ...string) func(types.CommandShape) bool {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[strings.ToLower(n)] = struct{}{}
	}

	return func(cmd types.CommandShape) bool {
		if cmd.Pinned {
			return false
		}
		_, ok := allowed[strings.ToLower(cmd.Name)]

		return ok
	}
}

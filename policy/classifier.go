package policy

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/arloliu/reprise/types"
)

// Server error codes that make a read retryable.
var retryableCodes = map[int32]types.ErrorCategory{
	// NotPrimary family
	10107: types.NotPrimary, // NotWritablePrimary
	13435: types.NotPrimary, // NotPrimaryNoSecondaryOk
	10058: types.NotPrimary, // LegacyNotPrimary

	// NodeIsRecovering family
	11602: types.NodeIsRecovering, // InterruptedDueToReplStateChange
	13436: types.NodeIsRecovering, // NotPrimaryOrSecondary
	189:   types.NodeIsRecovering, // PrimarySteppedDown

	// ShutdownInProgress family
	91:    types.ShutdownInProgress, // ShutdownInProgress
	11600: types.ShutdownInProgress, // InterruptedAtShutdown

	// Network-like server errors
	6:    types.NetworkTransient, // HostUnreachable
	7:    types.NetworkTransient, // HostNotFound
	89:   types.NetworkTransient, // NetworkTimeout
	9001: types.NetworkTransient, // SocketException
	262:  types.NetworkTransient, // ExceededTimeLimit
	134:  types.NetworkTransient, // ReadConcernMajorityNotAvailableYet
}

// Legacy servers report some states by message only.
var legacyMessages = []struct {
	substr   string
	category types.ErrorCategory
}{
	{"node is recovering", types.NodeIsRecovering},
	{"not master or secondary", types.NodeIsRecovering},
	{"not master", types.NotPrimary},
	{"not writable primary", types.NotPrimary},
}

// DefaultClassifier maps failures to retry categories.
//
// It is pure and deterministic: the same error always yields the same
// category and no I/O is performed.
type DefaultClassifier struct{}

// NewDefaultClassifier creates a new DefaultClassifier.
//
// Returns:
//   - *DefaultClassifier: A new classifier
func NewDefaultClassifier() *DefaultClassifier {
	return &DefaultClassifier{}
}

// Classify returns the retry category of err.
//
// Rules, first match wins:
//   - *types.NetworkError with BytesRead > 0: NonRetryable (partial reply)
//   - *types.ServerError: known codes, then the NetworkError and
//     RetryableReadError labels, then legacy messages
//   - context.Canceled: NonRetryable
//   - *types.NetworkError: NetworkTransient
//   - io.ErrUnexpectedEOF: NonRetryable (reply cut off midway)
//   - io.EOF, connection reset/refused/broken pipe, dial errors,
//     net.Error timeouts: NetworkTransient
//   - anything else: NonRetryable
//
// Parameters:
//   - err: The failure of an attempt
//
// Returns:
//   - types.ErrorCategory: The retry category
func (c *DefaultClassifier) Classify(err error) types.ErrorCategory {
	if err == nil {
		return types.NonRetryable
	}

	var netErr *types.NetworkError
	if errors.As(err, &netErr) && netErr.BytesRead > 0 {
		return types.NonRetryable
	}

	var srvErr *types.ServerError
	if errors.As(err, &srvErr) {
		return classifyServerError(srvErr)
	}

	if errors.Is(err, context.Canceled) {
		return types.NonRetryable
	}

	if netErr != nil {
		return types.NetworkTransient
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return types.NonRetryable
	}

	if isTransientNetwork(err) {
		return types.NetworkTransient
	}

	return types.NonRetryable
}

func classifyServerError(e *types.ServerError) types.ErrorCategory {
	if cat, ok := retryableCodes[e.Code]; ok {
		return cat
	}

	if e.HasLabel(types.LabelNetworkError) || e.HasLabel(types.LabelRetryableReadError) {
		return types.NetworkTransient
	}

	// Only code-less errors fall back to message matching
	if e.Code == 0 {
		msg := strings.ToLower(e.Message)
		for _, lm := range legacyMessages {
			if strings.Contains(msg, lm.substr) {
				return lm.category
			}
		}
	}

	return types.NonRetryable
}

func isTransientNetwork(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, net.ErrClosed) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var ne net.Error

	return errors.As(err, &ne) && ne.Timeout()
}

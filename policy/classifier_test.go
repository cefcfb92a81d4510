package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/reprise/types"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestDefaultClassifierServerCodes(t *testing.T) {
	c := NewDefaultClassifier()

	tests := []struct {
		code int32
		want types.ErrorCategory
	}{
		{10107, types.NotPrimary},
		{13435, types.NotPrimary},
		{10058, types.NotPrimary},
		{11602, types.NodeIsRecovering},
		{13436, types.NodeIsRecovering},
		{189, types.NodeIsRecovering},
		{91, types.ShutdownInProgress},
		{11600, types.ShutdownInProgress},
		{6, types.NetworkTransient},
		{7, types.NetworkTransient},
		{89, types.NetworkTransient},
		{9001, types.NetworkTransient},
		{262, types.NetworkTransient},
		{134, types.NetworkTransient},
		{11000, types.NonRetryable}, // duplicate key
		{2, types.NonRetryable},     // BadValue
		{43, types.NonRetryable},    // CursorNotFound
		{99999, types.NonRetryable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%d", tt.code), func(t *testing.T) {
			err := &types.ServerError{Code: tt.code, Message: "boom"}
			require.Equal(t, tt.want, c.Classify(err))

			// classification survives wrapping
			require.Equal(t, tt.want, c.Classify(fmt.Errorf("wrapped: %w", err)))
		})
	}
}

func TestDefaultClassifierLabels(t *testing.T) {
	c := NewDefaultClassifier()

	require.Equal(t, types.NetworkTransient, c.Classify(&types.ServerError{
		Code:   12345,
		Labels: []string{types.LabelRetryableReadError},
	}))
	require.Equal(t, types.NetworkTransient, c.Classify(&types.ServerError{
		Code:   12345,
		Labels: []string{types.LabelNetworkError},
	}))
	require.Equal(t, types.NonRetryable, c.Classify(&types.ServerError{
		Code:   12345,
		Labels: []string{"TransientTransactionError"},
	}))
}

func TestDefaultClassifierLegacyMessages(t *testing.T) {
	c := NewDefaultClassifier()

	require.Equal(t, types.NotPrimary, c.Classify(&types.ServerError{Message: "not master"}))
	require.Equal(t, types.NotPrimary, c.Classify(&types.ServerError{Message: "Not Writable Primary"}))
	require.Equal(t, types.NodeIsRecovering, c.Classify(&types.ServerError{Message: "node is recovering"}))
	require.Equal(t, types.NodeIsRecovering, c.Classify(&types.ServerError{Message: "not master or secondary; cannot currently read"}))

	// a coded error is never matched by message
	require.Equal(t, types.NonRetryable, c.Classify(&types.ServerError{Code: 11000, Message: "not master"}))
}

func TestDefaultClassifierNetwork(t *testing.T) {
	c := NewDefaultClassifier()

	tests := []struct {
		name string
		err  error
		want types.ErrorCategory
	}{
		{"network error before read", &types.NetworkError{Server: "a", Cause: errors.New("refused")}, types.NetworkTransient},
		{"partial reply", &types.NetworkError{Server: "a", BytesRead: 12, Cause: io.ErrUnexpectedEOF}, types.NonRetryable},
		{"eof", io.EOF, types.NetworkTransient},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), types.NonRetryable},
		{"bare unexpected eof", io.ErrUnexpectedEOF, types.NonRetryable},
		{"unexpected eof before read", &types.NetworkError{Server: "a", Cause: io.ErrUnexpectedEOF}, types.NetworkTransient},
		{"reset", &os.SyscallError{Syscall: "read", Err: syscall.ECONNRESET}, types.NetworkTransient},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, types.NetworkTransient},
		{"dial failure", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route to host")}, types.NetworkTransient},
		{"read failure", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("bad record mac")}, types.NonRetryable},
		{"read reset", &net.OpError{Op: "read", Net: "tcp", Err: &os.SyscallError{Syscall: "read", Err: syscall.ECONNRESET}}, types.NetworkTransient},
		{"read timeout", &net.OpError{Op: "read", Net: "tcp", Err: timeoutErr{}}, types.NetworkTransient},
		{"broken pipe", syscall.EPIPE, types.NetworkTransient},
		{"closed", net.ErrClosed, types.NetworkTransient},
		{"timeout", timeoutErr{}, types.NetworkTransient},
		{"attempt deadline", context.DeadlineExceeded, types.NetworkTransient},
		{"canceled", context.Canceled, types.NonRetryable},
		{"generic", errors.New("bad things"), types.NonRetryable},
		{"nil", nil, types.NonRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.Classify(tt.err))
		})
	}
}

func TestDefaultClassifierIsDeterministic(t *testing.T) {
	c := NewDefaultClassifier()
	err := &types.ServerError{Code: 91, Message: "shutting down"}

	first := c.Classify(err)
	for range 100 {
		require.Equal(t, first, c.Classify(err))
	}
}

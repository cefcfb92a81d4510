package testutil

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/reprise"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// DefaultFailPointMessage is the error message of an injected server error.
const DefaultFailPointMessage = "Failing command due to 'failCommand' failpoint"

// FailPoint makes MockTransport fail matching commands, in the manner of a
// server-side failCommand fail point.
type FailPoint struct {
	// Times is the number of matching sends to fail. Ignored when AlwaysOn.
	Times int

	// AlwaysOn fails every matching send until the fail point is cleared.
	AlwaysOn bool

	// FailCommands lists the command names to fail. Empty matches all.
	FailCommands []string

	// Servers restricts the fail point to some servers. Empty matches all.
	Servers []types.ServerID

	// ErrorCode is returned as a server error when non-zero.
	ErrorCode int32

	// ErrorLabels are attached to the server error.
	ErrorLabels []string

	// ErrMsg overrides DefaultFailPointMessage.
	ErrMsg string

	// CloseConnection fails with a network error instead of a server error.
	CloseConnection bool

	// BytesRead is reported by the network error of CloseConnection.
	BytesRead int

	// BlockConnection delays the send, honoring the context deadline.
	BlockConnection time.Duration

	// Err is returned as is when set, taking precedence over the others.
	Err error
}

func (fp *FailPoint) matches(server types.ServerID, command string) bool {
	if !fp.AlwaysOn && fp.Times <= 0 {
		return false
	}
	if len(fp.FailCommands) > 0 && !slices.ContainsFunc(fp.FailCommands, func(c string) bool {
		return strings.EqualFold(c, command)
	}) {
		return false
	}
	if len(fp.Servers) > 0 && !slices.Contains(fp.Servers, server) {
		return false
	}

	return true
}

func (fp *FailPoint) failure(server types.ServerID) error {
	if fp.Err != nil {
		return fp.Err
	}
	if fp.CloseConnection {
		return &types.NetworkError{Server: server, BytesRead: fp.BytesRead, Cause: io.ErrUnexpectedEOF}
	}

	msg := fp.ErrMsg
	if msg == "" {
		msg = DefaultFailPointMessage
	}

	return &types.ServerError{Code: fp.ErrorCode, Message: msg, Labels: fp.ErrorLabels}
}

// SentCommand is a send recorded by MockTransport.
type SentCommand struct {
	Server  types.ServerID
	Message *wire.Message
}

// MockTransport is an in-memory reprise.Transport for testing.
//
// Successful sends are answered by Handler, or by DefaultReply when Handler
// is nil. Fail points are checked in the order they were added.
type MockTransport struct {
	mu         sync.Mutex
	failPoints []*FailPoint
	sends      []SentCommand

	// Handler answers sends that no fail point intercepted.
	Handler func(ctx context.Context, server types.ServerID, msg *wire.Message) (*wire.Reply, error)

	// Metadata is attached to default replies.
	Metadata types.ReplyMetadata
}

// Compile-time assertion that MockTransport implements reprise.Transport.
var _ reprise.Transport = (*MockTransport)(nil)

// NewMockTransport creates a new mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// SetFailPoint adds a fail point.
func (m *MockTransport) SetFailPoint(fp FailPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failPoints = append(m.failPoints, &fp)
}

// ClearFailPoints removes every fail point.
func (m *MockTransport) ClearFailPoints() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failPoints = nil
}

// Send records the send, then fails it or answers it.
func (m *MockTransport) Send(ctx context.Context, server types.ServerID, msg *wire.Message) (*wire.Reply, error) {
	m.mu.Lock()
	m.sends = append(m.sends, SentCommand{Server: server, Message: msg})

	var hit *FailPoint
	for _, fp := range m.failPoints {
		if fp.matches(server, msg.Command) {
			if !fp.AlwaysOn {
				fp.Times--
			}
			hit = fp

			break
		}
	}
	handler := m.Handler
	md := m.Metadata
	m.mu.Unlock()

	if hit != nil && hit.BlockConnection > 0 {
		timer := time.NewTimer(hit.BlockConnection)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &types.NetworkError{Server: server, Cause: ctx.Err()}
		case <-timer.C:
		}
	}

	if hit != nil && (hit.Err != nil || hit.CloseConnection || hit.ErrorCode != 0 || hit.ErrMsg != "" || len(hit.ErrorLabels) > 0) {
		return nil, hit.failure(server)
	}

	if handler != nil {
		return handler(ctx, server, msg)
	}

	return DefaultReply(msg, md)
}

// Sends returns the recorded sends in order.
func (m *MockTransport) Sends() []SentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.sends)
}

// SendCount returns the number of recorded sends.
func (m *MockTransport) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sends)
}

// Reset clears recorded sends and fail points.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sends = nil
	m.failPoints = nil
}

// DefaultReply builds a plausible successful reply for a read command.
//
// count and countDocuments answer n: 2; every other command answers an
// empty cursor on the command's collection.
func DefaultReply(msg *wire.Message, md types.ReplyMetadata) (*wire.Reply, error) {
	var doc wire.Document
	switch msg.Command {
	case "count", "countDocuments":
		doc = wire.OK(wire.E("n", int64(2)))
	default:
		coll := ""
		if cmd, err := msg.Document(); err == nil {
			coll, _ = cmd.String(msg.Command)
		}
		doc = wire.OK(wire.E("cursor", wire.Document{
			wire.E("firstBatch", []wire.Document{}),
			wire.E("id", int64(0)),
			wire.E("ns", msg.Database+"."+coll),
		}))
	}

	return wire.NewReply(wire.WithClusterTime(doc, md))
}

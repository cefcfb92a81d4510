package wire

import (
	"fmt"

	"github.com/arloliu/reprise/types"
)

// Message is an encoded command ready to be sent to a server.
//
// A Message is built once per operation and sent unchanged on every
// attempt; Body must never be modified after NewMessage returns.
type Message struct {
	// Database is the target database.
	Database string

	// Command is the command name.
	Command string

	// Body is the MessagePack encoded command document.
	Body []byte

	// SessionID is the lsid attached to the command, empty without session.
	SessionID string
}

// NewMessage encodes a command document for the given database.
//
// Parameters:
//   - db: Target database
//   - cmd: Command document; its first key is the command name
//
// Returns:
//   - *Message: Encoded message
//   - error: ErrInvalidCommand for an empty document, or an encoding error
func NewMessage(db string, cmd Document) (*Message, error) {
	if len(cmd) == 0 || cmd.Name() == "" {
		return nil, types.ErrInvalidCommand
	}

	body, err := Encode(cmd)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Database: db,
		Command:  cmd.Name(),
		Body:     body,
	}
	if lsid, ok := cmd.Doc("lsid"); ok {
		if id, ok := lsid.Lookup("id"); ok {
			msg.SessionID = fmt.Sprint(id)
		}
	}

	return msg, nil
}

// Document decodes the message body.
func (m *Message) Document() (Document, error) {
	return Decode(m.Body)
}

// ShapeOf extracts the parts of a command that retry eligibility depends on.
func ShapeOf(db string, cmd Document) types.CommandShape {
	shape := types.CommandShape{
		Name:     cmd.Name(),
		Database: db,
	}

	v, ok := cmd.Lookup("pipeline")
	if !ok {
		return shape
	}

	var stages []Document
	switch p := v.(type) {
	case []Document:
		stages = p
	case []any:
		for _, item := range p {
			if d, ok := item.(Document); ok {
				stages = append(stages, d)
			}
		}
	}
	for _, st := range stages {
		shape.PipelineStages = append(shape.PipelineStages, st.Name())
	}

	return shape
}

package wire

import (
	"fmt"

	"github.com/arloliu/reprise/types"
)

// Reply is a decoded server reply.
type Reply struct {
	// Document is the decoded reply document.
	Document Document

	// Metadata carries the reply's causal consistency tokens.
	Metadata types.ReplyMetadata

	// Raw is the encoded reply as received.
	Raw []byte
}

// ParseReply decodes a reply and converts command failures into errors.
//
// A reply whose "ok" field is not 1 is returned as a *types.ServerError
// built from its "code", "codeName", "errmsg" and "errorLabels" fields.
//
// Parameters:
//   - raw: Encoded reply bytes
//
// Returns:
//   - *Reply: Decoded reply for successful commands
//   - error: Decode error or *types.ServerError
func ParseReply(raw []byte) (*Reply, error) {
	doc, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("reprise: malformed reply: %w", err)
	}

	if ok, _ := doc.Int("ok"); ok != 1 {
		return nil, serverError(doc)
	}

	return &Reply{
		Document: doc,
		Metadata: metadataOf(doc),
		Raw:      raw,
	}, nil
}

// NewReply builds a Reply from a document, encoding it to fill Raw.
func NewReply(doc Document) (*Reply, error) {
	raw, err := Encode(doc)
	if err != nil {
		return nil, err
	}

	return &Reply{Document: doc, Metadata: metadataOf(doc), Raw: raw}, nil
}

// OK builds a successful reply document with the given fields.
func OK(fields ...Element) Document {
	doc := make(Document, 0, len(fields)+1)
	doc = append(doc, fields...)

	return append(doc, E("ok", 1.0))
}

// ErrorReply builds a failed reply document from a server error.
func ErrorReply(se *types.ServerError) Document {
	doc := Document{
		E("ok", 0.0),
		E("errmsg", se.Message),
	}
	if se.Code != 0 {
		doc = append(doc, E("code", se.Code))
	}
	if se.CodeName != "" {
		doc = append(doc, E("codeName", se.CodeName))
	}
	if len(se.Labels) > 0 {
		doc = append(doc, E("errorLabels", se.Labels))
	}

	return doc
}

// WithClusterTime returns doc with "$clusterTime" and "operationTime" set.
func WithClusterTime(doc Document, md types.ReplyMetadata) Document {
	if !md.ClusterTime.IsZero() {
		doc = doc.Set("$clusterTime", Document{E("clusterTime", md.ClusterTime)})
	}
	if !md.OperationTime.IsZero() {
		doc = doc.Set("operationTime", md.OperationTime)
	}

	return doc
}

func serverError(doc Document) *types.ServerError {
	se := &types.ServerError{}
	if code, ok := doc.Int("code"); ok {
		//nolint:gosec // server codes fit in int32
		se.Code = int32(code)
	}
	se.CodeName, _ = doc.String("codeName")
	se.Message, _ = doc.String("errmsg")

	if v, ok := doc.Lookup("errorLabels"); ok {
		if labels, ok := v.([]any); ok {
			for _, l := range labels {
				if s, ok := l.(string); ok {
					se.Labels = append(se.Labels, s)
				}
			}
		}
	}

	return se
}

func metadataOf(doc Document) types.ReplyMetadata {
	var md types.ReplyMetadata
	if ct, ok := doc.Doc("$clusterTime"); ok {
		if ts, ok := ct.Lookup("clusterTime"); ok {
			md.ClusterTime, _ = ts.(types.Timestamp)
		}
	}
	if ts, ok := doc.Lookup("operationTime"); ok {
		md.OperationTime, _ = ts.(types.Timestamp)
	}

	return md
}

package wire

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/tinylib/msgp/msgp"

	"github.com/arloliu/reprise/types"
)

// UUIDExtensionType is the MessagePack extension type for UUIDs.
// We use type 10 which is in the user-defined range (0-127).
// Types 3, 4, 5 are used by msgp for complex64, complex128, and time.Time.
const UUIDExtensionType int8 = 10

// TimestampExtensionType is the MessagePack extension type for cluster timestamps.
const TimestampExtensionType int8 = 11

func init() {
	msgp.RegisterExtension(UUIDExtensionType, func() msgp.Extension {
		return new(uuidExt)
	})
	msgp.RegisterExtension(TimestampExtensionType, func() msgp.Extension {
		return new(timestampExt)
	})
}

// uuidExt carries session ids and binary UUID values through MessagePack.
type uuidExt uuid.UUID

func (u *uuidExt) ExtensionType() int8 { return UUIDExtensionType }

func (u *uuidExt) Len() int { return len(u) }

func (u *uuidExt) MarshalBinaryTo(b []byte) error {
	copy(b, u[:])
	return nil
}

func (u *uuidExt) UnmarshalBinary(b []byte) error {
	if len(b) != len(u) {
		return msgp.ErrShortBytes
	}
	copy(u[:], b)

	return nil
}

// timestampExt encodes a types.Timestamp as 8 big-endian bytes.
type timestampExt types.Timestamp

func (t *timestampExt) ExtensionType() int8 { return TimestampExtensionType }

func (t *timestampExt) Len() int { return 8 }

func (t *timestampExt) MarshalBinaryTo(b []byte) error {
	binary.BigEndian.PutUint32(b[0:4], t.T)
	binary.BigEndian.PutUint32(b[4:8], t.I)

	return nil
}

func (t *timestampExt) UnmarshalBinary(b []byte) error {
	if len(b) != 8 {
		return msgp.ErrShortBytes
	}
	t.T = binary.BigEndian.Uint32(b[0:4])
	t.I = binary.BigEndian.Uint32(b[4:8])

	return nil
}

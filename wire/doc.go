// Package wire encodes command documents and decodes server replies.
//
// Documents are ordered key/value lists encoded as MessagePack maps. A
// command is encoded exactly once into a Message, so every attempt of an
// operation sends byte-identical content:
//
//	msg, err := wire.NewMessage("app", wire.Document{
//	    wire.E("count", "users"),
//	    wire.E("query", wire.Document{wire.E("active", true)}),
//	})
//
// Replies with "ok" != 1 are turned into *types.ServerError by ParseReply.
package wire

// Package nats provides a reprise Transport that sends commands over NATS
// request/reply.
//
// Every server listens on its own subject, "<prefix>.<server>", where dots
// in the server id are replaced so the id stays a single subject token.
// Requests carry the MessagePack command body with the database and the
// command name in headers; replies carry a MessagePack reply document.
//
// # Client Side
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	transport := natsadapter.NewTransport(nc, natsadapter.WithSubjectPrefix("db"))
//	client, _ := reprise.NewClient(transport, view)
//
// # Server Side
//
// Responder serves a Handler on a server's subject, which is how tests and
// the serve-mock command stand up fake servers:
//
//	r, _ := natsadapter.Serve(nc, "db", "replica-1", func(ctx context.Context, db string, cmd wire.Document) (wire.Document, error) {
//	    return wire.OK(wire.E("n", 2)), nil
//	})
//	defer r.Stop()
//
// # Error Mapping
//
// No responders, request timeouts, closed or draining connections and
// context errors are reported as *types.NetworkError with BytesRead 0. An
// undecodable reply is reported with BytesRead set to its length, which
// makes it non-retryable. Failed replies ("ok" != 1) are returned as
// *types.ServerError.
package nats

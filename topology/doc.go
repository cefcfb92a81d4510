// Package topology provides topology views for server selection.
//
// A view answers two questions for the read path: which servers exist
// (Servers) and whether a server can be used right now (ServerState).
// Membership is owned by an external topology monitor; the only state the
// read path writes is a short-lived suspect hint through MarkSuspect.
//
// # Local Topology
//
// [Local] is an in-memory view for tests, demos and static deployments:
//
//	view := topology.NewLocal(
//	    types.ServerDescription{ID: "db-1:27017", Type: types.ServerRSPrimary},
//	    types.ServerDescription{ID: "db-2:27017", Type: types.ServerRSSecondary},
//	)
//	view.SetReachable("db-2:27017", false) // as a heartbeat would
//
// # NATS Topology
//
// [NATS] mirrors a server list stored in a NATS KV bucket:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "reprise-config")
//
//	view, _ := topology.NewNATS(kv, topology.WithKey("orders.topology"))
//	view.Start(ctx)
//
//	client, _ := reprise.NewClient(transport, view)
//
// # Server List Format
//
// The NATS KV value is a JSON object listing the members:
//
//	{
//	    "servers": [
//	        {"id": "db-1:27017", "type": "RSPrimary", "rttMs": 1.2},
//	        {"id": "db-2:27017", "type": "RSSecondary", "tags": {"dc": "east"}},
//	        {"id": "db-3:27017", "type": "RSSecondary", "down": true}
//	    ]
//	}
//
// Deleting the key empties the view. An invalid value is logged and the
// last known list is kept.
package topology

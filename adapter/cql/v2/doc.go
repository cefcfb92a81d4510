// Package v2 provides an adapter for apache/cassandra-gocql-driver v2.x to work with the reprise
// CQL transport.
//
// # Usage
//
// Create one gocql session per host and register it with the transport:
//
//	transport := cql.NewTransport(cql.WithConnectionErrors(v2.IsConnectionError))
//
//	for _, host := range []string{"10.0.0.1", "10.0.0.2"} {
//	    cluster := gocql.NewCluster(host)
//	    cluster.Keyspace = "shop"
//	    cluster.HostFilter = gocql.WhiteListHostFilter(host)
//
//	    s, err := cluster.CreateSession()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    transport.Register(reprise.ServerID(host), v2.NewSession(s))
//	}
//
// # Thread Safety
//
// All adapter types are safe for concurrent use, matching gocql's thread safety guarantees.
package v2

// Package session implements logical sessions for read operations.
//
// A Session carries the session id (lsid) and the causal consistency tokens
// (cluster time and operation time). Tokens only advance from successful
// replies and never move backwards. The same Session is used for every
// attempt of an operation.
//
// Explicit sessions are created by the caller:
//
//	sess := client.StartSession()
//	defer sess.End()
//
// Implicit sessions come from a Pool and live for one operation.
package session

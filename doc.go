// Package surrealism is a SurrealDB client speaking both the HTTP interface
// and the WebSocket RPC protocol behind one connection handle.
//
// # Transports
//
// [Connect] takes a single endpoint and infers the other one: an http(s)
// URL gets a ws(s) sibling ending in /rpc, and a ws(s) URL gets its http(s)
// sibling by dropping the rpc path segment. The transport you asked for has
// to come up, an inferred one may fail quietly and is then left out. Use
// [ConnectEndpoints] to name both endpoints yourself, and [DB.Diagnostics]
// to see why an inferred transport is missing.
//
// Operations prefer the RPC channel when it is available. A few of them only
// exist on one side:
//
//   - [Mutate] merges through HTTP PATCH and needs the HTTP transport.
//   - [Patch], [PatchRecord], [Live] and [DB.Kill] need the RPC channel.
//   - [DB.Health], [DB.Version], [DB.Export] and [DB.Import] need the HTTP transport.
//
// Calling them without their transport fails with [ErrTransportRequired].
//
// # Queries
//
// Values are never spliced into query text. Build queries with
// [github.com/Chooks22/surrealism/pkg/surrealql] and every value is sent
// as a bound variable:
//
//	q := surrealql.Build("SELECT * FROM person WHERE age > ", 18)
//	res, err := surrealism.SQL[Person](ctx, db, q)
//
// # Live queries
//
// [Live] returns a declaration that can be consumed with a callback or pulled
// with an iterator, see [github.com/Chooks22/surrealism/pkg/live].
package surrealism

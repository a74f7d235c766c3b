// Package ws bridges websocket connections to collaboration hubs.
//
// The package implements:
//   - Client: the bounded outbound send queue for one connection
//   - Adapter: the per-connection read/write loop pair that decodes the JSON
//     envelope once at the boundary, feeds binary audio through the frame
//     decoder, and funnels everything into the session's hub
//
// Each connection owns an explicit Connected -> Closing -> Closed lifecycle.
// Transport errors, duplicate close callbacks, and explicit leaves all converge
// on the same transition, so a member is removed from its hub exactly once.
package ws

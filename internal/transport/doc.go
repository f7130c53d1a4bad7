// Package transport serves the hub's websocket endpoints.
//
// Each endpoint admits one connection type. A request is authenticated
// before the upgrade; unauthenticated requests get 401. After the upgrade
// the socket is registered with the connection Manager, greeted with a
// handshake message, and its frames are fed to the Router in arrival order.
//
// Outbound frames go through a bounded per-socket queue drained by a single
// writer goroutine. Emit never blocks: when the queue is full the frame is
// dropped and logged.
package transport

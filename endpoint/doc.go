// Package endpoint
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint handle over the kdbus character device: exclusive owner of the
// descriptor and the read-only mmapped receive pool, with send/receive
// orchestration on top of the protocol codec.
//
// A single endpoint is meant for single-threaded cooperative dispatch driven
// by package reactor; the blocking kernel calls (register, send, receive) are
// the only suspension points, and EINTR is always retried at the call site,
// never surfaced.
package endpoint

// Package control
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Operational surface of the transport: environment-driven configuration and
// prometheus instrumentation. Both are optional; the endpoint works with a
// nil Metrics and a zero Config.
package control

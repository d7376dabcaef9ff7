// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared contracts for the kdbus-go transport: error taxonomy, IO condition
// masks, the watch dispatch callback, and the Device seam through which the
// endpoint talks to the kernel bus device.
//
// The api package has no dependencies on the concrete implementations so that
// fakes (package fake) and the real endpoint can satisfy the same contracts.
package api

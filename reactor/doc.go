// Package reactor
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event source adapter for the kdbus endpoint: bridges descriptor readiness,
// a cancellation signal and an idle timeout into cooperative single-threaded
// dispatch. A Watch moves through Idle, Armed, Ready, Dispatched and Removed;
// an elapsed idle timeout forces a dispatch with synthetic read/write
// readiness so the callback always observes the timeout.
package reactor

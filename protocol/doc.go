// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Binary codec for the kdbus kernel command interface: hello and send command
// buffers on the way out, bounds-checked item-chain decoding of kernel
// messages inside the mapped receive pool on the way in.
//
// All multi-byte fields are little-endian 64-bit values and every item
// boundary is 8-byte aligned. The decoder never trusts a kernel-declared size
// without clamping it against the declared message extent and the pool extent.
package protocol

// Package pool
// Author: momentics <momentics@gmail.com>
//
// Scratch-buffer pooling for hioload-mq.
// Receive paths borrow fixed-size chunks here instead of allocating per
// message; see bytepool.go for the implementation.
package pool

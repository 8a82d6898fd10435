// Package api defines the contracts shared by the controller and worker loops.
package api

import "context"

// Transport is one end of a strictly alternating line channel.
//
// SendLine and RecvLine block until the peer has taken its turn. A nil or
// empty line sent by the controller is the termination sentinel. RecvLine
// returns io.EOF when the peer closed a stream transport. SendLine must not
// keep line after it returns.
type Transport interface {
	SendLine(ctx context.Context, line []byte) error
	RecvLine(ctx context.Context) ([]byte, error)
	Close() error
}

// Bounded is implemented by transports whose lines have a fixed capacity.
// MaxLine includes the terminator slot, so at most MaxLine()-1 payload
// bytes survive a send.
type Bounded interface {
	MaxLine() int
}

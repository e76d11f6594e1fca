// Package fakes provides test doubles for the dialog engine's transport
// collaborators.
package fakes

import (
	"sync/atomic"
	"time"
)

// Connection is a fake transport connection. T1 configures the interval
// returned to the dialog engine; reference counts are observable.
type Connection struct {
	T1   time.Duration
	refs int32
}

func (c *Connection) Ref() {
	atomic.AddInt32(&c.refs, 1)
}

func (c *Connection) Unref() {
	atomic.AddInt32(&c.refs, -1)
}

func (c *Connection) Timer1() time.Duration {
	return c.T1
}

// Refs returns the current reference count.
func (c *Connection) Refs() int {
	return int(atomic.LoadInt32(&c.refs))
}

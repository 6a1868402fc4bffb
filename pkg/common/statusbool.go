package common

import (
	"sync/atomic"
	"time"
)

// StatusBool is simple go routine synchronization with timeout. it is not in the critical path,
// the alternative using channels allows the go routine to leak if the reader times out before
// the sender writes
type StatusBool struct {
	b atomic.Bool
}

func (sb *StatusBool) WaitForTrue(timeout time.Duration) bool {
	return sb.waitFor(true, timeout)
}
func (sb *StatusBool) WaitForFalse(timeout time.Duration) bool {
	return sb.waitFor(false, timeout)
}

func (sb *StatusBool) waitFor(value bool, timeout time.Duration) bool {
	expires := time.Now().Add(timeout)
	for sb.b.Load() != value {
		if time.Now().After(expires) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}

func (sb *StatusBool) SetTrue() {
	sb.b.Store(true)
}
func (sb *StatusBool) SetFalse() {
	sb.b.Store(false)
}
func (sb *StatusBool) IsTrue() bool {
	return sb.b.Load()
}

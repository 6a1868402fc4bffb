package twime

import (
	"sync/atomic"
)

const readBufferSize = 64 * 1024

type node struct {
	data []byte
	next *node
}

// bufferPool is a lock-free stack of read buffers. The reader goroutine takes a buffer per read and the session
// goroutine returns it once the bytes are copied into its pending buffer.
type bufferPool struct {
	head atomic.Pointer[node]
}

func (p *bufferPool) put(data []byte) {
	n := &node{data: data[:cap(data)]}
	for {
		n.next = p.head.Load()
		if p.head.CompareAndSwap(n.next, n) {
			return
		}
	}
}

func (p *bufferPool) get() []byte {
	for {
		head := p.head.Load()
		if head == nil {
			return make([]byte, readBufferSize)
		}
		if p.head.CompareAndSwap(head, head.next) {
			return head.data
		}
	}
}

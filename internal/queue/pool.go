package queue

import "sync"

// stagingPool hands out fixed-size byte buffers used to batch cells
// before a single copy into the reader's buffer,
// amortizing the per-cell copy cost.
var stagingPool = sync.Pool{
	New: func() any {
		b := make([]byte, stagingBufferSize)
		return &b
	},
}

const stagingBufferSize = 256

// GetStagingBuffer returns a pooled buffer sized for batching queue
// transfers. Callers must call PutStagingBuffer when done.
func GetStagingBuffer() []byte {
	return (*stagingPool.Get().(*[]byte))[:0]
}

// PutStagingBuffer returns buf to the pool.
func PutStagingBuffer(buf []byte) {
	buf = buf[:stagingBufferSize]
	stagingPool.Put(&buf)
}

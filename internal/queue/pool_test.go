package queue

import "testing"

func TestStagingBuffer_ReuseAndReset(t *testing.T) {
	buf := GetStagingBuffer()
	if len(buf) != 0 {
		t.Fatalf("GetStagingBuffer returned len=%d, want 0", len(buf))
	}
	if cap(buf) != stagingBufferSize {
		t.Fatalf("GetStagingBuffer returned cap=%d, want %d", cap(buf), stagingBufferSize)
	}

	buf = append(buf, 'h', 'i')
	PutStagingBuffer(buf)

	buf2 := GetStagingBuffer()
	if len(buf2) != 0 {
		t.Fatalf("buffer returned to pool should reset length, got %d", len(buf2))
	}
}

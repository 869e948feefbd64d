package transport

import (
	"fmt"

	"github.com/go-cql/driver/frame"
)

// maxStreams bounds the number of concurrently in-flight requests on a
// single connection. Protocol v1-v2 only has an i8 stream id (128 values);
// v3+ widens it to i16 (32768), but we keep every connection at the lower
// bound so a downgraded connection never hands out a stream id the server
// can't address.
const maxStreams = 128

// streamIDAllocator hands out small integer stream ids and reclaims them,
// tracked with a plain bitmap. It is not safe for concurrent use on its
// own; callers (connReader) guard it with a mutex.
type streamIDAllocator struct {
	used [maxStreams / 64]uint64
	next int
}

func (s *streamIDAllocator) Alloc() (frame.StreamID, error) {
	for i := 0; i < maxStreams; i++ {
		id := (s.next + i) % maxStreams
		word, bit := id/64, uint(id%64)
		if s.used[word]&(1<<bit) == 0 {
			s.used[word] |= 1 << bit
			s.next = (id + 1) % maxStreams
			return frame.StreamID(id), nil
		}
	}
	return 0, fmt.Errorf("no free stream ids: all %d in use", maxStreams)
}

func (s *streamIDAllocator) Free(id frame.StreamID) {
	word, bit := int(id)/64, uint(int(id)%64)
	s.used[word] &^= 1 << bit
}

func (s *streamIDAllocator) InUse() int {
	n := 0
	for _, w := range s.used {
		for w != 0 {
			n++
			w &= w - 1
		}
	}
	return n
}

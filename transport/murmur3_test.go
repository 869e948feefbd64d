package transport

import "testing"

// Known-answer vectors for Murmur3Partitioner, cross-checked against the
// values Cassandra/Scylla produce for the same inputs.
func TestMurmurToken(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		data []byte
		want Token
	}{
		{name: "empty", data: []byte{}, want: 0},
		{name: "single byte", data: []byte{0x00}, want: 5048724184180415669},
		{name: "short ascii", data: []byte("abc"), want: -5434086359492102041},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := MurmurToken(tc.data)
			if got != tc.want {
				t.Fatalf("MurmurToken(%q) = %d, want %d", tc.data, got, tc.want)
			}
		})
	}
}

func TestMurmurTokenDeterministic(t *testing.T) {
	t.Parallel()
	data := []byte("partition-key-0123456789")
	first := MurmurToken(data)
	for i := 0; i < 10; i++ {
		if got := MurmurToken(data); got != first {
			t.Fatalf("MurmurToken not deterministic: got %d, want %d", got, first)
		}
	}
}

func TestMurmurTokenNeverReturnsMinToken(t *testing.T) {
	t.Parallel()
	// minToken is reserved as the ring's lower bound; MurmurToken nudges any
	// hash landing exactly there inward by one.
	for i := 0; i < 1<<12; i++ {
		data := []byte{byte(i), byte(i >> 8), byte(i >> 4)}
		if tok := MurmurToken(data); tok == minToken {
			t.Fatalf("MurmurToken(%v) returned reserved minToken", data)
		}
	}
}

package transport

import "testing"

func TestShardForTokenInRange(t *testing.T) {
	t.Parallel()
	shards := 4
	tokens := []Token{minToken, maxToken, 0, 1, -1, 1 << 40, -(1 << 40)}
	for _, tok := range tokens {
		s := shardForToken(tok, shards)
		if s < 0 || s >= shards {
			t.Fatalf("shardForToken(%d, %d) = %d, want a value in [0, %d)", tok, shards, s, shards)
		}
	}
}

func TestShardForTokenDeterministic(t *testing.T) {
	t.Parallel()
	tok := Token(123456789)
	first := shardForToken(tok, 8)
	for i := 0; i < 5; i++ {
		if got := shardForToken(tok, 8); got != first {
			t.Fatalf("shardForToken is not deterministic: got %d, want %d", got, first)
		}
	}
}

func TestPoolConfigCoreConnections(t *testing.T) {
	t.Parallel()
	cfg := DefaultPoolConfig()

	if got := cfg.coreConnections(Local); got != cfg.LocalDCCore {
		t.Fatalf("coreConnections(Local) = %d, want %d", got, cfg.LocalDCCore)
	}
	if got := cfg.coreConnections(Remote); got != cfg.RemoteDCCore {
		t.Fatalf("coreConnections(Remote) = %d, want %d", got, cfg.RemoteDCCore)
	}
	if got := cfg.coreConnections(Ignored); got != 0 {
		t.Fatalf("coreConnections(Ignored) = %d, want 0", got)
	}
}

package transport

import "testing"

func ringOf(tokens ...Token) Ring {
	r := make(Ring, len(tokens))
	for i, t := range tokens {
		r[i] = RingEntry{node: &Node{addr: string(rune('a' + i))}, token: t}
	}
	return r
}

func TestSimpleReplicasWalksClockwise(t *testing.T) {
	t.Parallel()
	ring := ringOf(0, 100, 200, 300)
	replicas := simpleReplicas(ring, 50, 2)

	if len(replicas) != 2 {
		t.Fatalf("len(replicas) = %d, want 2", len(replicas))
	}
	if replicas[0].addr != "b" || replicas[1].addr != "c" {
		t.Fatalf("replicas = [%s %s], want [b c] starting at the first token >= 50", replicas[0].addr, replicas[1].addr)
	}
}

func TestSimpleReplicasWrapsAround(t *testing.T) {
	t.Parallel()
	ring := ringOf(0, 100, 200)
	replicas := simpleReplicas(ring, 250, 2)

	if len(replicas) != 2 || replicas[0].addr != "a" || replicas[1].addr != "b" {
		t.Fatalf("replicas = %v, want the ring to wrap back to [a b]", addrs(replicas))
	}
}

func TestSimpleReplicasDefaultsRFToOne(t *testing.T) {
	t.Parallel()
	ring := ringOf(0, 100)
	replicas := simpleReplicas(ring, 0, 0)
	if len(replicas) != 1 {
		t.Fatalf("len(replicas) = %d, want 1 when rf<=0 defaults to 1", len(replicas))
	}
}

func TestMetadataReplicasCachesPerToken(t *testing.T) {
	t.Parallel()
	m := newMetadata()
	ks := &KeyspaceMetadata{
		Name:            "ks",
		StrategyClass:   "SimpleStrategy",
		StrategyOptions: map[string]string{"replication_factor": "1"},
	}
	m.Keyspaces["ks"] = ks
	m.Ring = ringOf(0, 100)

	first := m.Replicas("ks", 50)
	if len(first) != 1 {
		t.Fatalf("len(first) = %d, want 1", len(first))
	}
	if ks.replicasCache[50] == nil {
		t.Fatal("Replicas should populate replicasCache for the computed token")
	}

	second := m.Replicas("ks", 50)
	if &first[0] != &second[0] {
		t.Fatal("a second Replicas call for the same token should return the cached slice, not recompute it")
	}
}

func TestMetadataReplicasUnknownKeyspace(t *testing.T) {
	t.Parallel()
	m := newMetadata()
	m.Ring = ringOf(0, 100)
	if got := m.Replicas("missing", 50); got != nil {
		t.Fatalf("Replicas for an unknown keyspace = %v, want nil", got)
	}
}

func TestNetworkTopologyReplicasPerDC(t *testing.T) {
	t.Parallel()
	ring := Ring{
		{node: &Node{addr: "dc1-a", datacenter: "dc1", rack: "r1"}, token: 0},
		{node: &Node{addr: "dc2-a", datacenter: "dc2", rack: "r1"}, token: 50},
		{node: &Node{addr: "dc1-b", datacenter: "dc1", rack: "r2"}, token: 100},
		{node: &Node{addr: "dc2-b", datacenter: "dc2", rack: "r2"}, token: 150},
	}

	replicas := networkTopologyReplicas(ring, 10, map[string]string{"dc1": "2", "dc2": "1"})

	var dc1, dc2 int
	for _, n := range replicas {
		switch n.datacenter {
		case "dc1":
			dc1++
		case "dc2":
			dc2++
		}
	}
	if dc1 != 2 {
		t.Fatalf("dc1 replica count = %d, want 2", dc1)
	}
	if dc2 != 1 {
		t.Fatalf("dc2 replica count = %d, want 1", dc2)
	}
}

func addrs(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.addr
	}
	return out
}

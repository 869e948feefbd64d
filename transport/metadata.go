package transport

import (
	"sort"
	"strconv"
)

// TableMetadata is the union shape spec.md asks for: regardless of which
// system_schema row version it was built from, every table exposes the
// same partition/clustering/column breakdown.
type TableMetadata struct {
	Keyspace      string
	Name          string
	PartitionKey  []string
	ClusteringKey []string
	Columns       map[string]ColumnMetadata
}

type ColumnMetadata struct {
	Name string
	Type string
	Kind string // partition_key, clustering, regular, static
}

// KeyspaceMetadata describes one keyspace's replication strategy and the
// catalog objects inside it.
type KeyspaceMetadata struct {
	Name            string
	StrategyClass   string
	StrategyOptions map[string]string
	Tables          map[string]*TableMetadata
	Views           map[string]*TableMetadata
	UserTypes       map[string]UserType
	Functions       map[string]struct{}
	Aggregates      map[string]struct{}
	Indexes         map[string]struct{}

	replicasCache map[Token][]*Node
}

type UserType struct {
	Keyspace   string
	Name       string
	FieldNames []string
	FieldTypes []string
}

// Metadata is the driver's view of the cluster's schema and ring. Schema
// and topology refreshes replace its Keyspaces and Ring fields in place.
type Metadata struct {
	Keyspaces map[string]*KeyspaceMetadata
	Ring      Ring
	Tokenizer Tokenizer
}

func newMetadata() *Metadata {
	return &Metadata{Keyspaces: make(map[string]*KeyspaceMetadata)}
}

// Replicas returns the replica set for token in keyspace, computed by the
// keyspace's own replication strategy and cached until the next schema or
// topology refresh invalidates it.
func (m *Metadata) Replicas(keyspace string, token Token) []*Node {
	ks, ok := m.Keyspaces[keyspace]
	if !ok || len(m.Ring) == 0 {
		return nil
	}

	if ks.replicasCache == nil {
		ks.replicasCache = make(map[Token][]*Node)
	}
	if r, ok := ks.replicasCache[token]; ok {
		return r
	}

	var replicas []*Node
	switch ks.StrategyClass {
	case "org.apache.cassandra.locator.NetworkTopologyStrategy", "NetworkTopologyStrategy":
		replicas = networkTopologyReplicas(m.Ring, token, ks.StrategyOptions)
	default:
		rf, _ := strconv.Atoi(ks.StrategyOptions["replication_factor"])
		replicas = simpleReplicas(m.Ring, token, rf)
	}

	ks.replicasCache[token] = replicas
	return replicas
}

// simpleReplicas implements SimpleStrategy: walk the ring clockwise from
// token's owner, taking the first rf distinct nodes.
func simpleReplicas(ring Ring, token Token, rf int) []*Node {
	if rf <= 0 {
		rf = 1
	}
	it := &replicaIter{ring: ring, offset: ring.tokenLowerBound(token)}
	seen := make(map[*Node]bool, rf)
	var out []*Node
	for len(out) < rf {
		n := it.Next()
		if n == nil {
			break
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// networkTopologyReplicas implements NetworkTopologyStrategy: per
// datacenter, walk the ring clockwise picking distinct racks first and only
// falling back to a repeated rack once every rack in that DC has
// contributed at least one replica (the rack-repeat-deferral rule).
func networkTopologyReplicas(ring Ring, token Token, dcRF map[string]string) []*Node {
	rfByDC := make(map[string]int, len(dcRF))
	for dc, v := range dcRF {
		if dc == "class" {
			continue
		}
		n, _ := strconv.Atoi(v)
		rfByDC[dc] = n
	}

	racksInDC := make(map[string]map[string]bool)
	for _, e := range ring {
		dc := e.node.datacenter
		if racksInDC[dc] == nil {
			racksInDC[dc] = make(map[string]bool)
		}
		racksInDC[dc][e.node.rack] = true
	}

	it := &replicaIter{ring: ring, offset: ring.tokenLowerBound(token)}
	seenNode := make(map[*Node]bool)
	perDC := make(map[string][]*Node)
	racksDone := make(map[string]map[string]bool)
	skippedSameRack := make(map[string][]*Node)

	total := 0
	wantTotal := 0
	for _, rf := range rfByDC {
		wantTotal += rf
	}

	for total < wantTotal {
		n := it.Next()
		if n == nil {
			break
		}
		if seenNode[n] {
			continue
		}
		dc := n.datacenter
		rf := rfByDC[dc]
		if rf == 0 || len(perDC[dc]) >= rf {
			continue
		}

		if racksDone[dc] == nil {
			racksDone[dc] = make(map[string]bool)
		}

		allRacksDone := len(racksDone[dc]) >= len(racksInDC[dc])
		if !racksDone[dc][n.rack] || allRacksDone {
			seenNode[n] = true
			perDC[dc] = append(perDC[dc], n)
			racksDone[dc][n.rack] = true
			total++
		} else {
			skippedSameRack[dc] = append(skippedSameRack[dc], n)
		}

		if len(racksDone[dc]) >= len(racksInDC[dc]) {
			for _, skipped := range skippedSameRack[dc] {
				if len(perDC[dc]) >= rf {
					break
				}
				if seenNode[skipped] {
					continue
				}
				seenNode[skipped] = true
				perDC[dc] = append(perDC[dc], skipped)
				total++
			}
			skippedSameRack[dc] = nil
		}
	}

	dcs := make([]string, 0, len(perDC))
	for dc := range perDC {
		dcs = append(dcs, dc)
	}
	sort.Strings(dcs)

	var out []*Node
	for _, dc := range dcs {
		out = append(out, perDC[dc]...)
	}
	return out
}

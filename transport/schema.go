package transport

import (
	"context"
	"fmt"

	"github.com/go-cql/driver/frame"
)

// refreshSchema rebuilds Metadata.Keyspaces from system_schema, the
// modern (3.0+) catalog shape. Clusters old enough to only expose the
// legacy system.schema_keyspaces/schema_columnfamilies/schema_columns
// thrift-era tables are out of scope: every node this driver's prepared-
// metadata flags (GlobalTablesSpec, v4 paging) target already ships
// system_schema, so there is no second row-shape to normalize against.
func (c *Cluster) refreshSchema(ctx context.Context) error {
	conn, err := c.anyConn()
	if err != nil {
		return fmt.Errorf("refresh schema: %w", err)
	}

	keyspaces := make(map[string]*KeyspaceMetadata)

	ksRes, err := conn.Query(ctx, Statement{
		Content:     "SELECT keyspace_name, replication FROM system_schema.keyspaces",
		Consistency: frame.ONE,
	}, nil)
	if err != nil {
		return fmt.Errorf("query system_schema.keyspaces: %w", err)
	}
	for _, row := range ksRes.Rows {
		if len(row) < 2 {
			continue
		}
		name, _ := row[0].AsString()
		opts := decodeTextMap(row[1])
		ks := &KeyspaceMetadata{
			Name:            name,
			StrategyOptions: opts,
			Tables:          make(map[string]*TableMetadata),
			Views:           make(map[string]*TableMetadata),
			UserTypes:       make(map[string]UserType),
			Functions:       make(map[string]struct{}),
			Aggregates:      make(map[string]struct{}),
			Indexes:         make(map[string]struct{}),
		}
		ks.StrategyClass = opts["class"]
		keyspaces[name] = ks
	}

	tblRes, err := conn.Query(ctx, Statement{
		Content:     "SELECT keyspace_name, table_name FROM system_schema.tables",
		Consistency: frame.ONE,
	}, nil)
	if err != nil {
		return fmt.Errorf("query system_schema.tables: %w", err)
	}
	for _, row := range tblRes.Rows {
		if len(row) < 2 {
			continue
		}
		ksName, _ := row[0].AsString()
		tblName, _ := row[1].AsString()
		ks, ok := keyspaces[ksName]
		if !ok {
			continue
		}
		ks.Tables[tblName] = &TableMetadata{
			Keyspace: ksName,
			Name:     tblName,
			Columns:  make(map[string]ColumnMetadata),
		}
	}

	colRes, err := conn.Query(ctx, Statement{
		Content:     "SELECT keyspace_name, table_name, column_name, type, kind, position FROM system_schema.columns",
		Consistency: frame.ONE,
	}, nil)
	if err != nil {
		return fmt.Errorf("query system_schema.columns: %w", err)
	}
	for _, row := range colRes.Rows {
		if len(row) < 6 {
			continue
		}
		ksName, _ := row[0].AsString()
		tblName, _ := row[1].AsString()
		ks, ok := keyspaces[ksName]
		if !ok {
			continue
		}
		tbl, ok := ks.Tables[tblName]
		if !ok {
			continue
		}
		colName, _ := row[2].AsString()
		typ, _ := row[3].AsString()
		kind, _ := row[4].AsString()
		pos, _ := row[5].AsInt64()

		tbl.Columns[colName] = ColumnMetadata{Name: colName, Type: typ, Kind: kind}
		switch kind {
		case "partition_key":
			tbl.PartitionKey = insertAt(tbl.PartitionKey, int(pos), colName)
		case "clustering":
			tbl.ClusteringKey = insertAt(tbl.ClusteringKey, int(pos), colName)
		}
	}

	c.mu.Lock()
	c.metadata.Keyspaces = keyspaces
	c.mu.Unlock()
	return nil
}

func insertAt(s []string, pos int, v string) []string {
	for len(s) <= pos {
		s = append(s, "")
	}
	s[pos] = v
	return s
}

// decodeTextMap decodes a CQL map<text,text> column (the shape of
// system_schema.keyspaces.replication) into a plain Go map.
func decodeTextMap(v frame.Value) map[string]string {
	out := make(map[string]string)
	if v.IsNull() || v.IsUnset() || v.Type == nil {
		return out
	}
	b := v.Bytes
	if len(b) < 4 {
		return out
	}
	n := int(frame.Int(b[0])<<24 | frame.Int(b[1])<<16 | frame.Int(b[2])<<8 | frame.Int(b[3]))
	off := 4
	for i := 0; i < n && off+4 <= len(b); i++ {
		kl := int(frame.Int(b[off])<<24 | frame.Int(b[off+1])<<16 | frame.Int(b[off+2])<<8 | frame.Int(b[off+3]))
		off += 4
		if off+kl > len(b) {
			break
		}
		key := string(b[off : off+kl])
		off += kl

		if off+4 > len(b) {
			break
		}
		vl := int(frame.Int(b[off])<<24 | frame.Int(b[off+1])<<16 | frame.Int(b[off+2])<<8 | frame.Int(b[off+3]))
		off += 4
		if off+vl > len(b) {
			break
		}
		val := string(b[off : off+vl])
		off += vl

		out[key] = val
	}
	return out
}

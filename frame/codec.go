package frame

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"net"
	"strconv"
	"strings"
	"time"

	infdec "gopkg.in/inf.v0"
)

// ReadOption decodes an [option]: a type id short followed by any
// type-specific payload (element type for list/set, key+value types for
// map, class name for custom, keyspace/name/field list for udt, element
// count+types for tuple).
func ReadOption(buf *Buffer) Option {
	id := OptionID(buf.ReadShort())
	opt := Option{ID: id}
	switch id {
	case CustomID:
		opt.Custom = buf.ReadString()
	case ListID, SetID:
		elem := ReadOption(buf)
		opt.List = &ListOption{Element: elem}
	case MapID:
		k := ReadOption(buf)
		v := ReadOption(buf)
		opt.Map = &MapOption{Key: k, Value: v}
	case UDTID:
		ks := buf.ReadString()
		name := buf.ReadString()
		n := buf.ReadShort()
		fieldNames := make([]string, n)
		fieldTypes := make([]Option, n)
		for i := range fieldNames {
			fieldNames[i] = buf.ReadString()
			fieldTypes[i] = ReadOption(buf)
		}
		opt.UDT = &UDTOption{Keyspace: ks, Name: name, FieldNames: fieldNames, FieldTypes: fieldTypes}
	case TupleID:
		n := buf.ReadShort()
		elems := make([]Option, n)
		for i := range elems {
			elems[i] = ReadOption(buf)
		}
		opt.Tuple = &TupleOption{Elements: elems}
	}
	return opt
}

// Marshal encodes a Go value into the wire bytes for the given CQL type.
// It is the concrete implementation backing Query.Bind's Serializable
// contract for plain Go types; custom types implement Serializable
// themselves instead of going through Marshal.
func Marshal(opt *Option, v interface{}) (Int, []byte, error) {
	if v == nil {
		return -1, nil, nil
	}
	if u, ok := v.(unsettable); ok && u.isUnset() {
		return -2, nil, nil
	}

	switch opt.ID {
	case AsciiID, TextID, VarcharID:
		s, ok := v.(string)
		if !ok {
			return 0, nil, typeError(opt, v)
		}
		return Int(len(s)), []byte(s), nil
	case BooleanID:
		b, ok := v.(bool)
		if !ok {
			return 0, nil, typeError(opt, v)
		}
		if b {
			return 1, []byte{1}, nil
		}
		return 1, []byte{0}, nil
	case TinyIntID:
		n, err := asInt64(v)
		if err != nil {
			return 0, nil, err
		}
		return 1, []byte{byte(int8(n))}, nil
	case SmallIntID:
		n, err := asInt64(v)
		if err != nil {
			return 0, nil, err
		}
		b := make([]byte, 2)
		byteOrder.PutUint16(b, uint16(int16(n)))
		return 2, b, nil
	case IntID, DateID:
		n, err := asInt64(v)
		if err != nil {
			return 0, nil, err
		}
		b := make([]byte, 4)
		byteOrder.PutUint32(b, uint32(int32(n)))
		return 4, b, nil
	case BigintID, CounterID, TimeID:
		n, err := asInt64(v)
		if err != nil {
			return 0, nil, err
		}
		b := make([]byte, 8)
		byteOrder.PutUint64(b, uint64(n))
		return 8, b, nil
	case TimestampID:
		ms, err := asTimestampMillis(v)
		if err != nil {
			return 0, nil, err
		}
		b := make([]byte, 8)
		byteOrder.PutUint64(b, uint64(ms))
		return 8, b, nil
	case FloatID:
		f, err := asFloat64(v)
		if err != nil {
			return 0, nil, err
		}
		b := make([]byte, 4)
		byteOrder.PutUint32(b, math.Float32bits(float32(f)))
		return 4, b, nil
	case DoubleID:
		f, err := asFloat64(v)
		if err != nil {
			return 0, nil, err
		}
		b := make([]byte, 8)
		byteOrder.PutUint64(b, math.Float64bits(f))
		return 8, b, nil
	case BlobID, CustomID:
		b, ok := v.([]byte)
		if !ok {
			return 0, nil, typeError(opt, v)
		}
		return Int(len(b)), b, nil
	case UUIDID, TimeUUIDID:
		u, ok := v.(UUID)
		if !ok {
			return 0, nil, typeError(opt, v)
		}
		buf := make([]byte, 16)
		copy(buf, u[:])
		return 16, buf, nil
	case VarintID:
		bi, err := asBigInt(v)
		if err != nil {
			return 0, nil, err
		}
		b := encodeVarint(bi)
		return Int(len(b)), b, nil
	case DecimalID:
		d, ok := v.(*infdec.Dec)
		if !ok {
			return 0, nil, typeError(opt, v)
		}
		b := encodeDecimal(d)
		return Int(len(b)), b, nil
	case InetID:
		inet, err := asInet(v)
		if err != nil {
			return 0, nil, err
		}
		return Int(len(inet.IP)), inet.IP, nil
	case DurationID:
		d, ok := v.(Duration)
		if !ok {
			return 0, nil, typeError(opt, v)
		}
		b := encodeDuration(d)
		return Int(len(b)), b, nil
	case ListID, SetID:
		return marshalCollection(opt, v)
	case MapID:
		return marshalMap(opt, v)
	case TupleID:
		return marshalTuple(opt, v)
	case UDTID:
		return marshalUDT(opt, v)
	default:
		return 0, nil, fmt.Errorf("marshal: unsupported type %s", opt.ID)
	}
}

// Unmarshal decodes wire bytes of the given CQL type into dst, which must
// be a pointer to a compatible Go type.
func Unmarshal(opt *Option, data []byte, dst interface{}) error {
	if data == nil {
		return nil
	}
	switch d := dst.(type) {
	case *string:
		*d = string(data)
	case *bool:
		*d = len(data) > 0 && data[0] != 0
	case *int8:
		*d = int8(data[0])
	case *int16:
		*d = int16(byteOrder.Uint16(data))
	case *int32:
		*d = int32(byteOrder.Uint32(data))
	case *int64:
		*d = int64(byteOrder.Uint64(data))
	case *int:
		switch len(data) {
		case 4:
			*d = int(int32(byteOrder.Uint32(data)))
		case 8:
			*d = int(int64(byteOrder.Uint64(data)))
		default:
			return fmt.Errorf("unmarshal int: unexpected width %d", len(data))
		}
	case *float32:
		*d = math.Float32frombits(byteOrder.Uint32(data))
	case *float64:
		*d = math.Float64frombits(byteOrder.Uint64(data))
	case *[]byte:
		*d = append([]byte(nil), data...)
	case *UUID:
		copy(d[:], data)
	case *time.Time:
		ms := int64(byteOrder.Uint64(data))
		*d = time.UnixMilli(ms).UTC()
	case *net.IP:
		*d = net.IP(append([]byte(nil), data...))
	case *big.Int:
		d.SetBytes(nil)
		decodeVarint(data, d)
	case *Duration:
		*d = decodeDuration(data)
	case **infdec.Dec:
		dec, err := decodeDecimal(data)
		if err != nil {
			return err
		}
		*d = dec
	default:
		return fmt.Errorf("unmarshal: unsupported destination %T", dst)
	}
	return nil
}

// --- Value helpers ---

// Unmarshal decodes v's raw bytes into dst using v's recorded type.
func (v Value) Unmarshal(dst interface{}) error {
	if v.IsNull() || v.IsUnset() {
		return nil
	}
	if v.Type == nil {
		return fmt.Errorf("unmarshal: value has no recorded type")
	}
	return Unmarshal(v.Type, v.Bytes, dst)
}

// AsUUID decodes v as a uuid/timeuuid column.
func (v Value) AsUUID() (UUID, error) {
	var u UUID
	if v.IsNull() {
		return u, nil
	}
	if len(v.Bytes) != 16 {
		return u, fmt.Errorf("as uuid: expected 16 bytes, got %d", len(v.Bytes))
	}
	copy(u[:], v.Bytes)
	return u, nil
}

// AsString decodes v as a text/ascii/varchar column.
func (v Value) AsString() (string, error) {
	if v.IsNull() {
		return "", nil
	}
	return string(v.Bytes), nil
}

// AsInt64 decodes v as any fixed-width signed integer column.
func (v Value) AsInt64() (int64, error) {
	if v.IsNull() {
		return 0, nil
	}
	switch len(v.Bytes) {
	case 1:
		return int64(int8(v.Bytes[0])), nil
	case 2:
		return int64(int16(byteOrder.Uint16(v.Bytes))), nil
	case 4:
		return int64(int32(byteOrder.Uint32(v.Bytes))), nil
	case 8:
		return int64(byteOrder.Uint64(v.Bytes)), nil
	default:
		return 0, fmt.Errorf("as int64: unexpected width %d", len(v.Bytes))
	}
}

// --- type coercion helpers ---

type unsettable interface{ isUnset() bool }

// unsetValue is the Marshal-recognized sentinel for protocol v4+'s "unset"
// bind-marker value; frame.Unset is the value callers pass to Query.Bind
// to mean "leave this column untouched" rather than overwriting it with
// null.
type unsetValue struct{}

func (unsetValue) isUnset() bool { return true }

// Unset, when bound to a prepared statement parameter, is written as the
// v4+ unset marker (length -2) instead of null (length -1): Cassandra
// leaves the column untouched rather than tombstoning it.
var Unset = unsetValue{}

func typeError(opt *Option, v interface{}) error {
	return fmt.Errorf("cannot marshal %T as %s", v, opt.ID)
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("cannot marshal %T as integer", v)
	}
}

func asFloat64(v interface{}) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	default:
		return 0, fmt.Errorf("cannot marshal %T as float", v)
	}
}

func asTimestampMillis(v interface{}) (int64, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli(), nil
	case int64:
		return t, nil
	default:
		return 0, fmt.Errorf("cannot marshal %T as timestamp", v)
	}
}

func asBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case int64:
		return big.NewInt(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	default:
		return nil, fmt.Errorf("cannot marshal %T as varint", v)
	}
}

func asInet(v interface{}) (Inet, error) {
	switch ip := v.(type) {
	case net.IP:
		if v4 := ip.To4(); v4 != nil {
			return Inet{IP: v4}, nil
		}
		return Inet{IP: ip.To16()}, nil
	case Inet:
		return ip, nil
	default:
		return Inet{}, fmt.Errorf("cannot marshal %T as inet", v)
	}
}

// --- varint (two's complement, big-endian, minimal length) ---

func encodeVarint(n *big.Int) []byte {
	if n.Sign() == 0 {
		return []byte{0}
	}
	if n.Sign() > 0 {
		b := n.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}
	// Two's complement encoding of a negative number: ~(-n-1).
	pos := new(big.Int).Add(n, big.NewInt(1))
	pos.Neg(pos)
	b := pos.Bytes()
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ^c
	}
	if len(out) == 0 || out[0]&0x80 == 0 {
		out = append([]byte{0xFF}, out...)
	}
	return out
}

func decodeVarint(data []byte, dst *big.Int) {
	if len(data) == 0 {
		dst.SetInt64(0)
		return
	}
	if data[0]&0x80 == 0 {
		dst.SetBytes(data)
		return
	}
	inv := make([]byte, len(data))
	for i, c := range data {
		inv[i] = ^c
	}
	dst.SetBytes(inv)
	dst.Add(dst, big.NewInt(1))
	dst.Neg(dst)
}

// --- decimal: [int] scale followed by a varint unscaled value ---

func encodeDecimal(d *infdec.Dec) []byte {
	scale := d.Scale()
	unscaled := d.UnscaledBig()
	vb := encodeVarint(unscaled)
	out := make([]byte, 4+len(vb))
	byteOrder.PutUint32(out, uint32(int32(scale)))
	copy(out[4:], vb)
	return out
}

func decodeDecimal(data []byte) (*infdec.Dec, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("decode decimal: short buffer")
	}
	scale := int32(byteOrder.Uint32(data[:4]))
	var unscaled big.Int
	decodeVarint(data[4:], &unscaled)
	return infdec.NewDecBig(&unscaled, infdec.Scale(scale)), nil
}

// --- duration: three signed zigzag varints (months, days, nanoseconds) ---

func encodeDuration(d Duration) []byte {
	var buf bytes.Buffer
	writeZigzagVarint(&buf, int64(d.Months))
	writeZigzagVarint(&buf, int64(d.Days))
	writeZigzagVarint(&buf, d.Nanoseconds)
	return buf.Bytes()
}

func decodeDuration(data []byte) Duration {
	r := bytes.NewReader(data)
	months := readZigzagVarint(r)
	days := readZigzagVarint(r)
	nanos := readZigzagVarint(r)
	return Duration{Months: int32(months), Days: int32(days), Nanoseconds: nanos}
}

func writeZigzagVarint(buf *bytes.Buffer, v int64) {
	u := uint64((v << 1) ^ (v >> 63))
	for u >= 0x80 {
		buf.WriteByte(byte(u) | 0x80)
		u >>= 7
	}
	buf.WriteByte(byte(u))
}

func readZigzagVarint(r *bytes.Reader) int64 {
	var u uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0
		}
		u |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return int64(u>>1) ^ -int64(u&1)
}

// ParseDuration parses the CQL duration literal grammar, e.g.
// "1y2mo3d4h5m6s7ms8us9ns" or "-1y2mo3d".
func ParseDuration(s string) (Duration, error) {
	if s == "" {
		return Duration{}, fmt.Errorf("parse duration: empty string")
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}

	var d Duration
	var num strings.Builder
	flush := func(unit string) error {
		if num.Len() == 0 {
			return fmt.Errorf("parse duration: unit %q without a number", unit)
		}
		n, err := strconv.ParseInt(num.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		num.Reset()
		switch unit {
		case "y":
			d.Months += int32(n) * 12
		case "mo":
			d.Months += int32(n)
		case "w":
			d.Days += int32(n) * 7
		case "d":
			d.Days += int32(n)
		case "h":
			d.Nanoseconds += n * int64(time.Hour)
		case "m":
			d.Nanoseconds += n * int64(time.Minute)
		case "s":
			d.Nanoseconds += n * int64(time.Second)
		case "ms":
			d.Nanoseconds += n * int64(time.Millisecond)
		case "us", "µs":
			d.Nanoseconds += n * int64(time.Microsecond)
		case "ns":
			d.Nanoseconds += n
		default:
			return fmt.Errorf("parse duration: unknown unit %q", unit)
		}
		return nil
	}

	i := 0
	for i < len(s) {
		c := s[i]
		if c >= '0' && c <= '9' {
			num.WriteByte(c)
			i++
			continue
		}
		j := i
		for j < len(s) && (s[j] < '0' || s[j] > '9') {
			j++
		}
		unit := s[i:j]
		if err := flush(unit); err != nil {
			return Duration{}, err
		}
		i = j
	}
	if num.Len() > 0 {
		return Duration{}, fmt.Errorf("parse duration: trailing number %q with no unit", num.String())
	}

	if neg {
		d.Months, d.Days, d.Nanoseconds = -d.Months, -d.Days, -d.Nanoseconds
	}
	return d, nil
}

func (d Duration) String() string {
	if d.Months == 0 && d.Days == 0 && d.Nanoseconds == 0 {
		return "0s"
	}
	neg := d.Months < 0 || d.Days < 0 || d.Nanoseconds < 0
	months, days, nanos := d.Months, d.Days, d.Nanoseconds
	if neg {
		months, days, nanos = -months, -days, -nanos
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	years := months / 12
	months %= 12
	if years != 0 {
		fmt.Fprintf(&b, "%dy", years)
	}
	if months != 0 {
		fmt.Fprintf(&b, "%dmo", months)
	}
	if days != 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	units := []struct {
		n    int64
		unit string
	}{
		{int64(time.Hour), "h"},
		{int64(time.Minute), "m"},
		{int64(time.Second), "s"},
		{int64(time.Millisecond), "ms"},
		{int64(time.Microsecond), "us"},
		{1, "ns"},
	}
	for _, u := range units {
		if v := nanos / u.n; v != 0 {
			fmt.Fprintf(&b, "%d%s", v, u.unit)
			nanos -= v * u.n
		}
	}
	return b.String()
}

func marshalCollection(opt *Option, v interface{}) (Int, []byte, error) {
	elem := &opt.List.Element
	items, err := toSlice(v)
	if err != nil {
		return 0, nil, err
	}
	var buf Buffer
	buf.WriteInt(Int(len(items)))
	for _, it := range items {
		n, b, err := Marshal(elem, it)
		if err != nil {
			return 0, nil, err
		}
		if n < 0 {
			return 0, nil, fmt.Errorf("marshal %s: null element not permitted", opt.ID)
		}
		buf.WriteBytes(b)
	}
	return Int(len(buf.Bytes())), buf.Bytes(), nil
}

func marshalMap(opt *Option, v interface{}) (Int, []byte, error) {
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return 0, nil, typeError(opt, v)
	}
	var buf Buffer
	buf.WriteInt(Int(len(m)))
	for k, val := range m {
		kn, kb, err := Marshal(&opt.Map.Key, k)
		if err != nil {
			return 0, nil, err
		}
		if kn < 0 {
			return 0, nil, fmt.Errorf("marshal map: null key not permitted")
		}
		buf.WriteBytes(kb)
		vn, vb, err := Marshal(&opt.Map.Value, val)
		if err != nil {
			return 0, nil, err
		}
		if vn < 0 {
			return 0, nil, fmt.Errorf("marshal map: null value not permitted")
		}
		buf.WriteBytes(vb)
	}
	return Int(len(buf.Bytes())), buf.Bytes(), nil
}

func marshalTuple(opt *Option, v interface{}) (Int, []byte, error) {
	items, err := toSlice(v)
	if err != nil {
		return 0, nil, err
	}
	if len(items) != len(opt.Tuple.Elements) {
		return 0, nil, fmt.Errorf("marshal tuple: expected %d elements, got %d", len(opt.Tuple.Elements), len(items))
	}
	var buf Buffer
	for i, it := range items {
		n, b, err := Marshal(&opt.Tuple.Elements[i], it)
		if err != nil {
			return 0, nil, err
		}
		buf.WriteInt(n)
		if n >= 0 {
			buf.Write(b) //nolint:errcheck
		}
	}
	return Int(len(buf.Bytes())), buf.Bytes(), nil
}

func marshalUDT(opt *Option, v interface{}) (Int, []byte, error) {
	fields, ok := v.(map[string]interface{})
	if !ok {
		return 0, nil, typeError(opt, v)
	}
	var buf Buffer
	for i, name := range opt.UDT.FieldNames {
		fv, present := fields[name]
		if !present {
			buf.WriteInt(-1)
			continue
		}
		n, b, err := Marshal(&opt.UDT.FieldTypes[i], fv)
		if err != nil {
			return 0, nil, err
		}
		buf.WriteInt(n)
		if n >= 0 {
			buf.Write(b) //nolint:errcheck
		}
	}
	return Int(len(buf.Bytes())), buf.Bytes(), nil
}

func toSlice(v interface{}) ([]interface{}, error) {
	switch s := v.(type) {
	case []interface{}:
		return s, nil
	default:
		return nil, fmt.Errorf("cannot marshal %T as a collection", v)
	}
}

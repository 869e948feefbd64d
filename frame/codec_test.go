package frame

import (
	"math/big"
	"net"
	"testing"
	"time"

	infdec "gopkg.in/inf.v0"

	"github.com/google/go-cmp/cmp"
)

// roundTrip marshals v as opt's type, then unmarshals the resulting bytes
// into a fresh zero value of the same shape as dst and returns it.
func roundTrip(t *testing.T, opt *Option, v interface{}, dst interface{}) interface{} {
	t.Helper()
	n, b, err := Marshal(opt, v)
	if err != nil {
		t.Fatalf("Marshal(%v) = %v", v, err)
	}
	if n < 0 {
		t.Fatalf("Marshal(%v) returned a null/unset length %d", v, n)
	}
	if err := Unmarshal(opt, b, dst); err != nil {
		t.Fatalf("Unmarshal(%x) = %v", b, err)
	}
	return dst
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("ascii/text/varchar", func(t *testing.T) {
		t.Parallel()
		for _, id := range []OptionID{AsciiID, TextID, VarcharID} {
			opt := &Option{ID: id}
			var got string
			roundTrip(t, opt, "hello, world", &got)
			if got != "hello, world" {
				t.Fatalf("%s round trip = %q, want %q", id, got, "hello, world")
			}
		}
	})

	t.Run("boolean", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: BooleanID}
		for _, v := range []bool{true, false} {
			var got bool
			roundTrip(t, opt, v, &got)
			if got != v {
				t.Fatalf("boolean round trip = %v, want %v", got, v)
			}
		}
	})

	t.Run("tinyint", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: TinyIntID}
		var got int8
		roundTrip(t, opt, int8(-42), &got)
		if got != -42 {
			t.Fatalf("tinyint round trip = %d, want -42", got)
		}
	})

	t.Run("smallint", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: SmallIntID}
		var got int16
		roundTrip(t, opt, int16(-12345), &got)
		if got != -12345 {
			t.Fatalf("smallint round trip = %d, want -12345", got)
		}
	})

	t.Run("int", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: IntID}
		var got int32
		roundTrip(t, opt, int32(-2147483648), &got)
		if got != -2147483648 {
			t.Fatalf("int round trip = %d, want -2147483648", got)
		}
	})

	t.Run("bigint/counter/time", func(t *testing.T) {
		t.Parallel()
		for _, id := range []OptionID{BigintID, CounterID, TimeID} {
			opt := &Option{ID: id}
			var got int64
			roundTrip(t, opt, int64(-9007199254740993), &got)
			if got != -9007199254740993 {
				t.Fatalf("%s round trip = %d, want -9007199254740993", id, got)
			}
		}
	})

	t.Run("float", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: FloatID}
		var got float32
		roundTrip(t, opt, float32(3.5), &got)
		if got != 3.5 {
			t.Fatalf("float round trip = %v, want 3.5", got)
		}
	})

	t.Run("double", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: DoubleID}
		var got float64
		roundTrip(t, opt, float64(2.71828), &got)
		if got != 2.71828 {
			t.Fatalf("double round trip = %v, want 2.71828", got)
		}
	})

	t.Run("blob", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: BlobID}
		in := []byte{0xDE, 0xAD, 0xBE, 0xEF}
		var got []byte
		roundTrip(t, opt, in, &got)
		if diff := cmp.Diff(got, in); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("uuid", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: UUIDID}
		var in UUID
		for i := range in {
			in[i] = byte(i)
		}
		var got UUID
		roundTrip(t, opt, in, &got)
		if got != in {
			t.Fatalf("uuid round trip = %v, want %v", got, in)
		}
	})

	t.Run("varint", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: VarintID}
		for _, in := range []int64{0, 1, -1, 127, -128, 128, 1 << 40, -(1 << 40)} {
			var got big.Int
			roundTrip(t, opt, big.NewInt(in), &got)
			if got.Int64() != in {
				t.Fatalf("varint round trip(%d) = %v, want %d", in, got.Int64(), in)
			}
		}
	})

	t.Run("decimal", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: DecimalID}
		in := infdec.NewDec(123456789, 4) // 12345.6789
		var got *infdec.Dec
		roundTrip(t, opt, in, &got)
		if got.Cmp(in) != 0 {
			t.Fatalf("decimal round trip = %s, want %s", got, in)
		}
	})

	t.Run("inet v4", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: InetID}
		in := net.ParseIP("192.0.2.1")
		var got net.IP
		roundTrip(t, opt, in, &got)
		if !got.Equal(in) {
			t.Fatalf("inet round trip = %v, want %v", got, in)
		}
	})

	t.Run("inet v6", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: InetID}
		in := net.ParseIP("2001:db8::1")
		var got net.IP
		roundTrip(t, opt, in, &got)
		if !got.Equal(in) {
			t.Fatalf("inet round trip = %v, want %v", got, in)
		}
	})

	t.Run("timestamp", func(t *testing.T) {
		t.Parallel()
		opt := &Option{ID: TimestampID}
		in := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
		var got time.Time
		roundTrip(t, opt, in, &got)
		if !got.Equal(in) {
			t.Fatalf("timestamp round trip = %v, want %v", got, in)
		}
	})
}

// TestDurationRoundTrip covers the CQL duration type's zigzag-varint wire
// encoding (encodeDuration/decodeDuration) through Marshal/Unmarshal, plus
// ParseDuration/String's separate text-literal encoding.
func TestDurationRoundTrip(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		d    Duration
	}{
		{name: "zero", d: Duration{}},
		{name: "positive", d: Duration{Months: 14, Days: 3, Nanoseconds: 12345678900}},
		{name: "negative", d: Duration{Months: -14, Days: -3, Nanoseconds: -12345678900}},
		{name: "nanos only", d: Duration{Nanoseconds: 1}},
		{name: "large months", d: Duration{Months: 1 << 20}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			opt := &Option{ID: DurationID}
			n, b, err := Marshal(opt, tc.d)
			if err != nil {
				t.Fatalf("Marshal(%v) = %v", tc.d, err)
			}
			if int(n) != len(b) {
				t.Fatalf("Marshal length %d != len(bytes) %d", n, len(b))
			}

			var got Duration
			if err := Unmarshal(opt, b, &got); err != nil {
				t.Fatalf("Unmarshal(%x) = %v", b, err)
			}
			if got != tc.d {
				t.Fatalf("duration wire round trip = %+v, want %+v", got, tc.d)
			}
		})
	}
}

func TestDurationStringParseRoundTrip(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		d    Duration
	}{
		{name: "zero", d: Duration{}},
		{name: "years months days", d: Duration{Months: 14, Days: 3}},
		{name: "time components", d: Duration{Nanoseconds: int64(2*time.Hour + 30*time.Minute + 5*time.Second)}},
		{name: "negative", d: Duration{Months: -1, Days: -2, Nanoseconds: -int64(3 * time.Hour)}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			lit := tc.d.String()
			got, err := ParseDuration(lit)
			if err != nil {
				t.Fatalf("ParseDuration(%q) = %v", lit, err)
			}
			if got != tc.d {
				t.Fatalf("ParseDuration(String(%+v)) = %+v, want %+v", tc.d, got, tc.d)
			}
		})
	}
}

func TestMarshalNullAndUnset(t *testing.T) {
	t.Parallel()
	opt := &Option{ID: IntID}

	n, b, err := Marshal(opt, nil)
	if err != nil || n != -1 || b != nil {
		t.Fatalf("Marshal(nil) = (%d, %v, %v), want (-1, nil, nil)", n, b, err)
	}

	n, b, err = Marshal(opt, Unset)
	if err != nil || n != -2 || b != nil {
		t.Fatalf("Marshal(Unset) = (%d, %v, %v), want (-2, nil, nil)", n, b, err)
	}
}

func TestMarshalTypeMismatchError(t *testing.T) {
	t.Parallel()
	opt := &Option{ID: BooleanID}
	if _, _, err := Marshal(opt, "not a bool"); err == nil {
		t.Fatal("Marshal(string into boolean) should have failed")
	}
}

package codec

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"time"
	"unicode/utf8"
)

// IntWidth is the encoded size of an int in bytes.
const IntWidth = strconv.IntSize / 8

// Built-in codecs.
var (
	Bytes   Codec[[]byte]    = bytesCodec{}
	String  Codec[string]    = stringCodec{}
	Bool    Codec[bool]      = boolCodec{}
	Int     Codec[int]       = intCodec{}
	Float64 Codec[float64]   = float64Codec{}
	Time    Codec[time.Time] = timeCodec{}
	URL     Codec[*url.URL]  = urlCodec{}
)

func init() {
	register(bytesText{})
	register(stringText{})
	register(boolText{})
	register(intText{})
	register(float64Text{})
	register(timeText{})
	register(urlText{})
}

type bytesCodec struct{}

func (bytesCodec) Name() string { return "bytes" }

func (bytesCodec) Encode(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return slices.Clone(v)
}

func (bytesCodec) Decode(data []byte) ([]byte, bool) {
	if data == nil {
		return []byte{}, true
	}
	return slices.Clone(data), true
}

type stringCodec struct{}

func (stringCodec) Name() string { return "string" }

func (stringCodec) Encode(v string) []byte { return []byte(v) }

func (stringCodec) Decode(data []byte) (string, bool) {
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

type boolCodec struct{}

func (boolCodec) Name() string { return "bool" }

func (boolCodec) Encode(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// Decode treats only a leading 1 as true; 0, 2 and everything else are false.
func (boolCodec) Decode(data []byte) (bool, bool) {
	if len(data) == 0 {
		return false, false
	}
	return data[0] == 1, true
}

type intCodec struct{}

func (intCodec) Name() string { return "int" }

func (intCodec) Encode(v int) []byte {
	b := make([]byte, IntWidth)
	if IntWidth == 8 {
		binary.NativeEndian.PutUint64(b, uint64(v))
	} else {
		binary.NativeEndian.PutUint32(b, uint32(v))
	}
	return b
}

func (intCodec) Decode(data []byte) (int, bool) {
	if len(data) != IntWidth {
		return 0, false
	}
	if IntWidth == 8 {
		return int(binary.NativeEndian.Uint64(data)), true
	}
	return int(int32(binary.NativeEndian.Uint32(data))), true
}

type float64Codec struct{}

func (float64Codec) Name() string { return "float64" }

func (float64Codec) Encode(v float64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func (float64Codec) Decode(data []byte) (float64, bool) {
	if len(data) != 8 {
		return 0, false
	}
	return math.Float64frombits(binary.NativeEndian.Uint64(data)), true
}

// timeCodec stores seconds since the Unix epoch as a float64, so precision
// below a microsecond is lost for present-day timestamps.
type timeCodec struct{}

func (timeCodec) Name() string { return "time" }

func (timeCodec) Encode(v time.Time) []byte {
	secs := float64(v.Unix()) + float64(v.Nanosecond())/1e9
	return Float64.Encode(secs)
}

func (timeCodec) Decode(data []byte) (time.Time, bool) {
	secs, ok := Float64.Decode(data)
	if !ok || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, false
	}
	whole, frac := math.Modf(secs)
	if whole < math.MinInt64 || whole >= math.MaxInt64 {
		return time.Time{}, false
	}
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))), true
}

type urlCodec struct{}

func (urlCodec) Name() string { return "url" }

func (urlCodec) Encode(v *url.URL) []byte {
	if v == nil {
		return []byte{}
	}
	return []byte(v.String())
}

func (urlCodec) Decode(data []byte) (*url.URL, bool) {
	if len(data) == 0 || !utf8.Valid(data) {
		return nil, false
	}
	u, err := url.Parse(string(data))
	if err != nil {
		return nil, false
	}
	return u, true
}

// text adapters for Lookup

type bytesText struct{}

func (bytesText) Name() string { return Bytes.Name() }

func (bytesText) Parse(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bytes must be hex encoded: %w", err)
	}
	return Bytes.Encode(b), nil
}

func (bytesText) Format(data []byte) (string, bool) {
	b, ok := Bytes.Decode(data)
	return hex.EncodeToString(b), ok
}

type stringText struct{}

func (stringText) Name() string { return String.Name() }

func (stringText) Parse(s string) ([]byte, error) {
	return String.Encode(s), nil
}

func (stringText) Format(data []byte) (string, bool) {
	return String.Decode(data)
}

type boolText struct{}

func (boolText) Name() string { return Bool.Name() }

func (boolText) Parse(s string) ([]byte, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return Bool.Encode(v), nil
}

func (boolText) Format(data []byte) (string, bool) {
	v, ok := Bool.Decode(data)
	return strconv.FormatBool(v), ok
}

type intText struct{}

func (intText) Name() string { return Int.Name() }

func (intText) Parse(s string) ([]byte, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return Int.Encode(v), nil
}

func (intText) Format(data []byte) (string, bool) {
	v, ok := Int.Decode(data)
	return strconv.Itoa(v), ok
}

type float64Text struct{}

func (float64Text) Name() string { return Float64.Name() }

func (float64Text) Parse(s string) ([]byte, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return Float64.Encode(v), nil
}

func (float64Text) Format(data []byte) (string, bool) {
	v, ok := Float64.Decode(data)
	return strconv.FormatFloat(v, 'g', -1, 64), ok
}

type timeText struct{}

func (timeText) Name() string { return Time.Name() }

func (timeText) Parse(s string) ([]byte, error) {
	if s == "now" {
		return Time.Encode(time.Now()), nil
	}
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return Time.Encode(v), nil
}

func (timeText) Format(data []byte) (string, bool) {
	v, ok := Time.Decode(data)
	if !ok {
		return "", false
	}
	return v.UTC().Format(time.RFC3339Nano), true
}

type urlText struct{}

func (urlText) Name() string { return URL.Name() }

func (urlText) Parse(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty url")
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return URL.Encode(u), nil
}

func (urlText) Format(data []byte) (string, bool) {
	u, ok := URL.Decode(data)
	if !ok {
		return "", false
	}
	return u.String(), true
}

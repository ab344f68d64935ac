package security

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	FieldSign         = "sign"
	FieldPlatformSign = "platSign"
)

var (
	signExcluded   = []string{FieldSign}
	verifyExcluded = []string{FieldSign, FieldPlatformSign}
)

// Canonicalize drops excluded and null fields, sorts the remaining keys
// byte-wise and concatenates their stringified values.
func Canonicalize(fields map[string]any, excluded ...string) []byte {
	if len(fields) == 0 {
		return []byte{}
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, key := range excluded {
		skip[key] = struct{}{}
	}

	keys := make([]string, 0, len(fields))
	for key, value := range fields {
		if _, ok := skip[key]; ok {
			continue
		}
		if value == nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(Stringify(fields[key]))
	}
	return []byte(b.String())
}

// Stringify renders a scalar the way the gateway concatenates values:
// booleans become "1" or "", numbers use their shortest decimal form and
// composite values are JSON encoded.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "1"
		}
		return ""
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	case fmt.Stringer:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

// formatFloat matches encoding/json, so a signed value and the request body
// carrying it agree on every float.
func formatFloat(v float64, bitSize int) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	format := byte('f')
	if abs := math.Abs(v); abs != 0 {
		if bitSize == 64 && (abs < 1e-6 || abs >= 1e21) ||
			bitSize == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			format = 'e'
		}
	}
	out := strconv.AppendFloat(nil, v, format, -1, bitSize)
	if format == 'e' {
		// e-07 becomes e-7
		if n := len(out); n >= 4 && out[n-4] == 'e' && out[n-3] == '-' && out[n-2] == '0' {
			out[n-2] = out[n-1]
			out = out[:n-1]
		}
	}
	return string(out)
}

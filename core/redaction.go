package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap copies fields with signatures, key material and
// credentials replaced by RedactedValue. Nested maps and slices are
// walked; order and transaction identifiers are always kept.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(fields)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	if key == "sign" || key == "platsign" || key == "pin" || strings.HasSuffix(key, "_sign") {
		return true
	}
	for _, token := range []string{
		"signature",
		"secret",
		"private_key",
		"privatekey",
		"password",
		"token",
		"authorization",
	} {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "order_id",
		"orderid",
		"transaction_id",
		"transactionid",
		"merchant_code",
		"merchantcode",
		"reference",
		"request_id":
		return true
	default:
		return false
	}
}

package executor

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonapi = jsoniter.ConfigCompatibleWithStandardLibrary

// bindParams converts decoded JSON parameter values into driver arguments
// bound positionally to $1..$N. Numbers arrive as json.Number so integers
// survive without float rounding; arrays and objects are re-encoded and
// passed as JSON text.
func bindParams(params []any) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = bindValue(p)
	}
	return args
}

func bindValue(p any) any {
	switch v := p.(type) {
	case nil:
		return nil
	case bool:
		return v
	case string:
		return v
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case float64:
		return v
	default:
		// Arrays and objects bind as JSON text.
		if b, err := jsonapi.Marshal(v); err == nil {
			return string(b)
		}
		return nil
	}
}

// jsonValue converts one scanned column value into its JSON representation:
// numbers as JSON numbers when representable, timestamps in ISO-8601, byte
// strings as hex, NULL as null.
func jsonValue(v any, dbType string) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, int64, float64:
		return val
	case time.Time:
		switch dbType {
		case "DATE":
			return val.Format("2006-01-02")
		case "TIME", "TIMETZ":
			return val.Format("15:04:05.999999")
		default:
			return val.Format(time.RFC3339Nano)
		}
	case string:
		return textValue(val, dbType)
	case []byte:
		if dbType == "BYTEA" {
			return hex.EncodeToString(val)
		}
		return textValue(string(val), dbType)
	default:
		return stringify(val)
	}
}

// textValue interprets a textual column value per its declared type.
func textValue(s string, dbType string) any {
	switch dbType {
	case "JSON", "JSONB":
		return json.RawMessage(s)
	case "NUMERIC":
		// Numerics stay numbers when they are representable in JSON.
		if _, err := strconv.ParseFloat(s, 64); err == nil && jsonapi.Valid([]byte(s)) {
			return json.Number(s)
		}
		return s
	default:
		return s
	}
}

func stringify(v any) string {
	if b, err := jsonapi.Marshal(v); err == nil {
		return string(b)
	}
	return ""
}

package runtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Text renders a step output as the trimmed text returned to callers.
func Text(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case []byte:
		s = string(val)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		s = fmt.Sprint(val)
	case fmt.Stringer:
		s = val.String()
	case error:
		s = val.Error()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprint(val)
		} else {
			s = string(data)
		}
	}
	return strings.TrimSpace(s)
}

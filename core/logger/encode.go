package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// encodeLine renders fields as one newline-terminated line. Keys listed in
// order come first, the rest follow alphabetically.
func encodeLine(format logFormat, fields map[string]any, order []string) ([]byte, error) {
	keys := orderedKeys(fields, order)
	var buf bytes.Buffer
	if format == formatJSON {
		buf.WriteByte('{')
		for i, key := range keys {
			data, err := json.Marshal(fields[key])
			if err != nil {
				return nil, fmt.Errorf("logger: encode %q: %w", key, err)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(key))
			buf.WriteByte(':')
			buf.Write(data)
		}
		buf.WriteByte('}')
	} else {
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(key)
			buf.WriteByte('=')
			buf.WriteString(kvValue(fields[key]))
		}
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	for _, key := range order {
		if _, ok := fields[key]; ok && !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	fixed := len(keys)
	for key := range fields {
		if !slices.Contains(keys[:fixed], key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys[fixed:])
	return keys
}

// kvValue quotes values containing spaces, control runes, '=' or '"'.
func kvValue(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

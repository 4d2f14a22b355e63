package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"sort"
)

// StableJSONBytes returns a canonical JSON-like representation of v. Map keys
// are sorted recursively so equal values always produce identical bytes;
// arrays preserve order.
func StableJSONBytes(v any) []byte {
	var b bytes.Buffer
	writeStable(&b, v)
	return b.Bytes()
}

// ETagFromAny returns a deterministic SHA-256 hex digest over the canonical
// form of v, used to fingerprint memoization inputs.
func ETagFromAny(v any) string {
	sum := sha256.Sum256(StableJSONBytes(v))
	return hex.EncodeToString(sum[:])
}

func writeStable(b *bytes.Buffer, v any) {
	switch t := v.(type) {
	case map[string]any:
		writeStableMapKeys(b, sortedKeys(t), func(k string) any { return t[k] })
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeStable(b, e)
		}
		b.WriteByte(']')
	default:
		rv := reflect.ValueOf(v)
		if rv.IsValid() && rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
			keys := make([]string, 0, rv.Len())
			for _, k := range rv.MapKeys() {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			writeStableMapKeys(b, keys, func(k string) any {
				return rv.MapIndex(reflect.ValueOf(k)).Interface()
			})
			return
		}
		if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
			b.WriteByte('[')
			for i := 0; i < rv.Len(); i++ {
				if i > 0 {
					b.WriteByte(',')
				}
				writeStable(b, rv.Index(i).Interface())
			}
			b.WriteByte(']')
			return
		}
		bs, err := json.Marshal(v)
		if err != nil {
			b.WriteString("null")
			return
		}
		b.Write(bs)
	}
}

func writeStableMapKeys(b *bytes.Buffer, keys []string, value func(string) any) {
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err == nil {
			b.Write(kb)
		} else {
			b.WriteString(`"` + k + `"`)
		}
		b.WriteByte(':')
		writeStable(b, value(k))
	}
	b.WriteByte('}')
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

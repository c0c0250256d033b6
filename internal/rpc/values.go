package rpc

import (
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Fields is a convenience for building request and response messages.
type Fields map[string]*structpb.Value

// Message wraps f into a Struct.
func Message(f Fields) *structpb.Struct {
	if f == nil {
		f = Fields{}
	}
	return &structpb.Struct{Fields: f}
}

func String(v string) *structpb.Value { return structpb.NewStringValue(v) }
func Bool(v bool) *structpb.Value     { return structpb.NewBoolValue(v) }

func Bytes(b []byte) *structpb.Value {
	return structpb.NewStringValue(base64.StdEncoding.EncodeToString(b))
}

func Time(t time.Time) *structpb.Value {
	return structpb.NewStringValue(t.UTC().Format(time.RFC3339Nano))
}

func Object(s *structpb.Struct) *structpb.Value { return structpb.NewStructValue(s) }

// ObjectList wraps a slice of Structs into a list value.
func ObjectList(items []*structpb.Struct) *structpb.Value {
	vals := make([]*structpb.Value, 0, len(items))
	for _, it := range items {
		vals = append(vals, structpb.NewStructValue(it))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

// GetString returns the string at key or "" when absent.
func GetString(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func GetBool(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

// GetBytes decodes the base64 string at key. Absent keys yield nil.
func GetBytes(s *structpb.Struct, key string) ([]byte, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(v.GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return b, nil
}

// GetTime parses the timestamp at key. Absent keys yield the zero time.
func GetTime(s *structpb.Struct, key string) (time.Time, error) {
	raw := GetString(s, key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q: %w", key, err)
	}
	return t, nil
}

// GetObject returns the nested Struct at key, or nil.
func GetObject(s *structpb.Struct, key string) *structpb.Struct {
	return s.GetFields()[key].GetStructValue()
}

// GetObjectList returns the Structs held in the list at key, skipping
// non-object entries.
func GetObjectList(s *structpb.Struct, key string) []*structpb.Struct {
	vals := s.GetFields()[key].GetListValue().GetValues()
	out := make([]*structpb.Struct, 0, len(vals))
	for _, v := range vals {
		if sv := v.GetStructValue(); sv != nil {
			out = append(out, sv)
		}
	}
	return out
}

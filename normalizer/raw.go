package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// RawPost is one post as emitted by a collector. Nothing about its shape is
// guaranteed, every read goes through the presence-checking accessors below.
type RawPost map[string]interface{}

// DecodeRawPost decodes a single JSON object. Numbers are kept as json.Number
// so that 64-bit ids are not rounded through float64.
func DecodeRawPost(data []byte) (RawPost, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	post := RawPost{}
	if err := decoder.Decode(&post); err != nil {
		return nil, errors.Wrap(err, "fail to decode raw post")
	}
	return post, nil
}

// Lookup walks nested objects by key and reports whether the full path exists.
// A key present with a null value counts as present.
func (p RawPost) Lookup(path ...string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(p)
	for _, key := range path {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		value, ok := m[key]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}

// GetString returns the value at path only if it is a string.
func (p RawPost) GetString(path ...string) (string, bool) {
	value, ok := p.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// GetMap returns the object at path.
func (p RawPost) GetMap(path ...string) (RawPost, bool) {
	value, ok := p.Lookup(path...)
	if !ok {
		return nil, false
	}
	m, ok := asMap(value)
	if !ok {
		return nil, false
	}
	return RawPost(m), true
}

// GetList returns the array at path.
func (p RawPost) GetList(path ...string) ([]interface{}, bool) {
	value, ok := p.Lookup(path...)
	if !ok {
		return nil, false
	}
	list, ok := value.([]interface{})
	return list, ok
}

func asMap(value interface{}) (map[string]interface{}, bool) {
	switch m := value.(type) {
	case map[string]interface{}:
		return m, true
	case RawPost:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}

// stringify renders ids and counts the way they appear in *_str fields.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(value)
}

// toFloat reads a numeric field, anything unreadable counts as 0.
func toFloat(value interface{}) float64 {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	}
	return 0
}

// postID prefers the string form of an id, the numeric one is only used when
// the string form is missing.
func postID(post RawPost) (string, bool) {
	if id, ok := post.GetString("id_str"); ok && id != "" {
		return id, true
	}
	if value, ok := post["id"]; ok && value != nil {
		if id := stringify(value); id != "" {
			return id, true
		}
	}
	return "", false
}

package normalizer

import (
	"strings"
	"time"
)

const authorKey = "user"

// Post-level fields copied onto a record under their own name.
var DefaultPostFields = []string{
	"in_reply_to_status_id_str",
	"in_reply_to_screen_name",
	"in_reply_to_user_id_str",
	"lang",
	"geo",
	"coordinates",
	"source",
	"truncated",
	"possibly_sensitive",
	"withheld_copyright",
	"withheld_scope",
	"withheld_countries",
	"retweet_count",
	"favorite_count",
	"reply_count",
}

// Author-level fields copied onto a record as user_<field>, see UserField.
var DefaultUserFields = []string{
	"id_str",
	"screen_name",
	"name",
	"friends_count",
	"followers_count",
	"statuses_count",
	"favourites_count",
	"listed_count",
	"profile_image_url",
	"location",
	"verified",
	"description",
	"profile_image_url_https",
	"utc_offset",
	"time_zone",
	"lang",
	"withheld_scope",
	"withheld_countries",
	"created_at",
}

// Accessor reads one possible shape of a field from a raw post.
type Accessor func(post RawPost) (interface{}, bool)

// MetadataField is one output key and the shapes it may be found in, tried in
// order. The first accessor that finds a value wins.
type MetadataField struct {
	Output    string
	Accessors []Accessor
}

func (f MetadataField) Resolve(post RawPost) (interface{}, bool) {
	for _, accessor := range f.Accessors {
		if value, ok := accessor(post); ok {
			return value, true
		}
	}
	return nil, false
}

func stripStr(field string) string {
	return strings.ReplaceAll(field, "_str", "")
}

// Key reads a top level key as is.
func Key(key string) Accessor {
	return func(post RawPost) (interface{}, bool) {
		return post.Lookup(key)
	}
}

// StrippedKey reads the key without its _str marker and renders the value as a
// string, so numeric ids end up in the same form as their *_str siblings. It
// never matches for keys without the marker.
func StrippedKey(key string) Accessor {
	stripped := stripStr(key)
	return func(post RawPost) (interface{}, bool) {
		if stripped == key {
			return nil, false
		}
		value, ok := post.Lookup(stripped)
		if !ok {
			return nil, false
		}
		return stringify(value), true
	}
}

// NestedKey reads key inside the parent object.
func NestedKey(parent, key string) Accessor {
	return func(post RawPost) (interface{}, bool) {
		return post.Lookup(parent, key)
	}
}

// NestedStrippedKey is StrippedKey inside the parent object.
func NestedStrippedKey(parent, key string) Accessor {
	stripped := stripStr(key)
	return func(post RawPost) (interface{}, bool) {
		if stripped == key {
			return nil, false
		}
		value, ok := post.Lookup(parent, stripped)
		if !ok {
			return nil, false
		}
		return stringify(value), true
	}
}

func PostField(name string) MetadataField {
	return MetadataField{
		Output:    name,
		Accessors: []Accessor{Key(name), StrippedKey(name)},
	}
}

// UserField reads an author field either flattened on the post (user_<name>)
// or nested in the author object. Counts lose their suffix in the output key:
// followers_count is written as user_followers.
func UserField(name string) MetadataField {
	output := "user_" + strings.ReplaceAll(name, "_count", "")
	return MetadataField{
		Output: output,
		Accessors: []Accessor{
			Key(output),
			StrippedKey(output),
			NestedKey(authorKey, name),
			NestedStrippedKey(authorKey, name),
		},
	}
}

// MetadataExtractor layers optional fields onto a record. None of them is
// required, a field found in no shape is simply left out.
type MetadataExtractor struct {
	Fields []MetadataField
	// Locale used for user_created_at_timestamp, same as the record timestamp.
	Locale *time.Location
}

// NewMetadataExtractor builds the default field table extended with the given
// post and author field names. Names already in the table are ignored.
func NewMetadataExtractor(extraPostFields, extraUserFields []string, locale *time.Location) *MetadataExtractor {
	m := &MetadataExtractor{Locale: locale}
	seen := map[string]bool{}
	add := func(field MetadataField) {
		if seen[field.Output] {
			return
		}
		seen[field.Output] = true
		m.Fields = append(m.Fields, field)
	}
	for _, name := range append(append([]string{}, DefaultPostFields...), extraPostFields...) {
		add(PostField(name))
	}
	for _, name := range append(append([]string{}, DefaultUserFields...), extraUserFields...) {
		add(UserField(name))
	}
	return m
}

// Extract copies every resolvable field from post into record and returns
// record. Keys already on the record are never overwritten.
func (m *MetadataExtractor) Extract(post RawPost, record Record) Record {
	for _, field := range m.Fields {
		if _, taken := record[field.Output]; taken {
			continue
		}
		if value, ok := field.Resolve(post); ok {
			record[field.Output] = value
		}
	}

	if _, taken := record[UserURLKey]; !taken {
		if url, ok := authorURL(post); ok {
			record[UserURLKey] = url
		}
	}

	if _, taken := record[UserCreatedAtTimestampKey]; !taken {
		if ts, err := GetTimestamp(record, UserCreatedAtKey, m.Locale); err == nil {
			record[UserCreatedAtTimestampKey] = ts
		}
	}
	return record
}

// authorURL prefers the expanded form of the profile link over the t.co one.
func authorURL(post RawPost) (string, bool) {
	if urls, ok := post.GetList(authorKey, "entities", "url", "urls"); ok && len(urls) > 0 {
		if first, ok := asMap(urls[0]); ok {
			if expanded, ok := RawPost(first).GetString("expanded_url"); ok && expanded != "" {
				return expanded, true
			}
		}
	}
	if url, ok := post.GetString(authorKey, "url"); ok && url != "" {
		return url, true
	}
	return "", false
}

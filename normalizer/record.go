package normalizer

import (
	"encoding/json"
	"sort"
	"time"
)

// Record keys.
const (
	IdKey                   = "_id"
	CreatedAtKey            = "created_at"
	TimestampKey            = "timestamp"
	TextKey                 = "text"
	URLKey                  = "url"
	RetweetIdKey            = "retweet_id"
	RetweetUserKey          = "retweet_user"
	RetweetUserIdKey        = "retweet_user_id"
	MediasKey               = "medias"
	LinksKey                = "links"
	LinksToResolveKey       = "links_to_resolve"
	HashtagsKey             = "hashtags"
	MentionsIdsKey          = "mentions_ids"
	MentionsNamesKey        = "mentions_names"
	CollectedAtTimestampKey = "collected_at_timestamp"
	CollectedViaPrefix      = "collected_via_"

	UserURLKey                = "user_url"
	UserCreatedAtKey          = "user_created_at"
	UserCreatedAtTimestampKey = "user_created_at_timestamp"
)

// Record is a normalized post. It is kept as a flat document because the set
// of metadata keys is configurable and records are stored as documents keyed
// by IdKey. Records read back from a store carry JSON or BSON shaped values,
// the accessors accept both.
type Record map[string]interface{}

// IsNormalized reports whether a decoded object is already a record. Raw
// platform posts carry "id", never "_id".
func IsNormalized(value map[string]interface{}) bool {
	_, ok := value[IdKey]
	return ok
}

func (r Record) ID() string {
	id, _ := r[IdKey].(string)
	return id
}

func (r Record) Text() string {
	text, _ := r[TextKey].(string)
	return text
}

func (r Record) URL() string {
	url, _ := r[URLKey].(string)
	return url
}

func (r Record) Links() []string {
	return r.StringList(LinksKey)
}

func (r Record) Hashtags() []string {
	return r.StringList(HashtagsKey)
}

func (r Record) LinksToResolve() bool {
	b, _ := r[LinksToResolveKey].(bool)
	return b
}

// MediaURLs returns the url half of every medias entry.
func (r Record) MediaURLs() []string {
	res := []string{}
	switch medias := r[MediasKey].(type) {
	case [][2]string:
		for _, media := range medias {
			res = append(res, media[1])
		}
	case []interface{}:
		for _, media := range medias {
			pair := toStringList(media)
			if len(pair) == 2 {
				res = append(res, pair[1])
			}
		}
	}
	return res
}

// StringList reads a list of strings whether it was built in memory or decoded
// from JSON.
func (r Record) StringList(key string) []string {
	return toStringList(r[key])
}

func toStringList(value interface{}) []string {
	switch list := value.(type) {
	case []string:
		return list
	case [2]string:
		return list[:]
	case []interface{}:
		res := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}
	return []string{}
}

// Epoch returns the record timestamp as epoch seconds. ISO timestamps, written
// when no locale is configured, are read back as UTC.
func (r Record) Epoch() (float64, bool) {
	switch ts := r[TimestampKey].(type) {
	case int64, int, int32, float64, float32:
		return toFloat(ts), true
	case json.Number:
		f, err := ts.Float64()
		return f, err == nil
	case string:
		t, err := time.Parse(ISOLayout, ts)
		if err != nil {
			return 0, false
		}
		return float64(t.Unix()), true
	}
	return 0, false
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

package normalizer

import (
	"time"

	"github.com/pkg/errors"
)

const (
	// Platform date layout, e.g. "Tue Oct 13 12:00:00 +0000 2020".
	CreatedAtLayout = time.RubyDate
	// ISO-8601 without any zone suffix, used when no locale is configured.
	ISOLayout = "2006-01-02T15:04:05"

	DefaultTimestampField = "created_at"
)

// ParseCreatedAt parses a platform date string into a UTC instant. The
// platform writes +0000, other offsets are honored and shifted to UTC.
func ParseCreatedAt(value string) (time.Time, error) {
	t, err := time.Parse(CreatedAtLayout, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrMalformedTimestamp, "cannot parse %q: %s", value, err)
	}
	return t.UTC(), nil
}

// FormatTimestamp renders an instant as int64 epoch seconds when a locale is
// given, and as an ISO-8601 string in UTC otherwise. Epoch seconds do not
// depend on the zone, the conversion into locale only exists so that callers
// holding the result see the same instant the locale displays.
func FormatTimestamp(t time.Time, locale *time.Location) interface{} {
	if locale != nil {
		return t.In(locale).Unix()
	}
	return t.UTC().Format(ISOLayout)
}

// GetTimestamp reads the date string stored under field (created_at when
// empty) and formats it with FormatTimestamp. It is used both on raw posts and
// on records, e.g. with field user_created_at.
func GetTimestamp(post map[string]interface{}, field string, locale *time.Location) (interface{}, error) {
	if field == "" {
		field = DefaultTimestampField
	}
	value, ok := post[field].(string)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedTimestamp, "field %s is missing or not a string", field)
	}
	t, err := ParseCreatedAt(value)
	if err != nil {
		return nil, err
	}
	return FormatTimestamp(t, locale), nil
}

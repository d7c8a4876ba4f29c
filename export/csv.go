package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/Luismorlan/postmux/normalizer"
	"github.com/Luismorlan/postmux/utils"
	"github.com/pkg/errors"
)

const listSep = "|"

// Column is one CSV column read from a record.
type Column struct {
	Name  string
	Value func(record normalizer.Record) string
}

func keyColumn(name, key string) Column {
	return Column{Name: name, Value: func(record normalizer.Record) string {
		return FormatValue(record[key])
	}}
}

// DefaultColumns are always exported, configured extra fields come after them.
var DefaultColumns = []Column{
	keyColumn("id", normalizer.IdKey),
	keyColumn("time", normalizer.TimestampKey),
	keyColumn("created_at", normalizer.CreatedAtKey),
	keyColumn("from_user_name", "user_screen_name"),
	keyColumn("text", normalizer.TextKey),
	keyColumn("url", normalizer.URLKey),
	keyColumn("lang", "lang"),
	keyColumn("retweet_count", "retweet_count"),
	keyColumn("favorite_count", "favorite_count"),
	keyColumn("reply_count", "reply_count"),
	keyColumn("to_user_name", "in_reply_to_screen_name"),
	keyColumn("in_reply_to_status_id", "in_reply_to_status_id_str"),
	keyColumn("from_user_id", "user_id_str"),
	keyColumn("from_user_realname", "user_name"),
	keyColumn("from_user_followercount", "user_followers"),
	keyColumn("from_user_url", normalizer.UserURLKey),
	keyColumn("from_user_created_at", normalizer.UserCreatedAtKey),
	keyColumn("retweeted_id", normalizer.RetweetIdKey),
	keyColumn("retweeted_user_name", normalizer.RetweetUserKey),
	keyColumn("retweeted_user_id", normalizer.RetweetUserIdKey),
	keyColumn("links", normalizer.LinksKey),
	{Name: "medias_urls", Value: func(record normalizer.Record) string {
		return strings.Join(record.MediaURLs(), listSep)
	}},
	keyColumn("mentioned_user_names", normalizer.MentionsNamesKey),
	keyColumn("mentioned_user_ids", normalizer.MentionsIdsKey),
	keyColumn("hashtags", normalizer.HashtagsKey),
	keyColumn("collected_at_timestamp", normalizer.CollectedAtTimestampKey),
}

func Columns(extraFields []string) []Column {
	columns := append([]Column{}, DefaultColumns...)
	names := make([]string, 0, len(columns)+len(extraFields))
	for _, column := range columns {
		names = append(names, column.Name)
	}
	for _, field := range extraFields {
		if utils.ContainsString(names, field) {
			continue
		}
		names = append(names, field)
		columns = append(columns, keyColumn(field, field))
	}
	return columns
}

// WriteCSV writes a header line then one line per record.
func WriteCSV(w io.Writer, records []normalizer.Record, extraFields []string) error {
	columns := Columns(extraFields)
	writer := csv.NewWriter(w)

	header := make([]string, 0, len(columns))
	for _, column := range columns {
		header = append(header, column.Name)
	}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "fail to write csv header")
	}

	for _, record := range records {
		line := make([]string, 0, len(columns))
		for _, column := range columns {
			line = append(line, column.Value(record))
		}
		if err := writer.Write(line); err != nil {
			return errors.Wrapf(err, "fail to write record %s", record.ID())
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "fail to flush csv")
}

// FormatValue renders a record value as a CSV cell. Lists are joined with |,
// objects are written as JSON.
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case []string:
		return strings.Join(v, listSep)
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, FormatValue(item))
		}
		return strings.Join(items, listSep)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(data)
}

package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Luismorlan/postmux/normalizer"
	"github.com/Luismorlan/postmux/store"
	Flag "github.com/Luismorlan/postmux/utils/flag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/ext"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/mocktracer"
)

func values(pairs ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return v
}

func TestParseQuery(t *testing.T) {
	q, errs := ParseQuery(values(
		StartDateArg, "2020-10-13",
		EndDateArg, "2020-10-14",
		QueryArg, "golang|gopher",
		FiltersArg, "rust",
	), time.UTC, "")
	require.Empty(t, errs)

	start, end := q.Bounds()
	assert.Equal(t, float64(time.Date(2020, 10, 13, 0, 0, 0, 0, time.UTC).Unix()), start)
	// The end date is inclusive.
	assert.Equal(t, float64(time.Date(2020, 10, 15, 0, 0, 0, 0, time.UTC).Unix()), end)
	assert.Len(t, q.Include, 2)
	assert.Len(t, q.Exclude, 1)
	assert.Equal(t, "tweets-2020-10-13-2020-10-14-golang_gopher.csv", q.FileName())
}

func TestParseQueryInLocation(t *testing.T) {
	paris := time.FixedZone("CET", 60*60)
	q, errs := ParseQuery(values(StartDateArg, "2020-10-13", EndDateArg, "2020-10-13"), paris, "")
	require.Empty(t, errs)
	start, _ := q.Bounds()
	assert.Equal(t, float64(time.Date(2020, 10, 12, 23, 0, 0, 0, time.UTC).Unix()), start)
}

func TestParseQueryErrors(t *testing.T) {
	_, errs := ParseQuery(values(), time.UTC, "")
	assert.Len(t, errs, 2)

	_, errs = ParseQuery(values(StartDateArg, "not a date", EndDateArg, "2020-10-14"), time.UTC, "")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "not a valid date")

	_, errs = ParseQuery(values(StartDateArg, "2020-10-14", EndDateArg, "2020-10-12"), time.UTC, "")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "should be older")

	_, errs = ParseQuery(values(StartDateArg, "2020-10-13", EndDateArg, "2020-10-14", QueryArg, "(unclosed"), time.UTC, "")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "not a valid pattern")
}

func TestQueryFilter(t *testing.T) {
	records := []normalizer.Record{
		{normalizer.IdKey: "1", normalizer.TextKey: "I love Golang", "selected": true},
		{normalizer.IdKey: "2", normalizer.TextKey: "golang and RUST"},
		{normalizer.IdKey: "3", normalizer.TextKey: "python only", "selected": true},
		{normalizer.IdKey: "4", normalizer.TextKey: "GOLANG", "selected": false},
	}

	q, errs := ParseQuery(values(StartDateArg, "2020-10-13", EndDateArg, "2020-10-13", QueryArg, "golang", FiltersArg, "rust"), time.UTC, "selected")
	require.Empty(t, errs)
	ids := func(records []normalizer.Record) []string {
		res := []string{}
		for _, r := range records {
			res = append(res, r.ID())
		}
		return res
	}
	assert.Equal(t, []string{"1", "4"}, ids(q.Filter(records)))

	q, errs = ParseQuery(values(StartDateArg, "2020-10-13", EndDateArg, "2020-10-13", QueryArg, "golang", SelectedArg, "checked"), time.UTC, "selected")
	require.Empty(t, errs)
	assert.Equal(t, []string{"1"}, ids(q.Filter(records)))

	// Without a configured field the checkbox is ignored.
	q, errs = ParseQuery(values(StartDateArg, "2020-10-13", EndDateArg, "2020-10-13", SelectedArg, "checked"), time.UTC, "")
	require.Empty(t, errs)
	assert.Len(t, q.Filter(records), 4)
}

func TestWriteCSV(t *testing.T) {
	record := normalizer.Record{
		normalizer.IdKey:                   "1",
		normalizer.TimestampKey:            int64(1602590400),
		normalizer.TextKey:                 "hello, \"world\"",
		normalizer.LinksKey:                []string{"https://a.example.com", "https://b.example.com"},
		normalizer.MediasKey:               [][2]string{{"1_x.jpg", "https://pbs.twimg.com/media/x.jpg"}},
		normalizer.HashtagsKey:             []interface{}{"go", "gopher"},
		normalizer.RetweetIdKey:            nil,
		"retweet_count":                    json.Number("3"),
		"coordinates":                      map[string]interface{}{"type": "Point"},
		normalizer.CollectedAtTimestampKey: float64(1602590400.5),
	}

	var buf bytes.Buffer
	require.Nil(t, WriteCSV(&buf, []normalizer.Record{record}, []string{"coordinates", "missing"}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.Nil(t, err)
	require.Len(t, rows, 2)

	line := map[string]string{}
	for i, name := range rows[0] {
		line[name] = rows[1][i]
	}
	assert.Equal(t, len(DefaultColumns)+2, len(rows[0]))
	assert.Equal(t, "1", line["id"])
	assert.Equal(t, "1602590400", line["time"])
	assert.Equal(t, "hello, \"world\"", line["text"])
	assert.Equal(t, "https://a.example.com|https://b.example.com", line["links"])
	assert.Equal(t, "https://pbs.twimg.com/media/x.jpg", line["medias_urls"])
	assert.Equal(t, "go|gopher", line["hashtags"])
	assert.Equal(t, "", line["retweeted_id"])
	assert.Equal(t, "3", line["retweet_count"])
	assert.Equal(t, `{"type":"Point"}`, line["coordinates"])
	assert.Equal(t, "", line["missing"])
	assert.Equal(t, "1602590400.5", line["collected_at_timestamp"])
}

func TestColumnsSkipDuplicates(t *testing.T) {
	columns := Columns([]string{"text", "coordinates", "coordinates"})
	require.Len(t, columns, len(DefaultColumns)+1)
	assert.Equal(t, "coordinates", columns[len(columns)-1].Name)
}

func TestHandleDownload(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryRecordStore()
	for _, r := range []normalizer.Record{
		{normalizer.IdKey: "b", normalizer.TimestampKey: "2020-10-13T12:00:00", normalizer.TextKey: "golang news"},
		{normalizer.IdKey: "a", normalizer.TimestampKey: "2020-10-14T23:59:59", normalizer.TextKey: "more Golang"},
		{normalizer.IdKey: "c", normalizer.TimestampKey: "2020-10-15T00:00:00", normalizer.TextKey: "golang too late"},
		{normalizer.IdKey: "d", normalizer.TimestampKey: "2020-10-13T12:00:00", normalizer.TextKey: "unrelated"},
	} {
		require.Nil(t, s.Save(ctx, r))
	}
	router := (&Server{Store: s, Location: time.UTC}).Router()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/download?startdate=2020-10-13&enddate=2020-10-14&query=golang", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=UTF-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=tweets-2020-10-13-2020-10-14-golang.csv", w.Header().Get("Content-Disposition"))

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.Nil(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[1][0])
	assert.Equal(t, "b", rows[2][0])
}

func TestHandleDownloadValidation(t *testing.T) {
	router := (&Server{Store: store.NewMemoryRecordStore(), Location: time.UTC}).Router()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/download?startdate=2020-10-13", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error\nField \"enddate\" missing", w.Body.String())
}

func TestPing(t *testing.T) {
	router := (&Server{Store: store.NewMemoryRecordStore()}).Router()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ping", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"message":"pong"}`, w.Body.String())
}

func TestRequestsAreTraced(t *testing.T) {
	mt := mocktracer.Start()
	defer mt.Stop()

	router := (&Server{Store: store.NewMemoryRecordStore(), Location: time.UTC}).Router()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/download?startdate=2020-10-13&enddate=2020-10-13", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	spans := mt.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "http.request", spans[0].OperationName())
	assert.Equal(t, *Flag.ServiceName, spans[0].Tag(ext.ServiceName))
}

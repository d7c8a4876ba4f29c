package export

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Luismorlan/postmux/normalizer"
	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
)

const (
	StartDateArg = "startdate"
	EndDateArg   = "enddate"
	QueryArg     = "query"
	FiltersArg   = "filters"
	SelectedArg  = "selected"

	selectedChecked = "checked"
	patternSep      = "|"
)

// Query selects the records of a download. End is exclusive, it is the day
// after the requested end date.
type Query struct {
	StartDate string
	EndDate   string
	Text      string

	Start time.Time
	End   time.Time

	// Every Include pattern must match the record text and no Exclude pattern
	// may.
	Include []*regexp.Regexp
	Exclude []*regexp.Regexp

	// Boolean record key that must be true, empty when not requested.
	SelectedField string
}

type queryArgs struct {
	values        url.Values
	location      *time.Location
	selectedField string
	query         *Query
}

// ParseQuery reads download arguments. Dates are parsed in location. Every
// argument is checked, the returned errors list all the problems found.
func ParseQuery(values url.Values, location *time.Location, selectedField string) (*Query, []error) {
	if location == nil {
		location = time.Local
	}
	args := &queryArgs{
		values:        values,
		location:      location,
		selectedField: selectedField,
		query: &Query{
			StartDate: values.Get(StartDateArg),
			EndDate:   values.Get(EndDateArg),
			Text:      values.Get(QueryArg),
		},
	}

	validators := []func(*queryArgs) error{
		parseStartDate,
		parseEndDate,
		parseIncludePatterns,
		parseExcludePatterns,
		parseSelected,
	}
	errs := []error{}
	for _, v := range validators {
		if err := v(args); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 && !args.query.Start.Before(args.query.End) {
		errs = append(errs, errors.Errorf(`Field "%s" should be older than field "%s"`, StartDateArg, EndDateArg))
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return args.query, nil
}

func parseDate(args *queryArgs, arg string) (time.Time, error) {
	value := args.values.Get(arg)
	if value == "" {
		return time.Time{}, errors.Errorf(`Field "%s" missing`, arg)
	}
	t, err := dateparse.ParseIn(value, args.location)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, `Field "%s": « %s » is not a valid date`, arg, value)
	}
	return t, nil
}

func parseStartDate(args *queryArgs) error {
	t, err := parseDate(args, StartDateArg)
	if err != nil {
		return err
	}
	args.query.Start = t
	return nil
}

func parseEndDate(args *queryArgs) error {
	t, err := parseDate(args, EndDateArg)
	if err != nil {
		return err
	}
	args.query.End = t.AddDate(0, 0, 1)
	return nil
}

func compilePatterns(arg, value string) ([]*regexp.Regexp, error) {
	res := []*regexp.Regexp{}
	if value == "" {
		return res, nil
	}
	for _, pattern := range strings.Split(value, patternSep) {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, errors.Wrapf(err, `Field "%s": « %s » is not a valid pattern`, arg, pattern)
		}
		res = append(res, re)
	}
	return res, nil
}

func parseIncludePatterns(args *queryArgs) (err error) {
	args.query.Include, err = compilePatterns(QueryArg, args.values.Get(QueryArg))
	return err
}

func parseExcludePatterns(args *queryArgs) (err error) {
	args.query.Exclude, err = compilePatterns(FiltersArg, args.values.Get(FiltersArg))
	return err
}

func parseSelected(args *queryArgs) error {
	if args.selectedField != "" && args.values.Get(SelectedArg) == selectedChecked {
		args.query.SelectedField = args.selectedField
	}
	return nil
}

// Bounds are the epoch seconds range handed to RecordStore.Range.
func (q *Query) Bounds() (float64, float64) {
	return float64(q.Start.Unix()), float64(q.End.Unix())
}

func (q *Query) Match(record normalizer.Record) bool {
	text := record.Text()
	for _, re := range q.Include {
		if !re.MatchString(text) {
			return false
		}
	}
	for _, re := range q.Exclude {
		if re.MatchString(text) {
			return false
		}
	}
	if q.SelectedField != "" {
		selected, _ := record[q.SelectedField].(bool)
		if !selected {
			return false
		}
	}
	return true
}

// Filter keeps the matching records, in order.
func (q *Query) Filter(records []normalizer.Record) []normalizer.Record {
	res := []normalizer.Record{}
	for _, record := range records {
		if q.Match(record) {
			res = append(res, record)
		}
	}
	return res
}

var unsafeFileChars = regexp.MustCompile(`[^\pL\pN._-]+`)

// FileName is the attachment name of the download, without characters that
// would break the header.
func (q *Query) FileName() string {
	name := fmt.Sprintf("tweets-%s-%s-%s.csv", q.StartDate, q.EndDate, q.Text)
	return unsafeFileChars.ReplaceAllString(name, "_")
}

package chartconfig

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Aggregation string

const (
	AggregationNone    Aggregation = "none"
	AggregationSum     Aggregation = "sum"
	AggregationAverage Aggregation = "average"
	AggregationCount   Aggregation = "count"
)

type TimeGrouping string

const (
	GroupingNone    TimeGrouping = "none"
	GroupingWeek    TimeGrouping = "week"
	GroupingMonth   TimeGrouping = "month"
	GroupingQuarter TimeGrouping = "quarter"
	GroupingYear    TimeGrouping = "year"
)

const (
	maxCategories = 10
	minYear       = 1900
	maxYear       = 2100
)

var (
	numberPattern    = regexp.MustCompile(`-?\d+(\.\d+)?`)
	thousandsPattern = regexp.MustCompile(`(\d),(\d{3})`)
	yearPattern      = regexp.MustCompile(`(?:^|\D)(\d{4})(?:\D|$)`)
	proseLinePattern = regexp.MustCompile(`^\s*(?:[-*•]\s*)?(.+?)\s*[:：]\s*(.+?)\s*$`)

	dateLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"2006/01/02",
		"2006-01",
		"2006/01",
		"2006",
	}
)

// Point is one label/value pair of the extracted series.
type Point struct {
	Label string
	Value float64
}

// ParseNumber returns the first numeric token in s, ignoring thousands separators, or 0.
func ParseNumber(s string) float64 {
	for {
		replaced := thousandsPattern.ReplaceAllString(s, "$1$2")
		if replaced == s {
			break
		}

		s = replaced
	}

	token := numberPattern.FindString(s)
	if token == "" {
		return 0
	}

	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0
	}

	return value
}

// ParseDate parses the common date shapes found in query results.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// Year returns the standalone 4-digit year in s when it lies in [1900, 2100].
func Year(s string) (int, bool) {
	match := yearPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, false
	}

	year, err := strconv.Atoi(match[1])
	if err != nil || year < minYear || year > maxYear {
		return 0, false
	}

	return year, true
}

type bucketKey struct {
	year int
	sub  int
}

func bucketFor(t time.Time, grouping TimeGrouping) (bucketKey, string) {
	switch grouping {
	case GroupingWeek:
		year, week := t.ISOWeek()

		return bucketKey{year, week}, fmt.Sprintf("%d-W%02d", year, week)
	case GroupingMonth:
		return bucketKey{t.Year(), int(t.Month())}, fmt.Sprintf("%d-%02d", t.Year(), int(t.Month()))
	case GroupingQuarter:
		quarter := (int(t.Month())-1)/3 + 1

		return bucketKey{t.Year(), quarter}, fmt.Sprintf("%d-Q%d", t.Year(), quarter)
	default:
		return bucketKey{t.Year(), 0}, strconv.Itoa(t.Year())
	}
}

type accumulator struct {
	label string
	sum   float64
	count int
	last  float64
}

func (a *accumulator) add(value float64) {
	a.sum += value
	a.count++
	a.last = value
}

func (a *accumulator) value(aggregation Aggregation) float64 {
	switch aggregation {
	case AggregationSum:
		return a.sum
	case AggregationAverage:
		if a.count == 0 {
			return 0
		}

		return a.sum / float64(a.count)
	case AggregationCount:
		return float64(a.count)
	default:
		return a.last
	}
}

// ExtractTimeSeries buckets rows by the date in dateColumn and aggregates the numbers in
// valueColumn. Buckets are ordered chronologically. Rows whose date does not parse are skipped.
func ExtractTimeSeries(rows [][]string, dateColumn, valueColumn int, grouping TimeGrouping, aggregation Aggregation) []Point {
	buckets := make(map[bucketKey]*accumulator)

	for _, row := range rows {
		if dateColumn < 0 || dateColumn >= len(row) {
			continue
		}

		t, ok := ParseDate(row[dateColumn])
		if !ok {
			continue
		}

		key, label := bucketFor(t, grouping)

		acc, exists := buckets[key]
		if !exists {
			acc = &accumulator{label: label}
			buckets[key] = acc
		}

		acc.add(ParseNumber(row[clampColumn(valueColumn, len(row))]))
	}

	keys := make([]bucketKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}

	slices.SortFunc(keys, func(a, b bucketKey) int {
		if c := cmp.Compare(a.year, b.year); c != 0 {
			return c
		}

		return cmp.Compare(a.sub, b.sub)
	})

	points := make([]Point, 0, len(keys))
	for _, key := range keys {
		acc := buckets[key]
		points = append(points, Point{Label: acc.label, Value: acc.value(aggregation)})
	}

	return points
}

// ExtractCategories maps rows to label/value points. Two-column rows are (label, value) pairs;
// longer rows use labelColumn and valueColumn. When every label carries a year the points are
// sorted by year, otherwise by descending value and capped to the top ten.
func ExtractCategories(rows [][]string, labelColumn, valueColumn int, aggregation Aggregation) []Point {
	var (
		order  []string
		values = make(map[string]*accumulator)
	)

	for _, row := range rows {
		var label, raw string

		switch {
		case len(row) == 0:
			continue
		case len(row) == 2:
			label, raw = row[0], row[1]
		default:
			label = row[clampLabel(labelColumn, len(row))]
			raw = row[clampColumn(valueColumn, len(row))]
		}

		label = strings.TrimSpace(label)

		acc, exists := values[label]
		if !exists {
			acc = &accumulator{label: label}
			values[label] = acc
			order = append(order, label)
		}

		acc.add(ParseNumber(raw))
	}

	points := make([]Point, 0, len(order))
	for _, label := range order {
		points = append(points, Point{Label: label, Value: values[label].value(aggregation)})
	}

	if allYears(points) {
		slices.SortStableFunc(points, func(a, b Point) int {
			ya, _ := Year(a.Label)
			yb, _ := Year(b.Label)

			return cmp.Compare(ya, yb)
		})

		return points
	}

	slices.SortStableFunc(points, func(a, b Point) int {
		return cmp.Compare(b.Value, a.Value)
	})

	if len(points) > maxCategories {
		points = points[:maxCategories]
	}

	return points
}

// ParseProse reads "label: value" lines from a prose answer into two-column rows.
func ParseProse(answer string) [][]string {
	var rows [][]string

	for line := range strings.SplitSeq(answer, "\n") {
		match := proseLinePattern.FindStringSubmatch(line)
		if match == nil || !numberPattern.MatchString(match[2]) {
			continue
		}

		rows = append(rows, []string{match[1], match[2]})
	}

	return rows
}

func allYears(points []Point) bool {
	if len(points) == 0 {
		return false
	}

	for _, p := range points {
		if _, ok := Year(p.Label); !ok {
			return false
		}
	}

	return true
}

// clampColumn keeps an out-of-range value position on the last column.
func clampColumn(column, width int) int {
	if column < 0 || column >= width {
		return width - 1
	}

	return column
}

// clampLabel keeps an out-of-range label position on the first column.
func clampLabel(column, width int) int {
	if column < 0 || column >= width {
		return 0
	}

	return column
}

// Package report aggregates completed orders into sales figures.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bites-pos/internal/domain/menu"
	"github.com/xenking/bites-pos/internal/domain/order"
)

// Range selects the window of orders included in a report.
type Range string

const (
	RangeDaily  Range = "daily"
	RangeWeek   Range = "week"
	RangeMonth  Range = "month"
	RangeCustom Range = "custom"
)

const (
	LabelHourly = "Today's Sales by Hour"
	LabelDaily  = "Sales by Day"
)

var (
	// ErrInvalidRange is returned when a custom range starts after it ends.
	ErrInvalidRange = errors.New("range start is after end")
	// ErrUnknownRange is returned by ParseRange for unsupported values.
	ErrUnknownRange = errors.New("unknown report range")
)

// ParseRange resolves a range name. The empty string selects RangeDaily.
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case "":
		return RangeDaily, nil
	case RangeDaily, RangeWeek, RangeMonth, RangeCustom:
		return r, nil
	default:
		return "", errors.Wrapf(ErrUnknownRange, "%q", s)
	}
}

// Query describes the report to build. Start and End are only read for
// RangeCustom and only their calendar day in Location matters.
type Query struct {
	Range    Range
	Start    time.Time
	End      time.Time
	Location *time.Location
	Reset    bool
}

// Bucket is one point of the sales series.
type Bucket struct {
	Label string
	Sales decimal.Decimal
}

// CategoryRevenue is the revenue attributed to one menu category.
type CategoryRevenue struct {
	Category menu.Category
	Revenue  decimal.Decimal
}

// Report holds the aggregated figures of a range.
type Report struct {
	Revenue           decimal.Decimal
	Orders            int
	AverageOrderValue decimal.Decimal
	Series            []Bucket
	SeriesLabel       string
	Categories        []CategoryRevenue
}

// Build filters history to the window selected by q relative to now and
// aggregates it. A reset query, an incomplete custom range or an empty window
// all yield a zero report.
func Build(history []order.CompletedOrder, q Query, now time.Time) (Report, error) {
	loc := q.Location
	if loc == nil {
		loc = time.Local
	}
	r := q.Range
	if r == "" {
		r = RangeDaily
	}
	label := LabelDaily
	if r == RangeDaily {
		label = LabelHourly
	}
	if q.Reset {
		return zero(label), nil
	}

	from, to, ok, err := window(r, q, now.In(loc))
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return zero(label), nil
	}

	var matched []order.CompletedOrder
	for _, o := range history {
		ts := o.Timestamp.In(loc)
		if !ts.Before(from) && ts.Before(to) {
			matched = append(matched, o)
		}
	}
	if len(matched) == 0 {
		return zero(label), nil
	}

	rep := Report{
		Revenue:     decimal.Zero,
		Orders:      len(matched),
		SeriesLabel: label,
	}
	byCategory := make(map[menu.Category]decimal.Decimal)
	for _, o := range matched {
		rep.Revenue = rep.Revenue.Add(o.Total)
		for _, li := range o.Items {
			byCategory[li.Category] = byCategory[li.Category].Add(li.LineTotal())
		}
	}
	rep.AverageOrderValue = rep.Revenue.Div(decimal.NewFromInt(int64(len(matched)))).Round(2)
	rep.Categories = categories(byCategory)
	if r == RangeDaily {
		rep.Series = hourly(matched, loc)
	} else {
		rep.Series = daily(matched, loc)
	}
	return rep, nil
}

// window returns the half-open interval [from, to) selected by r. ok is false
// when a custom range is missing a bound.
func window(r Range, q Query, now time.Time) (from, to time.Time, ok bool, err error) {
	loc := now.Location()
	today := startOfDay(now)
	switch r {
	case RangeDaily:
		return today, today.AddDate(0, 0, 1), true, nil
	case RangeWeek:
		// Weeks start on Monday.
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -offset)
		return monday, monday.AddDate(0, 0, 7), true, nil
	case RangeMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return first, first.AddDate(0, 1, 0), true, nil
	case RangeCustom:
		if q.Start.IsZero() || q.End.IsZero() {
			return time.Time{}, time.Time{}, false, nil
		}
		start := startOfDay(q.Start.In(loc))
		end := startOfDay(q.End.In(loc))
		if start.After(end) {
			return time.Time{}, time.Time{}, false, ErrInvalidRange
		}
		return start, end.AddDate(0, 0, 1), true, nil
	default:
		return time.Time{}, time.Time{}, false, errors.Wrapf(ErrUnknownRange, "%q", r)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func hourly(orders []order.CompletedOrder, loc *time.Location) []Bucket {
	out := make([]Bucket, 24)
	for h := range out {
		out[h] = Bucket{Label: fmt.Sprintf("%02d:00", h), Sales: decimal.Zero}
	}
	for _, o := range orders {
		h := o.Timestamp.In(loc).Hour()
		out[h].Sales = out[h].Sales.Add(o.Total)
	}
	return out
}

func daily(orders []order.CompletedOrder, loc *time.Location) []Bucket {
	sums := make(map[string]decimal.Decimal)
	for _, o := range orders {
		day := o.Timestamp.In(loc).Format(time.DateOnly)
		sums[day] = sums[day].Add(o.Total)
	}
	out := make([]Bucket, 0, len(sums))
	for day, sales := range sums {
		out = append(out, Bucket{Label: day, Sales: sales})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// categories orders the breakdown by menu order; unknown categories go last,
// alphabetically.
func categories(sums map[menu.Category]decimal.Decimal) []CategoryRevenue {
	out := make([]CategoryRevenue, 0, len(sums))
	for c, rev := range sums {
		out = append(out, CategoryRevenue{Category: c, Revenue: rev})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Category.Rank(), out[j].Category.Rank()
		if ri < 0 {
			ri = len(menu.Categories())
		}
		if rj < 0 {
			rj = len(menu.Categories())
		}
		if ri != rj {
			return ri < rj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func zero(label string) Report {
	return Report{
		Revenue:           decimal.Zero,
		AverageOrderValue: decimal.Zero,
		Series:            []Bucket{},
		SeriesLabel:       label,
		Categories:        []CategoryRevenue{},
	}
}

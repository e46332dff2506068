// Package week buckets orders into the calendar days of an ISO-8601 week.
//
// Weeks run Monday through Sunday and week 1 of a year is the week that
// contains January 4th (equivalently, the year's first Thursday). All
// functions are pure: the same input always yields the same output.
package week

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KretovDmitry/ordermart/internal/models/order"
	"github.com/shopspring/decimal"
)

// Week is an ISO year and week number.
type Week struct {
	Year   int
	Number int
}

// labelPattern matches the value of an <input type="week">, e.g. 2021-W23.
var labelPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// Of returns the ISO week that contains t.
func Of(t time.Time) Week {
	year, number := t.ISOWeek()
	return Week{Year: year, Number: number}
}

// String returns the canonical YYYY-Www label.
func (w Week) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Number)
}

// Add returns the week n weeks after w (before it for negative n).
func (w Week) Add(n int) Week {
	monday := Dates(w.Year, w.Number, time.UTC)[0]
	return Of(monday.AddDate(0, 0, 7*n))
}

// Prev returns the preceding week.
func (w Week) Prev() Week { return w.Add(-1) }

// Next returns the following week.
func (w Week) Next() Week { return w.Add(1) }

// WeeksInYear returns the number of ISO weeks in year, 52 or 53.
// December 28th always falls in the last week of its ISO year.
func WeeksInYear(year int) int {
	_, n := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return n
}

// Parse parses a YYYY-Www label. It reports false for anything that does not
// match the pattern exactly or names a week the year does not have.
func Parse(label string) (Week, bool) {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return Week{}, false
	}

	// The pattern guarantees both groups are decimal digits.
	year, _ := strconv.Atoi(m[1])
	number, _ := strconv.Atoi(m[2])

	if number < 1 || number > WeeksInYear(year) {
		return Week{}, false
	}

	return Week{Year: year, Number: number}, true
}

// ResolveWeek returns the week named by label, or the week containing today
// when the label is empty or invalid. It never fails.
func ResolveWeek(label string, today time.Time) Week {
	if w, ok := Parse(label); ok {
		return w
	}
	return Of(today)
}

// Dates returns Monday through Sunday of the given ISO week, each at
// midnight in loc.
func Dates(year, week int, loc *time.Location) [7]time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	// Days between the Monday of week 1 and January 4th.
	offset := (int(jan4.Weekday()) + 6) % 7

	var days [7]time.Time
	for i := range days {
		days[i] = time.Date(year, time.January, 4-offset+(week-1)*7+i, 0, 0, 0, 0, loc)
	}

	return days
}

// DayBounds returns the first and the last second of the calendar day of d
// in d's location.
func DayBounds(d time.Time) (start, end time.Time) {
	y, m, day := d.Date()
	loc := d.Location()
	return time.Date(y, m, day, 0, 0, 0, 0, loc), time.Date(y, m, day, 23, 59, 59, 0, loc)
}

// DayStat holds the orders of one calendar day.
type DayStat struct {
	Date    time.Time
	Clients []string
	Total   decimal.Decimal
}

// ClientsLabel returns the day's clients as a comma separated list.
func (d DayStat) ClientsLabel() string {
	return strings.Join(d.Clients, ", ")
}

// Summary holds the per-day statistics and the totals of a week.
type Summary struct {
	Days    [7]DayStat
	Clients []string
	Total   decimal.Decimal
}

// ClientsLabel returns the week's clients as a comma separated list.
func (s Summary) ClientsLabel() string {
	return strings.Join(s.Clients, ", ")
}

// Aggregate buckets orders into the given days. An order belongs to a day
// when its timestamp, truncated to the second, lies within the inclusive
// [00:00:00, 23:59:59] range of that day. Orders outside all days are ignored.
// Client lists are distinct and sorted; totals are rounded to cents.
func Aggregate(orders []*order.Order, dates [7]time.Time) Summary {
	s := Summary{Total: decimal.Zero}
	weekClients := make(map[string]struct{})

	for i, d := range dates {
		start, end := DayBounds(d)

		total := decimal.Zero
		clients := make(map[string]struct{})

		for _, o := range orders {
			at := o.DateOrder.Truncate(time.Second)
			if at.Before(start) || at.After(end) {
				continue
			}
			total = total.Add(o.Total)
			clients[o.ClientName] = struct{}{}
			weekClients[o.ClientName] = struct{}{}
		}

		s.Days[i] = DayStat{
			Date:    start,
			Clients: sortedKeys(clients),
			Total:   total.Round(2),
		}
		s.Total = s.Total.Add(s.Days[i].Total)
	}

	s.Total = s.Total.Round(2)
	s.Clients = sortedKeys(weekClients)

	return s
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

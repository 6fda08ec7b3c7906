package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"FoodBot/internal/analyzer"
)

// Значения по умолчанию для размера выдачи
const (
	DefaultTopN    = 10
	DefaultWindowN = 20
)

const hourLayout = "15:04"

var (
	ErrInvalidHour   = errors.New("время должно быть в формате HH:MM")
	ErrInvalidWindow = errors.New("конец окна должен быть позже начала")
)

// MostPopular возвращает n самых упоминаемых ресторанов, по одному имени в строке
func (t *Table) MostPopular(n int) string {
	rows := t.sorted(func(a, b Aggregate) bool {
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Restaurant < b.Restaurant
	})

	var sb strings.Builder
	for _, row := range head(rows, n) {
		sb.WriteString(row.Restaurant)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Earliest возвращает n ресторанов с самым ранним средним временем прихода
func (t *Table) Earliest(n int) string {
	return render(head(t.sorted(byMeanAscending), n))
}

// Latest возвращает n ресторанов с самым поздним средним временем прихода
func (t *Table) Latest(n int) string {
	rows := t.sorted(func(a, b Aggregate) bool {
		if !a.MeanAt.Equal(b.MeanAt) {
			return a.MeanAt.After(b.MeanAt)
		}
		return a.Restaurant < b.Restaurant
	})
	return render(head(rows, n))
}

// TimeWindow возвращает рестораны со средним временем в полуинтервале [start, end).
// Границы - строки HH:MM на опорной дате в зоне TimeZone.
func (t *Table) TimeWindow(start, end string, n int) (string, error) {
	from, err := t.parseHour(start)
	if err != nil {
		return "", err
	}
	to, err := t.parseHour(end)
	if err != nil {
		return "", err
	}
	if !to.After(from) {
		return "", fmt.Errorf("%w: %s - %s", ErrInvalidWindow, start, end)
	}

	var rows []Aggregate
	for _, row := range t.sorted(byMeanAscending) {
		if !row.MeanAt.Before(from) && row.MeanAt.Before(to) {
			rows = append(rows, row)
		}
	}
	return render(head(rows, n)), nil
}

// Single возвращает строку для одного ресторана или пустую строку, если его нет
func (t *Table) Single(restaurant string) string {
	row, ok := t.Lookup(restaurant)
	if !ok {
		return ""
	}
	return row.Restaurant + "\t" + row.MeanAt.Format(hourLayout)
}

// parseHour читает HH:MM как момент на опорной дате
func (t *Table) parseHour(hour string) (time.Time, error) {
	parsed, err := time.Parse(hourLayout, hour)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidHour, hour)
	}
	return time.Date(analyzer.ReferenceYear, analyzer.ReferenceMonth, analyzer.ReferenceDay,
		parsed.Hour(), parsed.Minute(), 0, 0, t.Location()), nil
}

// sorted возвращает отсортированную копию строк; сама таблица не меняется
func (t *Table) sorted(less func(a, b Aggregate) bool) []Aggregate {
	rows := t.Rows()
	sort.SliceStable(rows, func(i, j int) bool {
		return less(rows[i], rows[j])
	})
	return rows
}

func byMeanAscending(a, b Aggregate) bool {
	if !a.MeanAt.Equal(b.MeanAt) {
		return a.MeanAt.Before(b.MeanAt)
	}
	return a.Restaurant < b.Restaurant
}

func head(rows []Aggregate, n int) []Aggregate {
	if n <= 0 {
		return nil
	}
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

// render печатает "имя<TAB>HH:MM" по строке на ресторан
func render(rows []Aggregate) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(row.Restaurant)
		sb.WriteByte('\t')
		sb.WriteString(row.MeanAt.Format(hourLayout))
		sb.WriteByte('\n')
	}
	return sb.String()
}

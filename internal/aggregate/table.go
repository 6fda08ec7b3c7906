package aggregate

import (
	"math"
	"sort"
	"time"

	"FoodBot/internal/analyzer"
)

// TimeZone - зона, в которой показывается среднее время прихода
const TimeZone = "Asia/Dubai"

// DefaultMinThreshold - минимальное число упоминаний, чтобы ресторан попал в таблицу
const DefaultMinThreshold = 4

// Aggregate - статистика по одному ресторану
type Aggregate struct {
	Restaurant string
	Count      int
	MeanEpoch  float64   // среднее по Unix-секундам наблюдений
	MeanAt     time.Time // MeanEpoch в зоне TimeZone
}

// Table - неизменяемый снимок агрегатов; безопасен для конкурентного чтения
type Table struct {
	rows  []Aggregate // по имени ресторана, как группирует источник
	index map[string]int
	loc   *time.Location
}

// Build группирует наблюдения по точному имени ресторана и отбрасывает редкие
func Build(observations []analyzer.Observation, minThreshold int) *Table {
	loc := location

	type accumulator struct {
		count int
		sum   float64
	}
	groups := make(map[string]*accumulator)
	for _, obs := range observations {
		acc, ok := groups[obs.Restaurant]
		if !ok {
			acc = &accumulator{}
			groups[obs.Restaurant] = acc
		}
		acc.count++
		acc.sum += float64(obs.ArrivedAt.Unix())
	}

	rows := make([]Aggregate, 0, len(groups))
	for name, acc := range groups {
		if acc.count < minThreshold {
			continue
		}
		mean := acc.sum / float64(acc.count)
		rows = append(rows, Aggregate{
			Restaurant: name,
			Count:      acc.count,
			MeanEpoch:  mean,
			MeanAt:     epochToTime(mean).In(loc),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Restaurant < rows[j].Restaurant
	})

	index := make(map[string]int, len(rows))
	for i, row := range rows {
		index[row.Restaurant] = i
	}

	return &Table{rows: rows, index: index, loc: loc}
}

// Len возвращает число ресторанов в таблице
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows возвращает копию строк таблицы в порядке имен
func (t *Table) Rows() []Aggregate {
	if t == nil {
		return nil
	}
	rows := make([]Aggregate, len(t.rows))
	copy(rows, t.rows)
	return rows
}

// Lookup ищет ресторан по точному имени
func (t *Table) Lookup(restaurant string) (Aggregate, bool) {
	if t == nil {
		return Aggregate{}, false
	}
	i, ok := t.index[restaurant]
	if !ok {
		return Aggregate{}, false
	}
	return t.rows[i], true
}

// Location возвращает зону, в которой таблица показывает время
func (t *Table) Location() *time.Location {
	if t == nil || t.loc == nil {
		return location
	}
	return t.loc
}

// epochToTime переводит дробные Unix-секунды во время без потери долей секунды
func epochToTime(epoch float64) time.Time {
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9)))
}

// location загружается один раз, чтобы все таблицы делили одну и ту же зону
var location = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation(TimeZone)
	if err != nil {
		// без tzdata в системе: у Дубая нет перехода на летнее время
		return time.FixedZone(TimeZone, 4*60*60)
	}
	return loc
}

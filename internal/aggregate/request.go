package aggregate

import (
	"errors"
	"fmt"
)

var ErrUnknownRequest = errors.New("неизвестный тип запроса")

// Request - один из пяти видов запроса к таблице
type Request interface {
	// Kind возвращает короткое имя запроса для логов и метрик
	Kind() string
}

// MostPopular - самые упоминаемые рестораны
type MostPopular struct{ N int }

// Earliest - рестораны, которые приезжают раньше всех
type Earliest struct{ N int }

// Latest - рестораны, которые приезжают позже всех
type Latest struct{ N int }

// TimeWindow - рестораны со средним временем в [Start, End)
type TimeWindow struct {
	Start string
	End   string
	N     int
}

// SingleRestaurant - среднее время одного ресторана
type SingleRestaurant struct{ Name string }

func (MostPopular) Kind() string      { return "popular" }
func (Earliest) Kind() string         { return "earliest" }
func (Latest) Kind() string           { return "latest" }
func (TimeWindow) Kind() string       { return "window" }
func (SingleRestaurant) Kind() string { return "single" }

// Answer выполняет запрос; нулевой N заменяется значением по умолчанию
func (t *Table) Answer(req Request) (string, error) {
	switch r := req.(type) {
	case MostPopular:
		return t.MostPopular(orDefault(r.N, DefaultTopN)), nil
	case Earliest:
		return t.Earliest(orDefault(r.N, DefaultTopN)), nil
	case Latest:
		return t.Latest(orDefault(r.N, DefaultTopN)), nil
	case TimeWindow:
		return t.TimeWindow(r.Start, r.End, orDefault(r.N, DefaultWindowN))
	case SingleRestaurant:
		return t.Single(r.Name), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownRequest, req)
	}
}

func orDefault(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}

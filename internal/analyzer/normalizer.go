package analyzer

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Опорная дата, на которую переносятся все наблюдения
const (
	ReferenceYear  = 1983
	ReferenceMonth = time.December
	ReferenceDay   = 9
)

// DefaultMaxLength - фрагменты такой длины и длиннее считаются прозой, а не названием
const DefaultMaxLength = 20

var rejectMarkers = []string{
	"has joined the channel",
	"uploaded a file",
	"?",
	"#",
	"@",
	"(",
	")",
}

// Normalizer превращает сырые сообщения канала в список наблюдений
type Normalizer struct {
	MaxLength int
	Location  *time.Location // зона, в которой читается время сообщения; nil - time.Local
}

// NewNormalizer создает нормализатор с заданным лимитом длины фрагмента
func NewNormalizer(maxLength int) *Normalizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Normalizer{MaxLength: maxLength}
}

// Normalize фильтрует, чистит, режет сообщения и переносит их время на опорную дату.
// Битые записи молча отбрасываются, пустой вход дает пустой результат.
func (n *Normalizer) Normalize(messages []RawMessage) []Observation {
	maxLength := n.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	var fragments []fragment
	for _, msg := range messages {
		if msg.Kind != KindMessage {
			continue
		}
		text := cleanMessage(msg.Text)
		if !acceptMessage(text) {
			continue
		}
		fragments = append(fragments, splitMessage(text, msg.Timestamp)...)
	}

	observations := make([]Observation, 0, len(fragments))
	for _, f := range fragments {
		if utf8.RuneCountInString(f.text) >= maxLength {
			continue
		}
		arrived, ok := n.normalizeTimestamp(f.timestamp)
		if !ok {
			continue
		}
		observations = append(observations, Observation{
			Restaurant: f.text,
			ArrivedAt:  arrived,
		})
	}

	return observations
}

// normalizeTimestamp берет целые секунды метки и переносит время суток на опорную дату
func (n *Normalizer) normalizeTimestamp(ts string) (time.Time, bool) {
	seconds, _, _ := strings.Cut(ts, ".")
	epoch, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	loc := n.Location
	if loc == nil {
		loc = time.Local
	}

	t := time.Unix(epoch, 0).In(loc)
	return time.Date(ReferenceYear, ReferenceMonth, ReferenceDay, t.Hour(), t.Minute(), t.Second(), 0, loc), true
}

// cleanMessage убирает пробелы по краям и все восклицательные знаки
func cleanMessage(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), "!", "")
}

// acceptMessage пропускает только короткие реплики без служебных маркеров и не на латинице
func acceptMessage(text string) bool {
	for _, marker := range rejectMarkers {
		if strings.Contains(text, marker) {
			return false
		}
	}
	return !isASCII(text)
}

// isASCII повторяет проверку "текст переживает перекодировку UTF-8 -> ASCII"
func isASCII(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// splitMessage режет текст сначала по переводам строк, потом по запятым
func splitMessage(text, timestamp string) []fragment {
	var fragments []fragment
	for _, line := range strings.Split(text, "\n") {
		for _, part := range strings.Split(line, ",") {
			fragments = append(fragments, fragment{text: part, timestamp: timestamp})
		}
	}
	return fragments
}

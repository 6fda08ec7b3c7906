package analyzer

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utcNormalizer() *Normalizer {
	n := NewNormalizer(DefaultMaxLength)
	n.Location = time.UTC
	return n
}

func msg(text, ts string) RawMessage {
	return RawMessage{Kind: KindMessage, Text: text, Timestamp: ts}
}

func TestNormalizeMovesTimeToReferenceDate(t *testing.T) {
	observations := utcNormalizer().Normalize([]RawMessage{
		msg("寿司", "100.0"),
		msg("Пицца", "1700000000.123456"),
	})

	require.Len(t, observations, 2)
	assert.Equal(t, "寿司", observations[0].Restaurant)
	assert.Equal(t, time.Date(1983, time.December, 9, 0, 1, 40, 0, time.UTC), observations[0].ArrivedAt)
	assert.Equal(t, int64(439776100), observations[0].ArrivedAt.Unix())

	// 1700000000 = 2023-11-14 22:13:20 UTC
	assert.Equal(t, time.Date(1983, time.December, 9, 22, 13, 20, 0, time.UTC), observations[1].ArrivedAt)
}

func TestNormalizeUsesConfiguredLocation(t *testing.T) {
	n := NewNormalizer(DefaultMaxLength)
	n.Location = time.FixedZone("UTC+3", 3*60*60)

	observations := n.Normalize([]RawMessage{msg("Шаурма", "1700000000.0")})

	require.Len(t, observations, 1)
	// 22:13:20 UTC = 01:13:20 следующего дня в UTC+3, дата все равно опорная
	assert.Equal(t, 1, observations[0].ArrivedAt.Hour())
	assert.Equal(t, 9, observations[0].ArrivedAt.Day())
	assert.Equal(t, time.Date(1983, 12, 8, 22, 13, 20, 0, time.UTC), observations[0].ArrivedAt.UTC())
}

func TestNormalizeFiltersMessages(t *testing.T) {
	tests := []struct {
		name    string
		message RawMessage
		want    int
	}{
		{name: "plain cyrillic", message: msg("Суши", "10.0"), want: 1},
		{name: "not a message", message: RawMessage{Kind: "service", Text: "Суши", Timestamp: "10.0"}, want: 0},
		{name: "ascii only", message: msg("Sushi Bar", "10.0"), want: 0},
		{name: "question", message: msg("Суши?", "10.0"), want: 0},
		{name: "hash", message: msg("#Суши", "10.0"), want: 0},
		{name: "mention", message: msg("@вася Суши", "10.0"), want: 0},
		{name: "parenthesis", message: msg("Суши (опять)", "10.0"), want: 0},
		{name: "joined", message: msg("Вася has joined the channel", "10.0"), want: 0},
		{name: "upload", message: msg("Вася uploaded a file", "10.0"), want: 0},
		{name: "bad timestamp", message: msg("Суши", "вчера"), want: 0},
		{name: "empty timestamp", message: msg("Суши", ""), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := utcNormalizer().Normalize([]RawMessage{tt.message})
			assert.Len(t, got, tt.want)
		})
	}
}

func TestNormalizeCleansBeforeFiltering(t *testing.T) {
	observations := utcNormalizer().Normalize([]RawMessage{
		msg("  Суши!!  ", "10.0"),
		// после обрезки остается только латиница
		msg("Sushi\u3000", "10.0"),
	})

	require.Len(t, observations, 1)
	assert.Equal(t, "Суши", observations[0].Restaurant)
}

func TestNormalizeSplitsAndDropsLongFragments(t *testing.T) {
	observations := utcNormalizer().Normalize([]RawMessage{
		msg("Суши, Пицца\nБургеры\nСегодня очень долго ехали все курьеры", "3600.5"),
	})

	require.Len(t, observations, 3)
	assert.Equal(t, "Суши", observations[0].Restaurant)
	assert.Equal(t, " Пицца", observations[1].Restaurant)
	assert.Equal(t, "Бургеры", observations[2].Restaurant)
	for _, obs := range observations {
		assert.Equal(t, 1, obs.ArrivedAt.Hour())
	}
}

func TestNormalizeLengthIsCountedInCharacters(t *testing.T) {
	nineteen := strings.Repeat("Ж", 19)
	twenty := nineteen + "Ж"

	observations := utcNormalizer().Normalize([]RawMessage{
		msg(nineteen, "1.0"),
		msg(twenty, "1.0"),
	})

	require.Len(t, observations, 1)
	assert.Equal(t, nineteen, observations[0].Restaurant)
}

func TestNormalizeEmptyInput(t *testing.T) {
	assert.Empty(t, utcNormalizer().Normalize(nil))
	assert.Empty(t, utcNormalizer().Normalize([]RawMessage{}))
}

func TestSplitMessage(t *testing.T) {
	fragments := splitMessage("Pizza Place, Sushi Bar\nTaco Truck", "42.0")

	require.Len(t, fragments, 3)
	assert.Equal(t, fragment{text: "Pizza Place", timestamp: "42.0"}, fragments[0])
	assert.Equal(t, fragment{text: " Sushi Bar", timestamp: "42.0"}, fragments[1])
	assert.Equal(t, fragment{text: "Taco Truck", timestamp: "42.0"}, fragments[2])
}

func TestNormalizeIsIdempotentOnMinimalFragments(t *testing.T) {
	n := utcNormalizer()
	first := n.Normalize([]RawMessage{
		msg("Суши", "36000.0"),
		msg("Пицца\nБургеры", "40000.0"),
	})

	refed := make([]RawMessage, 0, len(first))
	for _, obs := range first {
		refed = append(refed, msg(obs.Restaurant, strconv.FormatInt(obs.ArrivedAt.Unix(), 10)+".0"))
	}
	second := n.Normalize(refed)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Restaurant, second[i].Restaurant)
		assert.Equal(t, first[i].ArrivedAt.Format("15:04"), second[i].ArrivedAt.Format("15:04"))
	}
}

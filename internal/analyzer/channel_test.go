package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHistoryAPI struct {
	chats    []tg.ChatClass
	messages []tg.MessageClass // новые первыми, как отдает Telegram
	requests []*tg.MessagesGetHistoryRequest
	err      error
}

func (f *fakeHistoryAPI) ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tg.ContactsResolvedPeer{Chats: f.chats}, nil
}

func (f *fakeHistoryAPI) MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error) {
	f.requests = append(f.requests, request)

	start := 0
	if request.OffsetID != 0 {
		for i, m := range f.messages {
			if m.GetID() == request.OffsetID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+request.Limit, len(f.messages))

	return &tg.MessagesChannelMessages{Messages: f.messages[start:end]}, nil
}

func newTestReader(api historyAPI, days, limit int, now time.Time) *ChannelReader {
	r := NewChannelReader(api, "obed", days, limit, zap.NewNop().Sugar())
	r.now = func() time.Time { return now }
	return r
}

func TestChannelReaderPagesHistory(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeHistoryAPI{chats: []tg.ChatClass{&tg.Channel{ID: 7, AccessHash: 42}}}
	for i := 250; i > 0; i-- {
		api.messages = append(api.messages, &tg.Message{
			ID:      i,
			Message: "Суши",
			Date:    int(now.Add(-time.Duration(251-i) * time.Minute).Unix()),
		})
	}

	messages, err := newTestReader(api, 90, 1000, now).FetchMessages(context.Background())

	require.NoError(t, err)
	assert.Len(t, messages, 250)
	assert.Len(t, api.requests, 3)
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: 7, AccessHash: 42}, api.requests[0].Peer)
	assert.Equal(t, 151, api.requests[1].OffsetID)
	assert.Equal(t, KindMessage, messages[0].Kind)
	assert.Equal(t, "Суши", messages[0].Text)
}

func TestChannelReaderStopsAtLimit(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeHistoryAPI{chats: []tg.ChatClass{&tg.Channel{ID: 7}}}
	for i := 300; i > 0; i-- {
		api.messages = append(api.messages, &tg.Message{ID: i, Message: "Суши", Date: int(now.Unix())})
	}

	messages, err := newTestReader(api, 90, 120, now).FetchMessages(context.Background())

	require.NoError(t, err)
	assert.Len(t, messages, 120)
	assert.Equal(t, 20, api.requests[1].Limit)
}

func TestChannelReaderStopsAtOldestDay(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeHistoryAPI{
		chats: []tg.ChatClass{&tg.Channel{ID: 7}},
		messages: []tg.MessageClass{
			&tg.Message{ID: 4, Message: "Суши", Date: int(now.Add(-time.Hour).Unix())},
			&tg.MessageService{ID: 3, Date: int(now.Add(-2 * time.Hour).Unix())},
			&tg.MessageEmpty{ID: 2},
			&tg.Message{ID: 1, Message: "Пицца", Date: int(now.AddDate(0, 0, -3).Unix())},
		},
	}

	messages, err := newTestReader(api, 2, 1000, now).FetchMessages(context.Background())

	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Суши", messages[0].Text)
	assert.Equal(t, "service", messages[1].Kind)
	assert.Equal(t, formatTimestamp(int(now.Add(-time.Hour).Unix())), messages[0].Timestamp)
}

func TestChannelReaderRejectsNonChannel(t *testing.T) {
	api := &fakeHistoryAPI{chats: []tg.ChatClass{&tg.Chat{ID: 1}}}

	_, err := newTestReader(api, 90, 1000, time.Now()).FetchMessages(context.Background())

	assert.Error(t, err)
}

func TestChannelReaderWrapsResolveError(t *testing.T) {
	boom := errors.New("flood wait")
	api := &fakeHistoryAPI{err: boom}

	_, err := newTestReader(api, 90, 1000, time.Now()).FetchMessages(context.Background())

	assert.ErrorIs(t, err, boom)
}

func TestTimestampsSurviveNormalization(t *testing.T) {
	date := time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)
	raw, _, ok := toRawMessage(&tg.Message{ID: 1, Message: "Суши", Date: int(date.Unix())})
	require.True(t, ok)

	observations := utcNormalizer().Normalize([]RawMessage{raw})

	require.Len(t, observations, 1)
	assert.Equal(t, time.Date(1983, time.December, 9, 9, 30, 15, 0, time.UTC), observations[0].ArrivedAt)
}

package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Размер страницы messages.getHistory
const historyPageSize = 100

// historyAPI - часть tg.Client, которая нужна для чтения истории канала
type historyAPI interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
}

// ChannelReader читает историю публичного канала через MTProto
type ChannelReader struct {
	api      historyAPI
	username string
	days     int
	limit    int
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewChannelReader создает читателя истории канала
func NewChannelReader(api historyAPI, username string, days, limit int, logger *zap.SugaredLogger) *ChannelReader {
	return &ChannelReader{
		api:      api,
		username: username,
		days:     days,
		limit:    limit,
		logger:   logger,
		now:      time.Now,
	}
}

// FetchMessages возвращает до limit сообщений за последние days дней, новые первыми
func (r *ChannelReader) FetchMessages(ctx context.Context) ([]RawMessage, error) {
	peer, err := r.resolvePeer(ctx)
	if err != nil {
		return nil, err
	}

	oldest := r.now().AddDate(0, 0, -r.days).Unix()
	r.logger.Infof("📥 Читаю историю @%s: до %d сообщений за %d дней", r.username, r.limit, r.days)

	var messages []RawMessage
	offsetID := 0
	for len(messages) < r.limit {
		pageSize := min(historyPageSize, r.limit-len(messages))

		res, err := r.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("ошибка получения истории @%s: %w", r.username, err)
		}

		page := historyMessages(res)
		if len(page) == 0 {
			break
		}

		reachedOldest := false
		for _, m := range page {
			offsetID = m.GetID()

			raw, date, ok := toRawMessage(m)
			if !ok {
				continue
			}
			if int64(date) < oldest {
				reachedOldest = true
				break
			}
			messages = append(messages, raw)
		}

		if reachedOldest || len(page) < pageSize {
			break
		}
	}

	r.logger.Infof("✅ Получено %d сообщений из @%s", len(messages), r.username)
	return messages, nil
}

// resolvePeer находит канал по username
func (r *ChannelReader) resolvePeer(ctx context.Context) (tg.InputPeerClass, error) {
	resolved, err := r.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: r.username,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска канала @%s: %w", r.username, err)
	}

	for _, chat := range resolved.Chats {
		if channel, ok := chat.(*tg.Channel); ok {
			return &tg.InputPeerChannel{
				ChannelID:  channel.ID,
				AccessHash: channel.AccessHash,
			}, nil
		}
	}

	return nil, fmt.Errorf("@%s не является каналом", r.username)
}

func historyMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch v := res.(type) {
	case *tg.MessagesMessages:
		return v.Messages
	case *tg.MessagesMessagesSlice:
		return v.Messages
	case *tg.MessagesChannelMessages:
		return v.Messages
	default:
		return nil
	}
}

// toRawMessage приводит сообщение Telegram к виду {type, text, ts}
func toRawMessage(m tg.MessageClass) (RawMessage, int, bool) {
	switch v := m.(type) {
	case *tg.Message:
		return RawMessage{
			Kind:      KindMessage,
			Text:      v.Message,
			Timestamp: formatTimestamp(v.Date),
		}, v.Date, true
	case *tg.MessageService:
		return RawMessage{
			Kind:      "service",
			Timestamp: formatTimestamp(v.Date),
		}, v.Date, true
	default:
		return RawMessage{}, 0, false
	}
}

func formatTimestamp(unix int) string {
	return fmt.Sprintf("%d.000000", unix)
}

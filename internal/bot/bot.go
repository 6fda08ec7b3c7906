package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"FoodBot/internal/aggregate"
	"FoodBot/internal/config"
	"FoodBot/internal/metrics"
	"FoodBot/internal/snapshot"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	refreshCooldown = 30 * time.Second
	emptyAnswer     = "Нет результатов"
	failedAnswer    = "⚠️ Не удалось получить данные о доставках, попробуйте позже"
)

// ErrUnknownSelection - кнопка с неизвестным кодом
var ErrUnknownSelection = errors.New("неизвестная кнопка")

// Коды кнопок клавиатуры
const (
	SelectPopular    = "popular"
	SelectEarliest   = "earliest"
	SelectLatest     = "latest"
	SelectFirstHalf  = "first_half"
	SelectSecondHalf = "second_half"
)

// sender - часть tgbotapi.BotAPI, которой пользуется бот
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Snapshots отдает актуальную таблицу доставок
type Snapshots interface {
	Get(ctx context.Context) (*snapshot.Snapshot, error)
	Refresh(ctx context.Context) (*snapshot.Snapshot, error)
}

// Windows - окна времени для кнопок "до" и "после"
type Windows struct {
	FirstHalf  config.Window
	SecondHalf config.Window
}

// Bot представляет Telegram бота
type Bot struct {
	api         sender
	snapshots   Snapshots
	windows     Windows
	metrics     *metrics.Metrics
	logger      *zap.SugaredLogger
	mu          sync.Mutex
	lastRefresh map[int64]time.Time // Время последнего /refresh по чату
	now         func() time.Time
}

// New создает нового бота
func New(api sender, snapshots Snapshots, windows Windows, m *metrics.Metrics, logger *zap.SugaredLogger) *Bot {
	return &Bot{
		api:         api,
		snapshots:   snapshots,
		windows:     windows,
		metrics:     m,
		logger:      logger,
		lastRefresh: make(map[int64]time.Time),
		now:         time.Now,
	}
}

// Run обрабатывает обновления, пока не закроется канал или не отменится ctx
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	b.logger.Infof("🤖 Бот запущен")

	for {
		select {
		case <-ctx.Done():
			b.logger.Infof("🛑 Бот остановлен")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate обрабатывает одно обновление Telegram
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || (msg.From != nil && msg.From.IsBot) {
		return
	}

	// Обрабатываем команды
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(msg)
		case "help":
			b.handleHelp(msg)
		case "when":
			b.handleWhen(ctx, msg)
		case "refresh":
			b.handleRefresh(ctx, msg)
		default:
			b.sendMessage(msg.Chat.ID, "❌ Неизвестная команда. Используйте /help для списка команд.")
		}
		return
	}

	if strings.TrimSpace(msg.Text) != "" {
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Что показать?")
		reply.ReplyMarkup = Keyboard()
		b.send(reply)
	}
}

// Keyboard - пять кнопок выбора запроса
func Keyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔥 Самые популярные", SelectPopular),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌅 Приезжают раньше всех", SelectEarliest),
			tgbotapi.NewInlineKeyboardButtonData("🌙 Приезжают позже всех", SelectLatest),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏪ До 12:30", SelectFirstHalf),
			tgbotapi.NewInlineKeyboardButtonData("⏩ После 12:30", SelectSecondHalf),
		),
	)
}

// ParseSelection переводит код кнопки в запрос к таблице
func ParseSelection(code string, windows Windows) (aggregate.Request, error) {
	switch code {
	case SelectPopular:
		return aggregate.MostPopular{}, nil
	case SelectEarliest:
		return aggregate.Earliest{}, nil
	case SelectLatest:
		return aggregate.Latest{}, nil
	case SelectFirstHalf:
		return aggregate.TimeWindow{Start: windows.FirstHalf.Start, End: windows.FirstHalf.End}, nil
	case SelectSecondHalf:
		return aggregate.TimeWindow{Start: windows.SecondHalf.Start, End: windows.SecondHalf.End}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSelection, code)
	}
}

// handleCallback отвечает на нажатие кнопки, заменяя текст сообщения с клавиатурой
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	req, err := ParseSelection(cq.Data, b.windows)
	if err != nil {
		b.logger.Warnf("⚠️ %v", err)
		b.ackCallback(cq.ID, "❌ Неизвестная кнопка")
		return
	}

	text := b.answer(ctx, req)

	if cq.Message != nil {
		edit := tgbotapi.NewEditMessageTextAndMarkup(cq.Message.Chat.ID, cq.Message.MessageID, text, Keyboard())
		b.send(edit)
	}
	b.ackCallback(cq.ID, "")
}

// handleWhen обрабатывает команду /when <ресторан>
func (b *Bot) handleWhen(ctx context.Context, msg *tgbotapi.Message) {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		b.sendMarkdown(msg.Chat.ID, "❌ *Не указан ресторан*\n\nПример: `/when Пицца`")
		return
	}

	b.sendMessage(msg.Chat.ID, b.answer(ctx, aggregate.SingleRestaurant{Name: name}))
}

// handleRefresh пересобирает таблицу по запросу, не чаще раза в 30 секунд на чат
func (b *Bot) handleRefresh(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if left := b.cooldownLeft(chatID); left > 0 {
		b.sendMessage(chatID, fmt.Sprintf("⏳ Пожалуйста, подождите %d секунд перед следующим обновлением", left))
		return
	}
	b.markRefresh(chatID)

	processing := b.sendMessage(chatID, "🔄 Обновляю данные о доставках...")

	snap, err := b.snapshots.Refresh(ctx)
	if err != nil {
		b.logger.Errorf("❌ Ошибка обновления по запросу чата %d: %v", chatID, err)
		b.editMessage(chatID, processing.MessageID, failedAnswer)
		return
	}

	text := fmt.Sprintf("✅ Данные обновлены: %d ресторанов из %d сообщений", snap.Table.Len(), snap.Messages)
	if snap.Stale {
		text += staleNote(snap)
	}
	b.editMessage(chatID, processing.MessageID, text)
}

// answer выполняет запрос на текущем снимке и готовит текст ответа
func (b *Bot) answer(ctx context.Context, req aggregate.Request) string {
	snap, err := b.snapshots.Get(ctx)
	if err != nil {
		b.metrics.ObserveQuery(req.Kind(), false, err)
		b.logger.Errorf("❌ Снимок недоступен: %v", err)
		return failedAnswer
	}

	text, err := snap.Table.Answer(req)
	b.metrics.ObserveQuery(req.Kind(), text == "", err)
	if err != nil {
		b.logger.Warnf("⚠️ Ошибка запроса %s: %v", req.Kind(), err)
		return "❌ Не удалось выполнить запрос"
	}

	text = strings.TrimRight(text, "\n")
	if text == "" {
		text = emptyAnswer
	}
	if snap.Stale {
		text += staleNote(snap)
	}
	return text
}

func staleNote(snap *snapshot.Snapshot) string {
	return fmt.Sprintf("\n\n⚠️ Канал недоступен, данные от %s", snap.FetchedAt.Format("02.01.2006 15:04"))
}

// cooldownLeft возвращает, сколько секунд осталось до следующего /refresh
func (b *Bot) cooldownLeft(chatID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	last, exists := b.lastRefresh[chatID]
	if !exists {
		return 0
	}
	left := refreshCooldown - b.now().Sub(last)
	if left <= 0 {
		return 0
	}
	return int(left.Round(time.Second) / time.Second)
}

func (b *Bot) markRefresh(chatID int64) {
	b.mu.Lock()
	b.lastRefresh[chatID] = b.now()
	b.mu.Unlock()
}

// send отправляет любое сообщение и логирует ошибку
func (b *Bot) send(c tgbotapi.Chattable) tgbotapi.Message {
	message, err := b.api.Send(c)
	if err != nil {
		b.logger.Errorf("Ошибка отправки сообщения: %v", err)
	}
	return message
}

// sendMessage отправляет текст без разметки, названия ресторанов могут содержать _ и *
func (b *Bot) sendMessage(chatID int64, text string) tgbotapi.Message {
	return b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMarkdown(chatID int64, text string) tgbotapi.Message {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return b.send(msg)
}

// editMessage редактирует существующее сообщение
func (b *Bot) editMessage(chatID int64, messageID int, text string) {
	b.send(tgbotapi.NewEditMessageText(chatID, messageID, text))
}

func (b *Bot) ackCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Errorf("Ошибка ответа на нажатие кнопки: %v", err)
	}
}

// handleStart обрабатывает команду /start
func (b *Bot) handleStart(msg *tgbotapi.Message) {
	welcomeText := `👋 *Добро пожаловать в FoodBot!*

Я слежу за каналом доставок и знаю, когда обычно приезжает еда из каждого ресторана.

📋 *Доступные команды:*
/start - начать работу
/help - показать справку
/when <ресторан> - среднее время доставки
/refresh - обновить данные

Напишите мне что угодно, и я покажу кнопки.`

	reply := tgbotapi.NewMessage(msg.Chat.ID, welcomeText)
	reply.ParseMode = tgbotapi.ModeMarkdown
	reply.ReplyMarkup = Keyboard()
	b.send(reply)
}

// handleHelp обрабатывает команду /help
func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	helpText := fmt.Sprintf(`📖 *Справка по командам*

*/start* - начать работу с ботом
*/help* - показать эту справку
*/when <ресторан>* - среднее время доставки ресторана
*/refresh* - перечитать канал (не чаще раза в 30 секунд)

🔘 *Кнопки:*
- Самые популярные - рестораны с наибольшим числом доставок
- Приезжают раньше/позже всех - по среднему времени
- До/После 12:30 - доставки в окнах %s-%s и %s-%s

⚠️ *Важно:* редкие рестораны не учитываются, им не хватает доставок.`,
		b.windows.FirstHalf.Start, b.windows.FirstHalf.End,
		b.windows.SecondHalf.Start, b.windows.SecondHalf.End)

	b.sendMarkdown(msg.Chat.ID, helpText)
}

package snapshot

import (
	"context"
	"fmt"
	"time"

	"FoodBot/internal/aggregate"
	"FoodBot/internal/analyzer"
	"FoodBot/internal/metrics"
	"FoodBot/internal/storage"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTTL        = 24 * time.Hour
	defaultRetryDelay = 2 * time.Second
	defaultStaleRetry = 5 * time.Minute
	snapshotKey       = "messages"
)

// Fetcher отдает полную выгрузку сообщений канала
type Fetcher interface {
	FetchMessages(ctx context.Context) ([]analyzer.RawMessage, error)
}

// Snapshot - неизменяемый результат одной пересборки
type Snapshot struct {
	ID           string
	FetchedAt    time.Time
	BuiltAt      time.Time
	Stale        bool // сообщения взяты из файла, а не из канала
	Messages     int
	Observations int
	Table        *aggregate.Table
}

// Options настраивает кэш снимков
type Options struct {
	TTL          time.Duration
	MinThreshold int
	Attempts     uint
	RetryDelay   time.Duration
	StaleRetry   time.Duration // через сколько снимок из файла снова пробует канал
	Storage      *storage.Storage // необязательный файл с последней выгрузкой
	Metrics      *metrics.Metrics
}

// Cache держит один актуальный снимок и пересобирает его по истечении TTL
type Cache struct {
	fetcher    Fetcher
	normalizer *analyzer.Normalizer
	opts       Options
	snapshots  *lru.LRU[string, *Snapshot]
	group      singleflight.Group
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// New создает кэш снимков
func New(fetcher Fetcher, normalizer *analyzer.Normalizer, opts Options, logger *zap.SugaredLogger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.MinThreshold <= 0 {
		opts.MinThreshold = aggregate.DefaultMinThreshold
	}
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.StaleRetry <= 0 {
		opts.StaleRetry = defaultStaleRetry
	}

	return &Cache{
		fetcher:    fetcher,
		normalizer: normalizer,
		opts:       opts,
		snapshots:  lru.NewLRU[string, *Snapshot](1, nil, opts.TTL),
		logger:     logger,
		now:        time.Now,
	}
}

// Get возвращает живой снимок или пересобирает его.
// Снимок из файла живет не дольше StaleRetry, потом снова пробуем канал.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	snap, ok := c.snapshots.Get(snapshotKey)
	if !ok {
		c.logger.Infof("🔄 Снимка нет в кэше, пересобираю")
		return c.Refresh(ctx)
	}
	if !snap.Stale || c.now().Sub(snap.BuiltAt) < c.opts.StaleRetry {
		return snap, nil
	}

	c.logger.Infof("🔄 Снимок из файла устарел, пробую канал снова")
	fresh, err := c.Refresh(ctx)
	if err != nil {
		c.logger.Warnf("⚠️ Повторная пересборка не удалась, отдаю старый снимок: %v", err)
		return snap, nil
	}
	return fresh, nil
}

// Refresh принудительно пересобирает снимок; параллельные вызовы ждут одну пересборку.
// Пересборка не зависит от отмены ctx первого вызывающего, каждый ждет по своему ctx.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(snapshotKey, func() (interface{}, error) {
		return c.rebuild(detached)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Current возвращает живой снимок без пересборки
func (c *Cache) Current() (*Snapshot, bool) {
	return c.snapshots.Peek(snapshotKey)
}

// Invalidate выбрасывает текущий снимок
func (c *Cache) Invalidate() {
	c.snapshots.Purge()
}

func (c *Cache) rebuild(ctx context.Context) (*Snapshot, error) {
	started := c.now()

	messages, fetchedAt, stale, err := c.fetch(ctx)
	if err != nil {
		c.opts.Metrics.ObserveRefresh("error", c.now().Sub(started))
		return nil, err
	}

	observations := c.normalizer.Normalize(messages)
	table := aggregate.Build(observations, c.opts.MinThreshold)

	snap := &Snapshot{
		ID:           uuid.NewString(),
		FetchedAt:    fetchedAt,
		BuiltAt:      c.now(),
		Stale:        stale,
		Messages:     len(messages),
		Observations: len(observations),
		Table:        table,
	}
	c.snapshots.Add(snapshotKey, snap)

	status := "ok"
	if stale {
		status = "stale"
	}
	c.opts.Metrics.ObserveRefresh(status, c.now().Sub(started))
	c.opts.Metrics.SetSnapshot(table.Len(), len(observations))

	c.logger.Infow("✅ Снимок пересобран",
		"snapshot", snap.ID,
		"messages", snap.Messages,
		"observations", snap.Observations,
		"restaurants", table.Len(),
		"stale", stale,
	)
	return snap, nil
}

// fetch читает канал с повторами; если канал недоступен, берет последнюю сохраненную выгрузку
func (c *Cache) fetch(ctx context.Context) ([]analyzer.RawMessage, time.Time, bool, error) {
	var messages []analyzer.RawMessage
	err := retry.Do(
		func() error {
			fetched, err := c.fetcher.FetchMessages(ctx)
			if err != nil {
				return err
			}
			messages = fetched
			return nil
		},
		retry.Attempts(c.opts.Attempts),
		retry.Delay(c.opts.RetryDelay),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warnf("⚠️ Попытка %d получить сообщения не удалась: %v", n+1, err)
		}),
	)
	if err == nil {
		fetchedAt := c.now()
		if c.opts.Storage != nil {
			if saveErr := c.opts.Storage.Save(storage.Stored{FetchedAt: fetchedAt, Messages: messages}); saveErr != nil {
				c.logger.Warnf("⚠️ Не удалось сохранить выгрузку: %v", saveErr)
			}
		}
		return messages, fetchedAt, false, nil
	}

	fetchErr := fmt.Errorf("ошибка получения сообщений: %w", err)
	if c.opts.Storage == nil {
		return nil, time.Time{}, false, fetchErr
	}

	stored, loadErr := c.opts.Storage.Load()
	if loadErr != nil || stored == nil {
		if loadErr != nil {
			c.logger.Warnf("⚠️ Сохраненная выгрузка недоступна: %v", loadErr)
		}
		return nil, time.Time{}, false, fetchErr
	}

	c.logger.Warnf("⚠️ Канал недоступен (%v), использую выгрузку от %s", err, stored.FetchedAt.Format(time.RFC3339))
	return stored.Messages, stored.FetchedAt, true, nil
}

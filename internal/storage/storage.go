package storage

import (
	"fmt"
	"os"
	"sync"
	"time"

	"FoodBot/internal/analyzer"

	"github.com/segmentio/encoding/json"
)

// Stored - последняя удачная выгрузка сообщений канала
type Stored struct {
	FetchedAt time.Time             `json:"fetched_at"`
	Messages  []analyzer.RawMessage `json:"messages"`
}

// Storage хранит последнюю выгрузку в JSON-файле, чтобы пережить недоступность Telegram.
// Агрегаты здесь не хранятся: они всегда пересобираются из сообщений.
type Storage struct {
	file string
	mu   sync.RWMutex
}

func NewStorage(filename string) *Storage {
	return &Storage{file: filename}
}

// Load читает сохраненную выгрузку; nil без ошибки, если файла еще нет
func (s *Storage) Load() (*Stored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var stored Stored
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON: %w", err)
	}

	return &stored, nil
}

// Save атомарно перезаписывает файл через временный
func (s *Storage) Save(stored Stored) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка маршалинга JSON: %w", err)
	}

	tempFile := s.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("ошибка записи временного файла: %w", err)
	}

	if err := os.Rename(tempFile, s.file); err != nil {
		return fmt.Errorf("ошибка переименования файла: %w", err)
	}

	return nil
}

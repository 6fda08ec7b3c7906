package analyzer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/segmentio/encoding/json"
)

// ExportReader читает сообщения из выгрузки канала: JSON-массив {type, text, ts}
// или каталог таких файлов (по файлу на день)
type ExportReader struct {
	Path string
}

// NewExportReader создает читателя выгрузки
func NewExportReader(path string) *ExportReader {
	return &ExportReader{Path: path}
}

// FetchMessages читает все сообщения выгрузки
func (r *ExportReader) FetchMessages(ctx context.Context) ([]RawMessage, error) {
	info, err := os.Stat(r.Path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения выгрузки: %w", err)
	}

	if !info.IsDir() {
		return readExportFile(r.Path)
	}

	files, err := filepath.Glob(filepath.Join(r.Path, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска файлов выгрузки: %w", err)
	}
	sort.Strings(files)

	var messages []RawMessage
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day, err := readExportFile(file)
		if err != nil {
			return nil, err
		}
		messages = append(messages, day...)
	}

	return messages, nil
}

func readExportFile(path string) ([]RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия %s: %w", path, err)
	}
	defer f.Close()

	messages, err := DecodeMessages(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return messages, nil
}

// DecodeMessages разбирает JSON-массив сообщений.
// Записи без текста или метки не считаются ошибкой: их отбросит нормализатор.
func DecodeMessages(r io.Reader) ([]RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения JSON: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var messages []RawMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON: %w", err)
	}
	return messages, nil
}

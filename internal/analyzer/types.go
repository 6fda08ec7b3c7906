package analyzer

import (
	"time"
)

// KindMessage помечает обычное текстовое сообщение канала
const KindMessage = "message"

// RawMessage представляет одно сообщение канала в том виде, в каком его отдает источник
type RawMessage struct {
	Kind      string `json:"type"`
	Text      string `json:"text"`
	Timestamp string `json:"ts"` // формат "секунды.микросекунды"
}

// Observation - одно упоминание ресторана с нормализованным временем прихода
type Observation struct {
	Restaurant string
	ArrivedAt  time.Time // всегда на опорной дате ReferenceYear/Month/Day
}

// fragment - кусок сообщения, унаследовавший временную метку исходного сообщения
type fragment struct {
	text      string
	timestamp string
}

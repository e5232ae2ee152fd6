package model

import "time"

// Report — жалоба на запись. Сообщение копируется на момент жалобы,
// чтобы модератору не нужно было искать запись. Дубликаты допустимы.
type Report struct {
	ID        int64
	EntryID   string
	Message   string
	CreatedAt time.Time
}

// RateWindow — состояние окна rate limiting для одного хэша клиента.
// Читается и пишется только ограничителем частоты запросов.
type RateWindow struct {
	// IdentityHash — ключевой хэш адреса клиента (сырой адрес не хранится)
	IdentityHash string
	// Count — количество запросов в текущем окне
	Count int
	// WindowStart — начало текущего окна
	WindowStart time.Time
}

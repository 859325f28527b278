package models

import (
	"encoding/json"
	"time"
)

// Entry 快取項目：序列化後的資料與寫入時間，每次寫入整筆覆蓋
type Entry struct {
	Data      []byte    `json:"data"`
	WrittenAt time.Time `json:"writtenAt"`
}

// NewEntry creates a new Entry.
func NewEntry(data []byte, writtenAt time.Time) *Entry {
	return &Entry{
		Data:      data,
		WrittenAt: writtenAt,
	}
}

// IsStale reports whether the entry is older than maxAge at now.
func (e *Entry) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.WrittenAt) > maxAge
}

// MarshalBinary lets go-redis store the entry as a single value.
func (e *Entry) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBinary lets go-redis scan a stored entry.
func (e *Entry) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

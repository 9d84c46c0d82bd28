package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction is one logged conversational turn. Records are append-only.
type Interaction struct {
	Seq        int64     `json:"-"` // insertion order, assigned by the store
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	SessionID  string    `json:"session_id"`
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	Provider   string    `json:"provider"`
	Language   string    `json:"language"`
	Memory     []string  `json:"memory"`
	CareMode   bool      `json:"care_mode"`
	Intent     string    `json:"intent"`
	Emotion    string    `json:"emotion"`
	Confidence float64   `json:"confidence"`
}

type EmergencyContact struct {
	ID       string    `json:"id"`
	Number   string    `json:"number"`
	CalledAt time.Time `json:"called_at"`
}

type Reminder struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type MemoryAid struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"created_at"`
}

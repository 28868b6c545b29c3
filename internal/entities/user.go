// Package entities contains the core domain objects for the weather-bot application
package entities

import (
	"time"
)

// User represents a chat user who has issued /start at least once
type User struct {
	ID           int64     // Telegram user ID
	DisplayName  string    // Username or first name shown in greetings
	Registered   bool      // Set on first /start and never reset
	RegisteredAt time.Time // When the record was first created
}

// Command is a transport-independent user instruction
type Command struct {
	Name        string   // Command name without the leading slash
	Args        []string // Whitespace-delimited arguments
	ChatID      int64
	UserID      int64
	DisplayName string
}

package validation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidateRoomID validates a signaling room identifier.
func ValidateRoomID(room string) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return fmt.Errorf("room is required")
	}
	if len(room) > 100 {
		return fmt.Errorf("room is too long (max 100 characters)")
	}
	for _, r := range room {
		if !isIDRune(r) {
			return fmt.Errorf("room contains invalid characters (only letters, numbers, _, - allowed)")
		}
	}
	return nil
}

// ValidateRecordingID validates a recording identifier (UUID).
func ValidateRecordingID(id string) error {
	if id == "" {
		return fmt.Errorf("recording id is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid recording id format")
	}
	return nil
}

// ValidateQuality validates the retrieval quality query parameter.
func ValidateQuality(quality string) error {
	switch quality {
	case "original", "high", "medium", "low", "audio":
		return nil
	}
	return fmt.Errorf("invalid quality parameter: %s", quality)
}

// ValidateUsername validates a login username.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	return nil
}

// ValidatePassword validates a login password.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) > 128 {
		return fmt.Errorf("password is too long (max 128 characters)")
	}
	return nil
}

func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRecordingID generates a unique recording identifier.
func GenerateRecordingID() string {
	return uuid.New().String()
}

// GenerateConnectionID generates a negotiation connection identifier.
// Streamers mint one of these at session start; every envelope of that
// negotiation carries it.
func GenerateConnectionID() string {
	return uuid.New().String()
}

// GeneratePeerID generates a transport peer identifier.
func GeneratePeerID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "peer_" + hex.EncodeToString(b)
}

// GenerateRequestID generates a unique request ID for log correlation.
func GenerateRequestID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", time.Now().UnixNano(), hex.EncodeToString(b))
}

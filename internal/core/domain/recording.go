package domain

import "time"

type RecordingID string

// Recording is the metadata read model over a stored blob. The payload
// itself lives in the store as an ordered sequence of chunks; a recording
// is immutable once committed.
type Recording struct {
	ID          RecordingID `json:"id"`
	Filename    string      `json:"filename"`
	ContentType string      `json:"contentType"`
	Length      int64       `json:"length"`
	ChunkSize   int         `json:"chunkSize"`
	CreatedAt   time.Time   `json:"createdAt"`
}

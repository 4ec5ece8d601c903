package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RunLog is the telemetry record of one streamed request. It never holds
// conversation content.
type RunLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID string             `bson:"request_id" json:"request_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Entry     int                `bson:"entry" json:"entry"`
	Transport string             `bson:"transport" json:"transport"` // sse|ws

	Status string `bson:"status" json:"status"` // ok|error|canceled
	Error  string `bson:"error,omitempty" json:"error,omitempty"`

	Frames       int   `bson:"frames" json:"frames"`
	FirstTextMS  int64 `bson:"first_text_ms,omitempty" json:"first_text_ms,omitempty"`
	FirstAudioMS int64 `bson:"first_audio_ms,omitempty" json:"first_audio_ms,omitempty"`
	DurationMS   int64 `bson:"duration_ms" json:"duration_ms"`

	StartedAt time.Time `bson:"started_at" json:"started_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}

package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Voice is a synthesis voice row. Emotions maps an emotion name to its
// reference clip, stored as JSONB.
type Voice struct {
	Name           string         `gorm:"column:name;type:text;primaryKey" json:"name"`
	DisplayName    string         `gorm:"column:display_name;type:text" json:"display_name"`
	DefaultEmotion string         `gorm:"column:default_emotion;type:text" json:"default_emotion"`
	AwakeText      string         `gorm:"column:awake_text;type:text" json:"awake_text"`
	AwakeAudio     string         `gorm:"column:awake_audio;type:text" json:"awake_audio"`
	Tags           pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`
	Emotions       datatypes.JSON `gorm:"column:emotions;type:jsonb" json:"emotions"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Voice) TableName() string { return "voices" }

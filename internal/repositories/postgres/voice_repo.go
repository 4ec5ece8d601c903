package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yoockh/voicechain/internal/models"
	"github.com/yoockh/voicechain/internal/utils"
)

type VoiceRepository interface {
	GetByName(ctx context.Context, name string) (*models.Voice, error)
	List(ctx context.Context) ([]models.Voice, error)
	Upsert(ctx context.Context, v *models.Voice) error
}

type voiceRepo struct {
	db *gorm.DB
}

func NewVoiceRepo(db *gorm.DB) VoiceRepository {
	return &voiceRepo{db: db}
}

func (r *voiceRepo) GetByName(ctx context.Context, name string) (*models.Voice, error) {
	var v models.Voice
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *voiceRepo) List(ctx context.Context) ([]models.Voice, error) {
	var out []models.Voice
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&out).Error
	return out, err
}

func (r *voiceRepo) Upsert(ctx context.Context, v *models.Voice) error {
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "default_emotion", "awake_text", "awake_audio", "tags", "emotions", "updated_at"}),
		}).
		Create(v).Error
}

package mongo

import (
	"context"
	"time"

	"github.com/yoockh/voicechain/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const RunLogCollection = "run_logs"

type RunLogRepository interface {
	Insert(ctx context.Context, l *models.RunLog) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.RunLog, error)
}

type runLogRepo struct {
	col *mongo.Collection
	ttl time.Duration
}

// NewRunLogRepo stores records that expire ttl after they start.
func NewRunLogRepo(db *mongo.Database, ttl time.Duration) RunLogRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &runLogRepo{col: db.Collection(RunLogCollection), ttl: ttl}
}

func (r *runLogRepo) Insert(ctx context.Context, l *models.RunLog) error {
	if l.StartedAt.IsZero() {
		l.StartedAt = time.Now().UTC()
	}
	if l.ExpiresAt.IsZero() {
		l.ExpiresAt = l.StartedAt.Add(r.ttl)
	}
	_, err := r.col.InsertOne(ctx, l)
	return err
}

func (r *runLogRepo) ListByUser(ctx context.Context, userID string, limit int64) ([]models.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := r.col.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RunLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

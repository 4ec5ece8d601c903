package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"

	"github.com/yoockh/voicechain/internal/utils"
)

// GCSAssets serves objects of one bucket, optionally below a prefix.
type GCSAssets struct {
	client *gcs.Client
	bucket string
	prefix string
}

func NewGCSAssets(ctx context.Context, bucket, prefix string) (*GCSAssets, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSAssets{client: c, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (g *GCSAssets) Close() error { return g.client.Close() }

func (g *GCSAssets) objectName(key string) string {
	key = strings.TrimLeft(key, "/")
	if g.prefix == "" {
		return key
	}
	return path.Join(g.prefix, key)
}

func (g *GCSAssets) Read(ctx context.Context, key string) ([]byte, error) {
	const op = "GCSAssets.Read"
	if strings.TrimSpace(key) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty asset key", nil)
	}
	r, err := g.client.Bucket(g.bucket).Object(g.objectName(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, utils.E(utils.CodeNotFound, op, "asset not found: "+key, err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "asset open failed", err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "asset read failed", err)
	}
	return b, nil
}

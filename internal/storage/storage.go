// Package storage reads static assets such as awake greeting clips.
package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yoockh/voicechain/internal/utils"
)

type AssetStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// LocalAssets serves files below a root directory.
type LocalAssets struct {
	root string
}

func NewLocalAssets(root string) *LocalAssets {
	return &LocalAssets{root: root}
}

func (l *LocalAssets) Read(_ context.Context, key string) ([]byte, error) {
	const op = "LocalAssets.Read"
	clean := filepath.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty asset key", nil)
	}
	f, err := os.Open(filepath.Join(l.root, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, utils.E(utils.CodeNotFound, op, "asset not found: "+key, err)
		}
		return nil, utils.E(utils.CodeInternal, op, "asset open failed", err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "asset read failed", err)
	}
	return b, nil
}

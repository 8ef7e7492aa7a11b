package upload

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"imageshelf/internal/storage"
)

// pendingObject is a written byte stream that has no metadata record yet.
// Unless Commit is called, Release removes it; Release is safe to call more
// than once.
type pendingObject struct {
	name  string
	files storage.Storage
	log   *zap.Logger

	once      sync.Once
	committed bool
}

func (p *pendingObject) Commit() {
	p.committed = true
}

func (p *pendingObject) Release(ctx context.Context) {
	if p.committed {
		return
	}
	p.once.Do(func() {
		// the request context may already be cancelled
		if err := p.files.Remove(context.WithoutCancel(ctx), p.name); err != nil {
			p.log.Error("failed to remove uncommitted file", zap.String("filename", p.name), zap.Error(err))
			return
		}
		p.log.Debug("removed uncommitted file", zap.String("filename", p.name))
	})
}

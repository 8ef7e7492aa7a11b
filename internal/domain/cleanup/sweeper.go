package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"imageshelf/internal/domain"
	"imageshelf/internal/storage"
)

// DefaultGrace keeps the sweeper away from uploads that are still between
// the byte write and the metadata write.
const DefaultGrace = time.Hour

// Result summarises one sweep.
type Result struct {
	Scanned int
	// Orphans counts unrecorded objects past the grace period, removed or not.
	Orphans int
	Removed int
	Failed  int
}

// Sweeper removes byte streams that have no metadata record. Uploads clean
// up after themselves; this covers processes that died mid-upload.
type Sweeper struct {
	files storage.Storage
	store domain.ImageStore
	log   *zap.Logger
	now   func() time.Time
}

func NewSweeper(files storage.Storage, store domain.ImageStore, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{files: files, store: store, log: log, now: time.Now}
}

// Sweep removes every unrecorded object last modified more than grace ago.
// With dryRun set it only reports what would be removed.
func (s *Sweeper) Sweep(ctx context.Context, grace time.Duration, dryRun bool) (Result, error) {
	var res Result
	started := s.now()
	cutoff := started.Add(-grace)

	objects, err := s.files.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list objects: %w", err)
	}

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		if obj.ModTime.After(cutoff) {
			continue
		}

		exists, err := s.store.ExistsByFilename(ctx, obj.Name)
		if err != nil {
			return res, fmt.Errorf("look up %q: %w", obj.Name, err)
		}
		if exists {
			continue
		}

		res.Orphans++
		if dryRun {
			s.log.Info("orphan found", zap.String("filename", obj.Name), zap.Int64("size", obj.Size))
			continue
		}
		if err := s.files.Remove(ctx, obj.Name); err != nil {
			s.log.Error("failed to remove orphan", zap.String("filename", obj.Name), zap.Error(err))
			res.Failed++
			continue
		}
		s.log.Info("orphan removed", zap.String("filename", obj.Name), zap.Int64("size", obj.Size))
		res.Removed++
	}

	s.log.Info("orphan sweep completed",
		zap.Int("scanned", res.Scanned),
		zap.Int("orphans", res.Orphans),
		zap.Int("removed", res.Removed),
		zap.Int("failed", res.Failed),
		zap.Bool("dry_run", dryRun),
		zap.Duration("took", s.now().Sub(started)))
	return res, nil
}

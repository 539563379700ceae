package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AssetStorage persists uploaded files and returns their public location.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// DurationProber measures the playback length of a local media file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (int64, error)
}

// VideoAssetUpdater persists ingestion status updates for videos.
type VideoAssetUpdater interface {
	MarkAssetReady(ctx context.Context, videoID, videoURL, thumbnailURL string, duration int64) error
	MarkAssetFailed(ctx context.Context, videoID string) error
}

// IngestJob points at the temp files an upload handler staged on disk.
// ThumbnailPath may be empty when the uploader supplied no thumbnail.
type IngestJob struct {
	VideoID       string
	VideoPath     string
	ThumbnailPath string
}

// AssetIngestorConfig controls the concurrency characteristics of the ingestor.
type AssetIngestorConfig struct {
	QueueSize int
	Workers   int
}

// AssetIngestor asynchronously uploads staged video assets to object storage
// and records the outcome against the video row. Temp files are removed once
// the job settles, whether it succeeded or not.
type AssetIngestor struct {
	storage AssetStorage
	prober  DurationProber
	updater VideoAssetUpdater
	logger  *slog.Logger

	jobs   chan IngestJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewAssetIngestor constructs a background worker pool that persists assets.
func NewAssetIngestor(storage AssetStorage, prober DurationProber, updater VideoAssetUpdater, cfg AssetIngestorConfig, logger *slog.Logger) *AssetIngestor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	ing := &AssetIngestor{
		storage: storage,
		prober:  prober,
		updater: updater,
		logger:  logger,
		jobs:    make(chan IngestJob, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	ing.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go ing.worker()
	}

	return ing
}

// Enqueue schedules asset persistence for the staged upload.
func (i *AssetIngestor) Enqueue(ctx context.Context, job IngestJob) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-i.ctx.Done():
		return ErrIngestorClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-i.ctx.Done():
		return ErrIngestorClosed
	case i.jobs <- job:
		return nil
	}
}

// Shutdown waits for the worker pool to drain outstanding jobs.
func (i *AssetIngestor) Shutdown(ctx context.Context) error {
	i.once.Do(func() {
		i.cancel()
		close(i.jobs)
	})

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (i *AssetIngestor) worker() {
	defer i.wg.Done()

	for {
		select {
		case <-i.ctx.Done():
			return
		case job, ok := <-i.jobs:
			if !ok {
				return
			}
			i.handleJob(job)
		}
	}
}

func (i *AssetIngestor) handleJob(job IngestJob) {
	defer i.cleanup(job)

	if i.storage == nil || i.updater == nil {
		i.logger.Error("asset ingestor missing dependencies", "hasStorage", i.storage != nil, "hasUpdater", i.updater != nil)
		return
	}

	uploadCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	videoURL, err := i.upload(uploadCtx, job.VideoID, job.VideoPath, "video")
	if err != nil {
		i.logger.Error("asset ingestion failed", "videoId", job.VideoID, "error", err)
		i.recordFailure(job.VideoID)
		return
	}

	var thumbnailURL string
	if job.ThumbnailPath != "" {
		thumbnailURL, err = i.upload(uploadCtx, job.VideoID, job.ThumbnailPath, "thumbnail")
		if err != nil {
			i.logger.Error("thumbnail ingestion failed", "videoId", job.VideoID, "error", err)
			i.recordFailure(job.VideoID)
			return
		}
	}

	// A probe failure degrades to an unknown duration rather than failing
	// the upload outright.
	var duration int64
	if i.prober != nil {
		duration, err = i.prober.Duration(uploadCtx, job.VideoPath)
		if err != nil {
			i.logger.Warn("probe video duration", "videoId", job.VideoID, "error", err)
			duration = 0
		}
	}

	if err := i.recordSuccess(job.VideoID, videoURL, thumbnailURL, duration); err != nil {
		i.logger.Error("mark asset ready", "videoId", job.VideoID, "error", err)
		i.recordFailure(job.VideoID)
	}
}

func (i *AssetIngestor) upload(ctx context.Context, videoID, localPath, role string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open staged %s: %w", role, err)
	}
	defer file.Close()

	ext := filepath.Ext(localPath)
	key := path.Join(videoID, role+ext)
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("upload %s: empty key", role)
	}

	location, err := i.storage.Save(ctx, key, file)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", role, err)
	}

	return location, nil
}

func (i *AssetIngestor) cleanup(job IngestJob) {
	for _, staged := range []string{job.VideoPath, job.ThumbnailPath} {
		if staged == "" {
			continue
		}
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			i.logger.Warn("remove staged upload", "path", staged, "error", err)
		}
	}
}

func (i *AssetIngestor) recordFailure(videoID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := i.updater.MarkAssetFailed(ctx, videoID); err != nil {
		i.logger.Error("record asset failure", "videoId", videoID, "error", err)
	}
}

func (i *AssetIngestor) recordSuccess(videoID, videoURL, thumbnailURL string, duration int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return i.updater.MarkAssetReady(ctx, videoID, videoURL, thumbnailURL, duration)
}

package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github/martinmaurice/apipoller/pkg/gbgcamera"
	"github/martinmaurice/apipoller/pkg/rate_limiter"
	"github/martinmaurice/apipoller/pkg/scheduler"
	"github/martinmaurice/apipoller/pkg/sink"
)

const (
	gbgcameraRoot  = "gbgcamera"
	camerasSegment = "cameras"
)

type CameraFetcher interface {
	GetCameraImage(ctx context.Context, id int) (*gbgcamera.Image, error)
	GetCameras(ctx context.Context) ([]gbgcamera.Camera, error)
}

// CameraRecord is published under gbgcamera/<id> after each snapshot.
type CameraRecord struct {
	Image        string `json:"image"`
	LastModified int64  `json:"lastModified"`
}

// CameraJob stores a snapshot of every configured camera and publishes where
// it was stored.
type CameraJob struct {
	client  CameraFetcher
	cameras []int
	images  sink.ImageStore
	store   sink.Store
	status  *SourceStatus
	loc     *time.Location
	logger  *slog.Logger
	now     func() time.Time
}

func NewCameraJob(client CameraFetcher, cameras []int, images sink.ImageStore, store sink.Store, status *SourceStatus, loc *time.Location, logger *slog.Logger) *CameraJob {
	return &CameraJob{
		client:  client,
		cameras: cameras,
		images:  images,
		store:   store,
		status:  status,
		loc:     loc,
		logger:  logger.With("source", "gbgcamera"),
		now:     time.Now,
	}
}

func (j *CameraJob) Run(ctx context.Context) {
	for _, id := range j.cameras {
		j.poll(ctx, id)
	}
}

func (j *CameraJob) poll(ctx context.Context, id int) {
	logger := j.logger.With("camera", id, "correlation_id", scheduler.CorrelationID(ctx))

	img, err := j.client.GetCameraImage(ctx, id)
	j.status.Record(err)
	if errors.Is(err, rate_limiter.ThrottledErr) {
		logger.Debug("camera throttled")
		return
	}
	if err != nil {
		logger.Warn("fetching camera image failed", "error", err)
		return
	}

	now := j.now()
	stored, err := j.images.SaveImage(gbgcamera.ImageDir(id), gbgcamera.ImageName(now, j.loc), img.Data)
	if err != nil {
		logger.Error("storing camera image failed", "error", err)
		return
	}

	path := sink.Path(gbgcameraRoot, gbgcamera.ImageDir(id))
	record := CameraRecord{Image: stored, LastModified: now.UnixMilli()}
	if err := j.store.Set(ctx, path, record); err != nil {
		logger.Error("publishing camera failed", "path", path, "error", err)
		return
	}
	logger.Info("published camera", "path", path, "image", stored)
}

// RefreshCatalogue publishes the camera catalogue under gbgcamera/cameras.
func (j *CameraJob) RefreshCatalogue(ctx context.Context) {
	logger := j.logger.With("correlation_id", scheduler.CorrelationID(ctx))

	cameras, err := j.client.GetCameras(ctx)
	j.status.Record(err)
	if errors.Is(err, rate_limiter.ThrottledErr) {
		logger.Debug("camera catalogue throttled")
		return
	}
	if err != nil {
		logger.Warn("fetching camera catalogue failed", "error", err)
		return
	}

	path := sink.Path(gbgcameraRoot, camerasSegment)
	if err := j.store.Set(ctx, path, cameras); err != nil {
		logger.Error("publishing camera catalogue failed", "path", path, "error", err)
		return
	}
	logger.Info("published camera catalogue", "path", path, "cameras", len(cameras))
}

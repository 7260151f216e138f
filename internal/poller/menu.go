package poller

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github/martinmaurice/apipoller/pkg/rate_limiter"
	"github/martinmaurice/apipoller/pkg/scheduler"
	"github/martinmaurice/apipoller/pkg/schoolmeal"
	"github/martinmaurice/apipoller/pkg/sink"
)

const (
	schoolmealRoot = "schoolmeal"
	schoolsSegment = "schools"
)

type MenuFetcher interface {
	GetMenu(ctx context.Context, school string, force bool, year, week int) (*schoolmeal.Menu, error)
	Commit(school string, lastModified time.Time)
}

// MenuJob publishes the current week's menu of every configured school.
type MenuJob struct {
	client  MenuFetcher
	schools []string
	store   sink.Store
	status  *SourceStatus
	logger  *slog.Logger
	now     func() time.Time
}

func NewMenuJob(client MenuFetcher, schools []string, store sink.Store, status *SourceStatus, logger *slog.Logger) *MenuJob {
	return &MenuJob{
		client:  client,
		schools: schools,
		store:   store,
		status:  status,
		logger:  logger.With("source", "schoolmeal"),
		now:     time.Now,
	}
}

// Run fetches conditionally; unchanged menus publish nothing.
func (j *MenuJob) Run(ctx context.Context) {
	j.run(ctx, false)
}

// ForceRefresh fetches every menu regardless of the watermark.
func (j *MenuJob) ForceRefresh(ctx context.Context) {
	j.run(ctx, true)
}

func (j *MenuJob) run(ctx context.Context, force bool) {
	year, week := schoolmeal.CurrentWeek(j.now())
	for _, school := range j.schools {
		j.poll(ctx, school, force, year, week)
	}
}

func (j *MenuJob) poll(ctx context.Context, school string, force bool, year, week int) {
	logger := j.logger.With("school", school, "force", force, "correlation_id", scheduler.CorrelationID(ctx))

	menu, err := j.client.GetMenu(ctx, school, force, year, week)
	j.status.Record(err)
	switch {
	case errors.Is(err, schoolmeal.NotModifiedErr):
		logger.Debug("menu already up to date")
		return
	case errors.Is(err, rate_limiter.ThrottledErr):
		logger.Debug("menu throttled")
		return
	case err != nil:
		logger.Warn("fetching menu failed", "error", err)
		return
	}

	if err := j.publish(ctx, menu); err != nil {
		// the watermark stays put so the next poll fetches the menu again
		logger.Error("publishing menu failed", "error", err)
		return
	}
	if menu.LastModified > 0 {
		j.client.Commit(school, time.UnixMilli(menu.LastModified))
	}
	logger.Info("published menu", "year", menu.Year, "week", menu.Week)
}

func (j *MenuJob) publish(ctx context.Context, menu *schoolmeal.Menu) error {
	root := sink.Path(schoolmealRoot, schoolsSegment, menu.School.URLName)

	school, err := sink.ToFields(menu.School)
	if err != nil {
		return err
	}
	if err := j.store.Update(ctx, sink.Path(root, "school"), school); err != nil {
		return err
	}

	fields, err := sink.ToFields(menu)
	if err != nil {
		return err
	}
	if err := j.store.Update(ctx, sink.Path(root, strconv.Itoa(menu.Year), strconv.Itoa(menu.Week)), fields); err != nil {
		return err
	}

	return j.store.Set(ctx, sink.Path(root, "latest"), menu)
}

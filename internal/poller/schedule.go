package poller

import (
	"github/martinmaurice/apipoller/pkg/config"
	"github/martinmaurice/apipoller/pkg/scheduler"
)

// Jobs are the poll jobs of the enabled sources. A nil job is not scheduled.
type Jobs struct {
	Departures *DeparturesJob
	Menu       *MenuJob
	Camera     *CameraJob
}

// Schedule registers every enabled job with its configured cadence.
func Schedule(s *scheduler.Scheduler, cfg *config.Config, jobs Jobs) {
	if jobs.Departures != nil {
		s.Every("vasttrafik.departures", cfg.Vasttrafik.PollInterval, jobs.Departures.Run)
	}
	if jobs.Menu != nil {
		s.Every("schoolmeal.menu", cfg.Schoolmeal.PollInterval, jobs.Menu.Run)
		s.Daily("schoolmeal.force_refresh", cfg.Schoolmeal.ForceRefreshAt, jobs.Menu.ForceRefresh)
	}
	if jobs.Camera != nil {
		s.Every("gbgcamera.images", cfg.GBGCamera.PollInterval, jobs.Camera.Run)
		s.Daily("gbgcamera.catalogue", cfg.GBGCamera.CatalogueRefreshAt, jobs.Camera.RefreshCatalogue)
	}
}

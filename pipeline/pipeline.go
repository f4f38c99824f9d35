// Package pipeline sequences one batch run: fetch, merge, classify, enrich,
// persist, notify.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"devleads/models"
	"devleads/notify"
	"devleads/scraper"
	"devleads/services"
	"devleads/storage"
	"devleads/utils"
)

var (
	// ErrNoData means every source came back empty. The failure alert has
	// already been sent.
	ErrNoData = eris.New("pipeline: no property listings from any source")
	// ErrRunInProgress means another run holds the lock file.
	ErrRunInProgress = eris.New("pipeline: another run is in progress")
)

// Mode selects how much work a run does.
type Mode string

const (
	ModeFull        Mode = "full"
	ModePriceUpdate Mode = "price_update"
)

// ParseMode validates a mode name from the command line.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModePriceUpdate:
		return Mode(s), nil
	}
	return "", eris.Errorf("pipeline: unknown mode %q (want full or price_update)", s)
}

// Sink names used as keys in RunSummary.SinkErrors.
const (
	SinkClassifiedCSV = "classified_csv"
	SinkLeadsCSV      = "leads_csv"
	SinkLeadsXLSX     = "leads_xlsx"
	SinkPriceHistory  = "price_history"
	SinkDatabase      = "database"
	SinkSheets        = "sheets"
	SinkMap           = "map"
)

// Outputs are the local artifact locations. Empty paths disable an artifact.
type Outputs struct {
	ClassifiedCSV string
	LeadsCSV      string
	LeadsXLSX     string
	MapPath       string
	MapTitle      string
	LockPath      string
}

// Pipeline holds every collaborator a run needs. Database, Sheet and
// Notifier may be nil.
type Pipeline struct {
	Sources    []scraper.Source
	Location   scraper.Location
	Classifier *services.Classifier
	Geocoder   *services.Geocoder
	Buildable  *services.BuildableEstimator
	ROI        *services.ROICalculator
	History    services.HistoryRepository
	Database   storage.RecordWriter
	Sheet      storage.Spreadsheet
	// UnavailableSinks holds the open errors of sinks that could not be
	// reached at startup, keyed by sink name. Each is reported as a sink
	// failure of the run.
	UnavailableSinks map[string]error
	Notifier         notify.Notifier
	Insights         *services.InsightService
	Outputs          Outputs
	// MapCenter is where the lead map opens.
	MapCenter [2]float64
	Now       func() time.Time
	Report    io.Writer
	Logger    *utils.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run executes one pass. It returns ErrNoData when no source produced a
// listing and ErrRunInProgress when the lock is held; every other failure is
// absorbed into the summary. Exactly one notification is sent per started
// run.
func (p *Pipeline) Run(ctx context.Context, mode Mode) (*models.RunSummary, error) {
	if p.Outputs.LockPath != "" {
		lock, err := utils.AcquireRunLock(p.Outputs.LockPath)
		if err != nil {
			if eris.Is(err, utils.ErrLocked) {
				return nil, eris.Wrap(ErrRunInProgress, err.Error())
			}
			return nil, err
		}
		if lock.Stale != "" {
			p.Logger.Warn("[pipeline] Took over abandoned run lock (%s)", lock.Stale)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				p.Logger.Warn("[pipeline] %v", err)
			}
		}()
	}

	summary := models.NewRunSummary(uuid.NewString(), string(mode), p.now())
	log := p.Logger.With("run_id", summary.RunID)
	log.Info("[pipeline] Starting run for %s, %s (mode=%s)", p.Location.City, p.Location.State, mode)

	batches := p.fetch(ctx, log, summary)
	merged := services.NewMerger(log).Merge(batches)
	summary.Merged = len(merged.Properties)
	summary.DroppedNoURL = merged.DroppedNoURL

	if len(merged.Properties) == 0 {
		log.Warn("[pipeline] No property data found. Check scrapers or network issues.")
		p.notify(ctx, log, "Pipeline Failed", "No property listings found in any source.")
		summary.FinishedAt = p.now()
		return summary, ErrNoData
	}
	records := merged.Properties

	log.Info("[pipeline] Classifying %d listings", len(records))
	p.Classifier.Classify(ctx, records, mode == ModePriceUpdate)
	p.writeArtifact(log, summary, SinkClassifiedCSV, p.Outputs.ClassifiedCSV, records, storage.WriteCSVFile)
	summary.ClassifiedCSV = artifactPath(summary, SinkClassifiedCSV, p.Outputs.ClassifiedCSV)

	log.Info("[pipeline] Enriching: geocode, buildable area, ROI, price history")
	p.Geocoder.Enrich(ctx, records)
	p.Buildable.Estimate(records)
	p.ROI.Enrich(records)
	if p.History != nil {
		tracker := services.NewPriceTracker(p.History, p.Now, log)
		if err := tracker.Track(records); err != nil {
			p.sinkFailed(log, summary, SinkPriceHistory, err)
		}
	}

	p.writeArtifact(log, summary, SinkLeadsCSV, p.Outputs.LeadsCSV, records, storage.WriteCSVFile)
	summary.LeadsCSV = artifactPath(summary, SinkLeadsCSV, p.Outputs.LeadsCSV)
	p.writeArtifact(log, summary, SinkLeadsXLSX, p.Outputs.LeadsXLSX, records, storage.WriteXLSX)
	summary.LeadsXLSX = artifactPath(summary, SinkLeadsXLSX, p.Outputs.LeadsXLSX)

	p.persist(ctx, log, summary, records)
	p.drawMap(ctx, log, summary, records)

	summary.Processed = len(records)
	for _, r := range records {
		summary.LabelCounts[r.Label]++
		for _, stage := range []string{models.StageClassify, models.StageGeocode, models.StageROI} {
			if r.Degraded(stage) {
				summary.Degraded[stage]++
			}
		}
	}
	summary.FinishedAt = p.now()

	report := p.Insights.Generate(summary, records)
	subject := "Pipeline Completed"
	if len(summary.SinkErrors) > 0 {
		subject = fmt.Sprintf("Pipeline Completed (%d sink failures)", len(summary.SinkErrors))
	}
	p.notify(ctx, log, subject, p.Insights.Render(report))
	if p.Report != nil {
		p.Insights.Print(p.Report, report)
	}

	log.Info("[pipeline] Run complete: rows=%d inserted=%d map=%s",
		summary.Processed, summary.Inserted, orNA(summary.MapPath))
	return summary, nil
}

// fetch runs every source in order. A failing source contributes no rows.
func (p *Pipeline) fetch(ctx context.Context, log *utils.Logger, summary *models.RunSummary) []services.SourceBatch {
	var batches []services.SourceBatch
	for _, src := range p.Sources {
		name := src.Name()
		recs, err := src.Fetch(ctx, p.Location)
		if err != nil {
			log.Warn("[%s] Source unavailable: %v", name, err)
			recs = nil
		}
		summary.SourceCounts[name] = len(recs)
		log.Info("[%s] %d rows", name, len(recs))
		batches = append(batches, services.SourceBatch{Source: name, Records: recs})
	}
	return batches
}

// persist writes to the database and the spreadsheet. Each sink fails on
// its own.
func (p *Pipeline) persist(ctx context.Context, log *utils.Logger, summary *models.RunSummary, records []*models.Property) {
	for _, sink := range []string{SinkDatabase, SinkSheets} {
		if err := p.UnavailableSinks[sink]; err != nil {
			p.sinkFailed(log, summary, sink, eris.Wrap(err, "unavailable at startup"))
		}
	}

	if p.Database != nil {
		n, err := p.Database.Upsert(ctx, records)
		if err != nil {
			p.sinkFailed(log, summary, SinkDatabase, err)
		} else {
			summary.Inserted = n
			log.Info("[pipeline] Database updated. Rows inserted: %d", n)
		}
	}

	if p.Sheet != nil {
		if err := p.Sheet.Upload(ctx, records); err != nil {
			p.sinkFailed(log, summary, SinkSheets, err)
		} else {
			summary.SheetURL = p.Sheet.URL()
			log.Info("[pipeline] Uploaded %d rows to Google Sheets", len(records))
		}
	}
}

// drawMap renders the map from the spreadsheet contents so both agree. A
// failed or empty read skips the map.
func (p *Pipeline) drawMap(ctx context.Context, log *utils.Logger, summary *models.RunSummary, records []*models.Property) {
	if p.Outputs.MapPath == "" {
		return
	}

	points := records
	if p.Sheet != nil {
		rows, err := p.Sheet.Read(ctx)
		if err != nil {
			p.sinkFailed(log, summary, SinkMap, eris.Wrap(err, "map skipped: sheet read failed"))
			return
		}
		if len(rows) == 0 {
			log.Warn("[pipeline] No data found in Google Sheets for map creation")
			return
		}
		points = make([]*models.Property, 0, len(rows))
		for _, row := range rows {
			points = append(points, models.PropertyFromStrings(row))
		}
	}

	n, err := storage.WriteMap(p.Outputs.MapPath, p.Outputs.MapTitle, p.MapCenter[0], p.MapCenter[1], points)
	if err != nil {
		p.sinkFailed(log, summary, SinkMap, err)
		return
	}
	summary.MapPath = p.Outputs.MapPath
	log.Info("[pipeline] Map with %d markers created at %s", n, p.Outputs.MapPath)
}

func (p *Pipeline) writeArtifact(log *utils.Logger, summary *models.RunSummary, sink, path string,
	records []*models.Property, write func(string, []*models.Property) error) {
	if path == "" {
		return
	}
	if err := write(path, records); err != nil {
		p.sinkFailed(log, summary, sink, err)
		return
	}
	log.Info("[pipeline] Saved %d rows to %s", len(records), path)
}

func artifactPath(summary *models.RunSummary, sink, path string) string {
	if _, failed := summary.SinkErrors[sink]; failed {
		return ""
	}
	return path
}

func (p *Pipeline) sinkFailed(log *utils.Logger, summary *models.RunSummary, sink string, err error) {
	summary.SinkErrors[sink] = err.Error()
	log.Error("[pipeline] %s failed: %v", sink, err)
}

func (p *Pipeline) notify(ctx context.Context, log *utils.Logger, subject, body string) {
	if p.Notifier == nil {
		log.Info("[pipeline] %s", subject)
		return
	}
	if err := p.Notifier.Notify(ctx, subject, body); err != nil {
		log.Error("[pipeline] Alert %q not delivered: %v", subject, err)
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"devleads/clients/anthropic"
	"devleads/clients/nominatim"
	"devleads/config"
	"devleads/notify"
	"devleads/pipeline"
	"devleads/scraper"
	"devleads/scraper/browser"
	"devleads/scraper/file"
	"devleads/scraper/realtor"
	"devleads/scraper/redfin"
	"devleads/scraper/zillow"
	"devleads/services"
	"devleads/storage"
	"devleads/utils"
)

// env is everything one pipeline run owns.
type env struct {
	pipeline *pipeline.Pipeline
	renderer *browser.Renderer
	db       storage.RecordWriter
}

func (e *env) Close() {
	if e.renderer != nil {
		e.renderer.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
}

func newEnv(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*env, error) {
	e := &env{}
	e.renderer = browser.New(browser.Config{
		ChromeBin:    cfg.Scrape.ChromeBin,
		ScrollPasses: cfg.Scrape.ScrollPasses,
	}, logger)

	fetcher := scraper.NewHTTPFetcher(scraper.FetcherConfig{
		RateLimit:  time.Duration(cfg.Scrape.RateLimitMs) * time.Millisecond,
		MaxRetries: cfg.Scrape.MaxRetries,
	}, logger)

	sources, err := buildSources(cfg, e.renderer, fetcher, logger)
	if err != nil {
		e.Close()
		return nil, err
	}

	history, err := storage.OpenHistoryStore(cfg.HistoryPath(), logger)
	if err != nil {
		e.Close()
		return nil, err
	}

	// A dead database is a sink failure, not a reason to skip the run.
	unavailable := make(map[string]error)
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("[main] Database unavailable, continuing without it: %v", err)
		unavailable[pipeline.SinkDatabase] = err
	} else {
		e.db = db
	}

	var sheet storage.Spreadsheet
	if cfg.SheetsEnabled() {
		s, err := openSheet(cfg, logger)
		if err != nil {
			logger.Error("[main] Google Sheets unavailable, continuing without it: %v", err)
			unavailable[pipeline.SinkSheets] = err
		} else {
			sheet = s
		}
	}

	var oracle services.Oracle
	if cfg.Anthropic.APIKey != "" {
		oracle = anthropic.NewOracle(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	} else {
		logger.Warn("[main] ANTHROPIC_API_KEY not set; classification is keyword-only")
	}

	timeouts := make([]time.Duration, 0, len(cfg.Geocode.TimeoutsSecs))
	for _, s := range cfg.Geocode.TimeoutsSecs {
		timeouts = append(timeouts, time.Duration(s)*time.Second)
	}

	p := &pipeline.Pipeline{
		Sources: sources,
		Location: scraper.Location{
			City:          cfg.Target.City,
			State:         cfg.Target.State,
			Neighborhoods: cfg.Target.Neighborhoods,
		},
		Classifier: services.NewClassifier(services.NewKeywordDetector(cfg.Classify.Keywords), oracle, logger),
		Geocoder: services.NewGeocoder(nominatim.NewClient(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent), services.GeocoderConfig{
			Country:     cfg.Target.Country,
			Timeouts:    timeouts,
			Pause:       time.Duration(cfg.Geocode.PauseMs) * time.Millisecond,
			FallbackLat: cfg.Geocode.FallbackLat,
			FallbackLon: cfg.Geocode.FallbackLon,
		}, logger),
		Buildable: services.NewBuildableEstimator(cfg.ROI.CoverageRatio),
		ROI: services.NewROICalculator(services.ROIConfig{
			CoverageRatio:    cfg.ROI.CoverageRatio,
			HardCostPerSF:    cfg.ROI.HardCostPerSF,
			SoftCostPct:      cfg.ROI.SoftCostPct,
			ResalePricePerSF: cfg.ROI.ResalePricePerSF,
			SkipUnpriced:     cfg.ROI.SkipUnpriced,
		}, logger),
		History:          history,
		Database:         e.db,
		Sheet:            sheet,
		Notifier:         newNotifier(cfg, logger),
		UnavailableSinks: unavailable,
		Insights:         services.NewInsightService(logger),
		Outputs: pipeline.Outputs{
			ClassifiedCSV: cfg.ClassifiedCSVPath(),
			LeadsCSV:      cfg.LeadsCSVPath(),
			LeadsXLSX:     cfg.XLSXPath(),
			MapPath:       cfg.MapPath(),
			MapTitle:      "Development leads: " + cfg.Location(),
			LockPath:      cfg.LockPath(),
		},
		MapCenter: [2]float64{cfg.Geocode.FallbackLat, cfg.Geocode.FallbackLon},
		Report:    os.Stdout,
		Logger:    logger,
	}
	e.pipeline = p
	return e, nil
}

// buildSources instantiates the adapters named in scrape.sources, in order.
func buildSources(cfg *config.Config, r scraper.Renderer, f scraper.PageFetcher, logger *utils.Logger) ([]scraper.Source, error) {
	var sources []scraper.Source
	for _, name := range cfg.Scrape.Sources {
		switch name {
		case "redfin":
			sources = append(sources, redfin.New(cfg.Scrape.RedfinURL, cfg.Scrape.MaxListings, r, f, logger))
		case "realtor":
			sources = append(sources, realtor.New(cfg.Scrape.RealtorURL, cfg.Scrape.MaxListings, r, f, logger))
		case "zillow":
			sources = append(sources, zillow.New(cfg.Scrape.ZillowURL, cfg.Scrape.MaxListings, r, logger))
		case "file":
			if cfg.Scrape.FixturePath == "" {
				return nil, eris.New("source file needs scrape.fixture_path")
			}
			sources = append(sources, file.New(cfg.Scrape.FixturePath, logger))
		default:
			return nil, eris.Errorf("unknown source %q", name)
		}
	}
	if len(sources) == 0 {
		return nil, eris.New("no sources configured (scrape.sources)")
	}
	return sources, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.RecordWriter, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return storage.NewPostgresWriter(ctx, cfg.Store.PostgresDSN, cfg.Store.Table, logger)
	case "sqlite", "":
		return storage.NewSQLiteWriter(ctx, cfg.Store.DatabasePath, cfg.Store.Table, logger)
	}
	return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func openSheet(cfg *config.Config, logger *utils.Logger) (*storage.SheetsClient, error) {
	sa, err := storage.LoadServiceAccount(cfg.Google.CredentialsPath)
	if err != nil {
		return nil, err
	}
	return storage.NewSheetsClient(cfg.Google.BaseURL, cfg.Google.SheetsID, cfg.Google.Worksheet, sa, logger)
}

func newNotifier(cfg *config.Config, logger *utils.Logger) notify.Notifier {
	if !cfg.EmailEnabled() {
		return notify.NewLogNotifier(logger)
	}
	return notify.NewEmailNotifier(notify.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		User:     cfg.Email.User,
		Password: cfg.Email.Password,
		To:       cfg.Email.To,
	}, logger)
}

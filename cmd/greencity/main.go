package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"
	_ "time/tzdata"

	"github.com/lox/greencity/internal/api"
	"github.com/lox/greencity/internal/config"
	"github.com/lox/greencity/internal/history"
	"github.com/lox/greencity/internal/index"
	"github.com/lox/greencity/internal/ingest"
	"github.com/lox/greencity/internal/installation"
	"github.com/lox/greencity/internal/models"
	"github.com/lox/greencity/internal/simulate"
	"github.com/lox/greencity/internal/store"
)

type Globals struct {
	Config  string                   `help:"Path to YAML config." default:"greencity.yaml" env:"GREENCITY_CONFIG" type:"path"`
	DB      string                   `help:"SQLite database path (overrides config)." env:"GREENCITY_DB" type:"path"`
	EnvFile kongdotenv.ENVFileConfig `help:"Load environment from a .env file." name:"env-file"`
}

type CLI struct {
	Globals

	Update  UpdateCmd  `cmd:"" help:"Collect today's metrics, compute and store the index."`
	History HistoryCmd `cmd:"" help:"Generate a synthetic historical dataset."`
	Load    LoadCmd    `cmd:"" help:"Load a historical JSON dataset into the database."`
	Latest  LatestCmd  `cmd:"" help:"Print the latest stored index."`
	Serve   ServeCmd   `cmd:"" help:"Run the API server and daily scheduler."`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("greencity"),
		kong.Description("Green City Index for Aarhus."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}

type env struct {
	cfg   *config.Config
	store *store.Store
	loc   *time.Location
	calc  *index.Calculator
}

func (g *Globals) open() (*env, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.DB != "" {
		cfg.DatabasePath = g.DB
	}
	loc, err := cfg.TZ()
	if err != nil {
		return nil, err
	}
	weights, err := cfg.ModelWeights()
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	log.Printf("database %s ready", cfg.DatabasePath)

	return &env{
		cfg:   cfg,
		store: st,
		loc:   loc,
		calc:  index.NewCalculator(weights),
	}, nil
}

func (e *env) collector() *ingest.Collector {
	var air *ingest.AirQualityClient
	if e.cfg.AirQualityEnabled() {
		air = ingest.NewAirQualityClient(e.cfg.AirQuality.URL, e.cfg.Location.Latitude, e.cfg.Location.Longitude)
	} else {
		log.Println("air quality fetch disabled")
	}
	c := ingest.NewCollector(e.store, air, simulate.NewLive(), e.calc, e.cfg.TargetScore)
	if e.cfg.Installation.URL != "" {
		c.SetInstallation(installation.NewClient(e.cfg.Installation.URL, e.cfg.Installation.ID))
	}
	return c
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

type UpdateCmd struct {
	Date string `help:"Date to compute (YYYY-MM-DD), defaults to today."`
}

func (c *UpdateCmd) Run(ctx context.Context, g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.store.Close()

	date := time.Now().In(e.loc)
	if c.Date != "" {
		if date, err = parseDate(c.Date); err != nil {
			return err
		}
	}

	rec, err := e.collector().Run(ctx, date)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	log.Printf("green city index for %s: %.1f", rec.Date, rec.OverallScore)
	for _, d := range models.Dimensions {
		log.Printf("  %s: %.1f", d, rec.DimensionScores[d])
	}
	return nil
}

type HistoryCmd struct {
	Start     string `help:"First date (YYYY-MM-DD), defaults to history.days before the end date."`
	End       string `help:"Last date (YYYY-MM-DD), defaults to today."`
	Sampling  string `help:"daily, weekly or monthly (overrides config)."`
	OutputDir string `help:"Directory for the JSON dataset (overrides config)." type:"path"`
	SaveDB    bool   `help:"Also upsert the generated records into the database." name:"save-db"`
}

func (c *HistoryCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.store.Close()

	now := time.Now().In(e.loc)
	end := now
	if c.End != "" {
		if end, err = parseDate(c.End); err != nil {
			return err
		}
	}
	start := end.AddDate(0, 0, -e.cfg.History.Days)
	if c.Start != "" {
		if start, err = parseDate(c.Start); err != nil {
			return err
		}
	}

	samplingName := e.cfg.History.Sampling
	if c.Sampling != "" {
		samplingName = c.Sampling
	}
	sampling, err := history.ParseSampling(samplingName)
	if err != nil {
		return err
	}

	synth := history.NewSynthesizer(e.calc, history.WithNow(now))
	records, err := synth.GenerateDataset(start, end, sampling)
	if err != nil {
		return fmt.Errorf("generate history: %w", err)
	}

	dir := e.cfg.History.OutputDir
	if c.OutputDir != "" {
		dir = c.OutputDir
	}
	path, err := history.SaveJSON(dir, history.DefaultFilename(now), records)
	if err != nil {
		return err
	}
	log.Printf("wrote %d records to %s", len(records), path)

	if c.SaveDB {
		history.SaveToStore(e.store, records, e.cfg.TargetScore)
	}
	return nil
}

type LoadCmd struct {
	File   string  `help:"JSON dataset to load." type:"existingfile" required:""`
	Target float64 `help:"Target score to store with each record (defaults to config)."`
}

func (c *LoadCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.store.Close()

	records, err := history.LoadJSON(c.File)
	if err != nil {
		return err
	}
	target := e.cfg.TargetScore
	if c.Target > 0 {
		target = c.Target
	}
	if n := history.LoadIntoStore(e.store, records, target); n == 0 && len(records) > 0 {
		return fmt.Errorf("no records from %s were stored", c.File)
	}
	return nil
}

type LatestCmd struct {
	Days int `help:"Print the most recent N days instead of just the latest."`
}

func (c *LatestCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.store.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if c.Days > 0 {
		rows, err := e.store.GetIndexHistory(c.Days)
		if err != nil {
			return err
		}
		out := make([]api.IndexResponse, len(rows))
		for i, row := range rows {
			out[i] = api.NewIndexResponse(row)
		}
		return enc.Encode(out)
	}

	latest, err := e.store.GetLatestIndex()
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("no index stored yet")
	}
	return enc.Encode(api.NewIndexResponse(*latest))
}

type ServeCmd struct {
	Addr   string `help:"Listen address (overrides config)."`
	NoPoll bool   `help:"Disable the daily update scheduler." name:"no-poll"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.store.Close()

	addr := e.cfg.ServerAddr
	if c.Addr != "" {
		addr = c.Addr
	}

	if !c.NoPoll {
		scheduler := ingest.NewScheduler(e.store, e.collector(), e.loc)
		scheduler.SetPayloadRetention(e.cfg.PayloadRetentionDays)
		go scheduler.Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	server := api.NewServer(e.store, addr)
	log.Printf("starting server on %s", addr)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

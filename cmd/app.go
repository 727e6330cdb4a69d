package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture/opencv"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/database/sqlite"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// app wires the configured storage backend and policy for a single command run.
type app struct {
	cfg        *config.Config
	identities database.IdentityWriter
	records    database.AttendanceWriter
	matcher    *facematch.Matcher
	late       attendance.LatePolicy
	locks      *attendance.KeyedMutex
	closers    []func()
}

// openApp loads configuration, validates the policy and opens PostgreSQL when
// DATABASE_URL is set, otherwise the local SQLite file.
func openApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	late, err := attendance.LatePolicyFromConfig(&cfg.Policy)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		matcher: facematch.NewMatcher(cfg.Policy.DuplicateThreshold, cfg.Policy.RecognitionThreshold),
		late:    late,
		locks:   attendance.NewKeyedMutex(),
	}

	if cfg.Database.URL != "" {
		pool, err := postgres.Initialize(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := pool.Close(); err != nil {
				fmt.Printf("Warning: closing PostgreSQL pool: %v\n", err)
			}
		})
	} else {
		db, err := sqlite.Initialize(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite at %s: %w", cfg.Database.Path, err)
		}
		a.closers = append(a.closers, func() {
			if err := sqlite.Close(db); err != nil {
				fmt.Printf("Warning: %v\n", err)
			}
		})
	}

	if a.identities, err = database.GetIdentityWriter(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.records, err = database.GetAttendanceWriter(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases everything opened by openApp and newAnalyzer, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// modelTag is the tag of the configured embedding model, used when no analyzer is loaded.
func (a *app) modelTag() string {
	return a.cfg.ModelTag()
}

func (a *app) store(modelTag string) *facematch.Store {
	return facematch.NewStore(a.identities, modelTag)
}

func (a *app) enroller(modelTag string) *facematch.Enroller {
	guard := facematch.NewGuard(a.store(modelTag), a.matcher)
	return facematch.NewEnroller(a.identities, guard, modelTag)
}

func (a *app) sweeper() *attendance.Sweeper {
	return attendance.NewSweeper(a.identities, a.records, a.locks)
}

func (a *app) reporter() *attendance.Reporter {
	return attendance.NewReporter(a.identities, a.records)
}

// newAnalyzer returns the configured face analyzer: the embedding server client
// ("http") or the local OpenCV DNN pair ("opencv"). The app closes it.
func (a *app) newAnalyzer() (vision.Analyzer, error) {
	switch a.cfg.Embedding.Backend {
	case "http":
		return fingerprint.NewClient(&a.cfg.Embedding), nil
	case "opencv":
		analyzer, err := opencv.NewAnalyzer(&a.cfg.OpenCV, a.modelTag())
		if err != nil {
			return nil, fmt.Errorf("loading OpenCV models: %w", err)
		}
		a.closers = append(a.closers, func() { analyzer.Close() })
		return analyzer, nil
	default:
		return nil, fmt.Errorf("unknown EMBEDDING_BACKEND %q: expected http or opencv", a.cfg.Embedding.Backend)
	}
}

// pinger is implemented by analyzers backed by a remote service.
type pinger interface {
	Ping(ctx context.Context) error
}

// checkAnalyzer fails fast when a remote analyzer is unreachable.
func checkAnalyzer(ctx context.Context, analyzer vision.Analyzer) error {
	p, ok := analyzer.(pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("embedding service unavailable: %w", err)
	}
	return nil
}

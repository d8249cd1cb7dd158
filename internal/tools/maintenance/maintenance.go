// Package maintenance implements offline repair and audit commands for the
// capture database: session status rebuilds from the event journal and
// journal integrity verification.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/tabulara/tabulara/internal/capture/invariant"
	"github.com/tabulara/tabulara/internal/capture/projection"
	"github.com/tabulara/tabulara/internal/capture/storage"
	"github.com/tabulara/tabulara/internal/capture/storage/sqlite"
	"github.com/tabulara/tabulara/internal/platform/config"
)

// Config holds maintenance command configuration.
type Config struct {
	SessionID  string
	SessionIDs string
	DBPath     string
	Timeout    time.Duration
	DryRun     bool
	Verify     bool
	JSONOutput bool
}

type envConfig struct {
	DBPath  string        `env:"TABULARA_CAPTURE_DB_PATH"`
	Timeout time.Duration `env:"TABULARA_MAINTENANCE_TIMEOUT" envDefault:"10m"`
}

// ParseConfig parses environment defaults and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := config.ParseEnv(&envCfg); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:  envCfg.DBPath,
		Timeout: envCfg.Timeout,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "capture.db")
	}

	fs.StringVar(&cfg.SessionID, "session-id", "", "session ID to rebuild or verify")
	fs.StringVar(&cfg.SessionIDs, "session-ids", "", "comma-separated session IDs to rebuild or verify")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the capture sqlite database (default: TABULARA_CAPTURE_DB_PATH or data/capture.db)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "compute replayed statuses without writing projections")
	fs.BoolVar(&cfg.Verify, "verify", false, "verify journal integrity and projection invariants instead of rebuilding")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output a JSON report")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Report summarizes one maintenance pass.
type Report struct {
	Mode     string          `json:"mode"`
	DryRun   bool            `json:"dry_run,omitempty"`
	Sessions []SessionReport `json:"sessions"`
}

// SessionReport summarizes one session's rebuild or verification.
type SessionReport struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status,omitempty"`
	LastSeq   int64  `json:"last_seq,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Run executes the maintenance command against the configured database.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open capture db: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && errOut != nil {
			fmt.Fprintf(errOut, "close capture db: %v\n", closeErr)
		}
	}()

	return run(ctx, cfg, store, out)
}

func run(ctx context.Context, cfg Config, store captureStore, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	sessionIDs, err := resolveSessionIDs(ctx, cfg, store)
	if err != nil {
		return err
	}

	var report Report
	if cfg.Verify {
		report = verifySessions(ctx, store, sessionIDs)
	} else {
		report = rebuildSessions(ctx, cfg, store, sessionIDs)
	}

	if err := writeReport(out, cfg, report); err != nil {
		return err
	}

	for _, sr := range report.Sessions {
		if sr.Error != "" {
			return fmt.Errorf("%d of %d streams failed", countFailed(report), len(report.Sessions))
		}
	}
	return nil
}

func resolveSessionIDs(ctx context.Context, cfg Config, store captureStore) ([]string, error) {
	if cfg.SessionID != "" && cfg.SessionIDs != "" {
		return nil, errors.New("-session-id cannot be combined with -session-ids")
	}
	if cfg.SessionID != "" {
		return []string{strings.TrimSpace(cfg.SessionID)}, nil
	}
	if cfg.SessionIDs != "" {
		var ids []string
		for _, id := range strings.Split(cfg.SessionIDs, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}
		if len(ids) == 0 {
			return nil, errors.New("-session-ids contains no session IDs")
		}
		return ids, nil
	}

	ids, err := store.ListSessionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

// rebuildSessions replays each session's journal stream and rewrites its
// projected status. Dry runs report the replayed status without writing.
func rebuildSessions(ctx context.Context, cfg Config, store captureStore, sessionIDs []string) Report {
	report := Report{Mode: "rebuild", DryRun: cfg.DryRun, Sessions: []SessionReport{}}
	for _, sessionID := range sessionIDs {
		sr := SessionReport{SessionID: sessionID}

		status, lastSeq, err := projection.ReplayStream(ctx, store, sessionID)
		sr.LastSeq = lastSeq
		switch {
		case err != nil:
			sr.Error = err.Error()
		case status == "":
			// No transition events; the projection stays as is.
		case cfg.DryRun:
			sr.Status = string(status)
		default:
			if err := store.SetSessionStatus(ctx, sessionID, status); err != nil {
				sr.Error = fmt.Sprintf("set status: %v", err)
			} else {
				sr.Status = string(status)
			}
		}
		report.Sessions = append(report.Sessions, sr)
	}
	return report
}

// verifySessions runs the invariant engine over the global stream and each
// session stream.
func verifySessions(ctx context.Context, store captureStore, sessionIDs []string) Report {
	report := Report{Mode: "verify", Sessions: []SessionReport{}}
	engine := invariant.NewEngine(store)

	globalReport := SessionReport{SessionID: storage.GlobalStream}
	if err := engine.AssertAll(ctx, ""); err != nil {
		globalReport.Error = err.Error()
	}
	report.Sessions = append(report.Sessions, globalReport)

	for _, sessionID := range sessionIDs {
		sr := SessionReport{SessionID: sessionID}
		if err := engine.AssertAll(ctx, sessionID); err != nil {
			sr.Error = err.Error()
		}
		report.Sessions = append(report.Sessions, sr)
	}
	return report
}

func writeReport(out io.Writer, cfg Config, report Report) error {
	if cfg.JSONOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	for _, sr := range report.Sessions {
		switch {
		case sr.Error != "":
			fmt.Fprintf(out, "%s: FAIL %s\n", sr.SessionID, sr.Error)
		case report.Mode == "verify":
			fmt.Fprintf(out, "%s: OK\n", sr.SessionID)
		case sr.Status == "":
			fmt.Fprintf(out, "%s: no transition events (seq %d)\n", sr.SessionID, sr.LastSeq)
		case report.DryRun:
			fmt.Fprintf(out, "%s: would set status %s (seq %d)\n", sr.SessionID, sr.Status, sr.LastSeq)
		default:
			fmt.Fprintf(out, "%s: status %s (seq %d)\n", sr.SessionID, sr.Status, sr.LastSeq)
		}
	}
	return nil
}

func countFailed(report Report) int {
	failed := 0
	for _, sr := range report.Sessions {
		if sr.Error != "" {
			failed++
		}
	}
	return failed
}

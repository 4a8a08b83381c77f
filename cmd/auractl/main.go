package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"aura/internal/adapter/repo"
	"aura/internal/infra"
	"aura/internal/storage"
	"aura/pkg/zip"
)

const usage = `usage: auractl <command> [flags]

commands:
  list    print recently archived jobs
  purge   delete archived jobs older than a cutoff
  export  write archived jobs to a zip bundle
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "list":
		runList(os.Args[2:])
	case "purge":
		runPurge(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}

func openArchive() (*repo.JobArchivePG, func()) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "auractl").Logger()
	return repo.NewJobArchive(infra.NewSQLRunner(pool, logger)), pool.Close
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("limit", 50, "maximum number of jobs to print")
	_ = fs.Parse(args)

	archive, closePool := openArchive()
	defer closePool()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs, err := archive.ListRecent(ctx, *limit)
	if err != nil {
		exitWithError(fmt.Errorf("failed to list archived jobs: %w", err))
	}

	for _, j := range jobs {
		fmt.Printf("%s  %-10s  %5.1f%%  %s  %s\n",
			j.ArchivedAt.Format(time.RFC3339), j.Status, j.Progress, j.ID, j.Filename)
	}
	fmt.Printf("%d job(s)\n", len(jobs))
}

func runPurge(args []string) {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	before := fs.Duration("before", 30*24*time.Hour, "purge jobs archived longer ago than this")
	_ = fs.Parse(args)

	archive, closePool := openArchive()
	defer closePool()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-*before)

	refs, err := archive.OutputRefsBefore(ctx, cutoff)
	if err != nil {
		exitWithError(fmt.Errorf("failed to list output artifacts: %w", err))
	}

	removed := 0
	if len(refs) > 0 {
		store := openStore(ctx)
		for _, ref := range refs {
			if err := store.Remove(ctx, ref); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove %s: %v\n", ref, err)
				continue
			}
			removed++
		}
	}

	deleted, err := archive.PurgeBefore(ctx, cutoff)
	if err != nil {
		exitWithError(fmt.Errorf("failed to purge archive: %w", err))
	}
	fmt.Printf("purged %d job(s), removed %d artifact(s)\n", deleted, removed)
}

func openStore(ctx context.Context) storage.Store {
	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(fmt.Errorf("failed to load config: %w", err))
	}

	var store storage.Store
	switch cfg.StorageBackend {
	case "s3":
		store, err = storage.NewMinIOStore(ctx, cfg)
	default:
		store, err = storage.NewFileStore(cfg.DataDir)
	}
	if err != nil {
		exitWithError(fmt.Errorf("failed to initialize storage: %w", err))
	}
	return store
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "aura-archive.zip", "output bundle path")
	limit := fs.Int("limit", 1000, "maximum number of jobs to export")
	_ = fs.Parse(args)

	archive, closePool := openArchive()
	defer closePool()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jobs, err := archive.ListRecent(ctx, *limit)
	if err != nil {
		exitWithError(fmt.Errorf("failed to list archived jobs: %w", err))
	}

	entries := make([]zip.Entry, 0, len(jobs)+1)
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		data, err := json.MarshalIndent(exportView(j), "", "  ")
		if err != nil {
			exitWithError(fmt.Errorf("failed to encode job %s: %w", j.ID, err))
		}
		entries = append(entries, zip.Entry{Name: "jobs/" + j.ID + ".json", Data: data})
		ids = append(ids, j.ID)
	}

	manifest, err := json.MarshalIndent(map[string]any{
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"total":       len(ids),
		"job_ids":     ids,
	}, "", "  ")
	if err != nil {
		exitWithError(fmt.Errorf("failed to encode manifest: %w", err))
	}
	entries = append(entries, zip.Entry{Name: "manifest.json", Data: manifest})

	bundle, err := zip.Bundle(entries)
	if err != nil {
		exitWithError(fmt.Errorf("failed to build bundle: %w", err))
	}
	if err := os.WriteFile(*out, bundle, 0o644); err != nil {
		exitWithError(fmt.Errorf("failed to write %s: %w", *out, err))
	}
	fmt.Printf("wrote %s with %d job(s)\n", *out, len(ids))
}

type jobExport struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"size_bytes"`
	Prompt      *string   `json:"prompt,omitempty"`
	StylePreset *string   `json:"style_preset,omitempty"`
	Quality     *string   `json:"quality,omitempty"`
	Progress    float64   `json:"progress"`
	OutputRef   *string   `json:"output_ref,omitempty"`
	Error       *string   `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ArchivedAt  time.Time `json:"archived_at"`
}

func exportView(j repo.ArchivedJob) jobExport {
	return jobExport{
		ID:          j.ID,
		Status:      j.Status,
		Filename:    j.Filename,
		SizeBytes:   j.SizeBytes,
		Prompt:      j.Prompt,
		StylePreset: j.StylePreset,
		Quality:     j.Quality,
		Progress:    j.Progress,
		OutputRef:   j.OutputRef,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		ArchivedAt:  j.ArchivedAt,
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// Package ingest bulk-loads source documents into the tier store: each
// file is digested into its reduced tiers, and the full tier is linked to
// the source file where the store supports it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/digest"
	"github.com/fyrsmithlabs/tierd/internal/ignore"
	"github.com/fyrsmithlabs/tierd/internal/sanitize"
	"github.com/fyrsmithlabs/tierd/internal/store"
	"github.com/fyrsmithlabs/tierd/internal/tier"
)

const tracerName = "github.com/fyrsmithlabs/tierd/internal/ingest"

// DefaultExtensions are the source file extensions ingested when walking
// a directory.
var DefaultExtensions = []string{".md", ".txt"}

// Options controls ingestion behavior.
type Options struct {
	// LinkFull links the full tier to the source file instead of copying
	// its content, when the store supports linking.
	LinkFull bool
	// Extensions filters directory walks. Defaults to DefaultExtensions.
	Extensions []string
	// ExcludePatterns are gitignore-style rules applied to directory
	// walks, in addition to any rule files found at the walk root.
	ExcludePatterns []string
}

// FileResult describes the outcome for one source file.
type FileResult struct {
	Path          string `json:"path"`
	Key           string `json:"key"`
	OriginalBytes int    `json:"original_bytes"`
	SummaryBytes  int    `json:"summary_bytes"`
	OverviewBytes int    `json:"overview_bytes"`
	Linked        bool   `json:"linked"`
	Error         string `json:"error,omitempty"`
}

// Report aggregates an ingestion run. Ratios are compressed/original;
// TokenSavingRate estimates the saving of answering from the overview
// tier instead of the full text.
type Report struct {
	TotalFiles      int          `json:"total_files"`
	Ingested        int          `json:"ingested"`
	Failed          int          `json:"failed"`
	OriginalBytes   int64        `json:"original_bytes"`
	SummaryBytes    int64        `json:"summary_bytes"`
	OverviewBytes   int64        `json:"overview_bytes"`
	SummaryRatio    float64      `json:"summary_ratio"`
	OverviewRatio   float64      `json:"overview_ratio"`
	TokenSavingRate float64      `json:"token_saving_rate"`
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      time.Time    `json:"finished_at"`
	Files           []FileResult `json:"files"`
}

// Ingestor loads source files into a tier store.
type Ingestor struct {
	store  store.Store
	gen    *digest.Generator
	logger *zap.Logger
	opts   Options
}

// New creates an Ingestor.
func New(st store.Store, gen *digest.Generator, logger *zap.Logger, opts Options) (*Ingestor, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	return &Ingestor{
		store:  st,
		gen:    gen,
		logger: logger,
		opts:   opts,
	}, nil
}

// Directory ingests every matching file under dir, recursively. Hidden
// directories are skipped, as is anything matching the ignore rules
// found at the root. Per-file failures are recorded in the report and
// do not abort the run; only an unreadable root directory is an error.
func (in *Ingestor) Directory(ctx context.Context, dir string) (*Report, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingest.directory")
	defer span.End()

	rules, err := ignore.Load(dir, in.opts.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("loading ignore rules in %s: %w", dir, err)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || rules.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if in.matchesExtension(d.Name()) && !rules.Match(rel, false) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)

	report := in.run(ctx, paths, func(path string) (string, bool) {
		return documentKey(path), in.opts.LinkFull
	})

	span.SetAttributes(
		attribute.Int("ingest.total", report.TotalFiles),
		attribute.Int("ingest.failed", report.Failed),
	)
	return report, nil
}

// FromManifest ingests the documents listed in a TOML manifest. Paths in
// the manifest are resolved relative to the manifest file.
func (in *Ingestor) FromManifest(ctx context.Context, path string) (*Report, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingest.manifest")
	defer span.End()

	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	paths := make([]string, 0, len(m.Documents))
	keys := make(map[string]string, len(m.Documents))
	links := make(map[string]bool, len(m.Documents))
	for _, doc := range m.Documents {
		p := doc.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		paths = append(paths, p)

		key := doc.Key
		if key == "" {
			key = documentKey(p)
		}
		keys[p] = key

		link := m.Defaults.LinkFull
		if doc.LinkFull != nil {
			link = *doc.LinkFull
		}
		links[p] = link
	}

	report := in.run(ctx, paths, func(path string) (string, bool) {
		return keys[path], links[path]
	})

	span.SetAttributes(
		attribute.Int("ingest.total", report.TotalFiles),
		attribute.Int("ingest.failed", report.Failed),
	)
	return report, nil
}

// File ingests a single source file under the given key. An empty key is
// derived from the file name.
func (in *Ingestor) File(ctx context.Context, path, key string, linkFull bool) (FileResult, error) {
	if key == "" {
		key = documentKey(path)
	}
	result := FileResult{Path: path, Key: key}

	content, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("reading %s: %w", path, err)
	}
	result.OriginalBytes = len(content)

	d := in.gen.Generate(string(content))
	result.SummaryBytes = len(d.Summary)
	result.OverviewBytes = len(d.Overview)

	if err := in.store.PutTierContent(ctx, key, tier.Tier0, d.Summary); err != nil {
		return result, fmt.Errorf("storing summary for %s: %w", key, err)
	}
	if err := in.store.PutTierContent(ctx, key, tier.Tier1, d.Overview); err != nil {
		return result, fmt.Errorf("storing overview for %s: %w", key, err)
	}

	if linker, ok := in.store.(store.Linker); ok && linkFull {
		linked, err := linker.LinkOrCopy(ctx, path, key)
		if err != nil {
			return result, fmt.Errorf("linking full tier for %s: %w", key, err)
		}
		result.Linked = linked
	} else {
		if err := in.store.PutTierContent(ctx, key, tier.Tier2, string(content)); err != nil {
			return result, fmt.Errorf("storing full tier for %s: %w", key, err)
		}
	}

	return result, nil
}

// run ingests paths in order, accumulating the report. keyFor resolves
// the document key and link preference per path.
func (in *Ingestor) run(ctx context.Context, paths []string, keyFor func(string) (string, bool)) *Report {
	report := &Report{
		TotalFiles: len(paths),
		StartedAt:  time.Now().UTC(),
		Files:      make([]FileResult, 0, len(paths)),
	}

	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		key, link := keyFor(path)

		if prev, dup := seen[key]; dup {
			result := FileResult{
				Path:  path,
				Key:   key,
				Error: fmt.Sprintf("key already used by %s", prev),
			}
			report.Files = append(report.Files, result)
			report.Failed++
			in.logger.Warn("skipping duplicate document key",
				zap.String("key", key),
				zap.String("path", path),
				zap.String("previous", prev))
			continue
		}

		result, err := in.File(ctx, path, key, link)
		if err != nil {
			result.Error = err.Error()
			report.Files = append(report.Files, result)
			report.Failed++
			in.logger.Warn("ingest failed",
				zap.String("path", path),
				zap.Error(err))
			continue
		}

		seen[key] = path
		report.Files = append(report.Files, result)
		report.Ingested++
		report.OriginalBytes += int64(result.OriginalBytes)
		report.SummaryBytes += int64(result.SummaryBytes)
		report.OverviewBytes += int64(result.OverviewBytes)
		in.logger.Debug("ingested document",
			zap.String("key", result.Key),
			zap.Int("original_bytes", result.OriginalBytes),
			zap.Bool("linked", result.Linked))
	}

	report.FinishedAt = time.Now().UTC()
	if report.OriginalBytes > 0 {
		report.SummaryRatio = float64(report.SummaryBytes) / float64(report.OriginalBytes)
		report.OverviewRatio = float64(report.OverviewBytes) / float64(report.OriginalBytes)
		report.TokenSavingRate = 1 - report.OverviewRatio
	}
	return report
}

func (in *Ingestor) matchesExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range in.opts.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// documentKey derives a key from a file path: the base name without its
// extension, normalized into store-safe form. Explicit manifest keys
// skip this and are enforced by the store instead.
func documentKey(path string) string {
	base := filepath.Base(path)
	return sanitize.Key(strings.TrimSuffix(base, filepath.Ext(base)))
}

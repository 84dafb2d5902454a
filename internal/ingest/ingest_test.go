package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/digest"
	"github.com/fyrsmithlabs/tierd/internal/store"
	"github.com/fyrsmithlabs/tierd/internal/tier"
)

const sampleDoc = `# Project Report

## Progress

- done task A
- done task B

Main work continues on the storage layer with several open items.
`

func newTestIngestor(t *testing.T, st store.Store, opts Options) *Ingestor {
	t.Helper()
	in, err := New(st, digest.NewGenerator(digest.DefaultConfig()), zap.NewNop(), opts)
	require.NoError(t, err)
	return in
}

func writeFileT(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew_Validation(t *testing.T) {
	gen := digest.NewGenerator(digest.DefaultConfig())

	_, err := New(nil, gen, zap.NewNop(), Options{})
	require.Error(t, err)

	_, err = New(store.NewMemStore(), nil, zap.NewNop(), Options{})
	require.Error(t, err)

	_, err = New(store.NewMemStore(), gen, nil, Options{})
	require.Error(t, err)
}

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "2025-01-10.md"), sampleDoc)
	writeFileT(t, filepath.Join(dir, "notes.txt"), "short note about the design review\n")
	writeFileT(t, filepath.Join(dir, "script.py"), "print('ignored')\n")
	writeFileT(t, filepath.Join(dir, ".cache", "hidden.md"), "should be skipped\n")

	st := store.NewMemStore()
	in := newTestIngestor(t, st, Options{})

	report, err := in.Directory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalFiles)
	assert.Equal(t, 2, report.Ingested)
	assert.Equal(t, 0, report.Failed)
	assert.Positive(t, report.OriginalBytes)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	keys, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-10", "notes"}, keys)

	for _, tr := range []tier.Tier{tier.Tier0, tier.Tier1, tier.Tier2} {
		content, ok, err := st.GetTierContent(context.Background(), "2025-01-10", tr)
		require.NoError(t, err)
		assert.True(t, ok, "tier %s missing", tr)
		assert.NotEmpty(t, content)
	}

	full, ok, err := st.GetTierContent(context.Background(), "2025-01-10", tier.Tier2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleDoc, full)
}

func TestDirectory_MissingRoot(t *testing.T) {
	in := newTestIngestor(t, store.NewMemStore(), Options{})

	_, err := in.Directory(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestDirectory_IgnoreRules(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, ".tierdignore"), "drafts/\n*.bak.md\n")
	writeFileT(t, filepath.Join(dir, "keep.md"), "kept content\n")
	writeFileT(t, filepath.Join(dir, "old.bak.md"), "ignored by rule file\n")
	writeFileT(t, filepath.Join(dir, "drafts", "wip.md"), "ignored directory\n")
	writeFileT(t, filepath.Join(dir, "archive", "2024.md"), "ignored by option\n")

	st := store.NewMemStore()
	in := newTestIngestor(t, st, Options{ExcludePatterns: []string{"archive/"}})

	report, err := in.Directory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalFiles)
	assert.Equal(t, 1, report.Ingested)

	keys, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, keys)
}

func TestDirectory_DuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "a", "report.md"), "first report\n")
	writeFileT(t, filepath.Join(dir, "b", "report.md"), "second report\n")

	in := newTestIngestor(t, store.NewMemStore(), Options{})

	report, err := in.Directory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalFiles)
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Files, 2)
	assert.Contains(t, report.Files[1].Error, "key already used")
}

func TestDirectory_LinkFull(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "2025-01-10.md")
	writeFileT(t, src, sampleDoc)

	st, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	in := newTestIngestor(t, st, Options{LinkFull: true})

	report, err := in.Directory(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 1, report.Ingested)
	assert.True(t, report.Files[0].Linked)

	full, ok, err := st.GetTierContent(context.Background(), "2025-01-10", tier.Tier2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleDoc, full)
}

func TestFile_ExplicitKey(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "anything.md")
	writeFileT(t, src, sampleDoc)

	st := store.NewMemStore()
	in := newTestIngestor(t, st, Options{})

	result, err := in.File(context.Background(), src, "design-notes", false)
	require.NoError(t, err)
	assert.Equal(t, "design-notes", result.Key)
	assert.Equal(t, len(sampleDoc), result.OriginalBytes)
	assert.Positive(t, result.SummaryBytes)
	assert.Positive(t, result.OverviewBytes)

	_, ok, err := st.GetTierContent(context.Background(), "design-notes", tier.Tier0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFile_Missing(t *testing.T) {
	in := newTestIngestor(t, store.NewMemStore(), Options{})

	_, err := in.File(context.Background(), filepath.Join(t.TempDir(), "absent.md"), "", false)
	require.Error(t, err)
}

func TestFromManifest(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "docs", "2025-01-10.md"), sampleDoc)
	writeFileT(t, filepath.Join(dir, "docs", "design.md"), "design overview content here\n")

	manifestPath := filepath.Join(dir, "corpus.toml")
	writeFileT(t, manifestPath, `version = "1"

[defaults]
link_full = false

[[document]]
path = "docs/2025-01-10.md"

[[document]]
path = "docs/design.md"
key = "design-notes"
`)

	st := store.NewMemStore()
	in := newTestIngestor(t, st, Options{})

	report, err := in.FromManifest(context.Background(), manifestPath)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Ingested)
	assert.Equal(t, 0, report.Failed)

	keys, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-10", "design-notes"}, keys)
}

func TestFromManifest_MissingFileContinues(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "present.md"), "present content\n")

	manifestPath := filepath.Join(dir, "corpus.toml")
	writeFileT(t, manifestPath, `[[document]]
path = "present.md"

[[document]]
path = "absent.md"
`)

	in := newTestIngestor(t, store.NewMemStore(), Options{})

	report, err := in.FromManifest(context.Background(), manifestPath)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 1, report.Failed)
}

func TestReport_Ratios(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "long.md"), sampleDoc)

	in := newTestIngestor(t, store.NewMemStore(), Options{})

	report, err := in.Directory(context.Background(), dir)
	require.NoError(t, err)

	assert.Greater(t, report.SummaryRatio, 0.0)
	assert.Greater(t, report.OverviewRatio, 0.0)
	assert.InDelta(t, 1-report.OverviewRatio, report.TokenSavingRate, 1e-9)
}

func TestDocumentKey(t *testing.T) {
	assert.Equal(t, "2025-01-10", documentKey("/memory/2025-01-10.md"))
	assert.Equal(t, "notes", documentKey("notes.txt"))
	assert.Equal(t, "archive-tar", documentKey("archive.tar.gz"))
	assert.Equal(t, "meeting-notes-final", documentKey("/docs/Meeting Notes (final).md"))
}

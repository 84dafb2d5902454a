package engine

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/classify"
	"github.com/fyrsmithlabs/tierd/internal/digest"
	"github.com/fyrsmithlabs/tierd/internal/stats"
	"github.com/fyrsmithlabs/tierd/internal/store"
	"github.com/fyrsmithlabs/tierd/internal/tier"
)

const releaseDoc = `# Release 2.0

## Schedule

The release shipped on March 3rd after two weeks of staged rollout across
the three production regions. The final region completed on March 5th and
the rollback window closed on March 10th without incident.

## Scope

- Rewrote the ingestion pipeline to stream instead of buffering uploads.
- Reduced p99 answer latency from 140ms to 38ms under the soak profile.
- Error budgets held through the rollout; no customer-facing regressions.

The capacity review concluded that the current fleet absorbs projected
growth through the end of the year. Storage headroom remains above forty
percent on every shard, and the compaction backlog cleared during the
quiet window between the regional waves.

## Customer impact

Two enterprise tenants reported slow dashboard loads during the second
wave. Both cases traced to a stale cache entry and resolved without code
changes. Support volume stayed within the normal weekly band.

## Follow-ups

- Retire the legacy buffering path once the last on-prem tenant upgrades.
- Extend the soak profile with the new burst pattern seen in region two.
`

// failPutStore rejects writes to exercise the ingest error path.
type failPutStore struct {
	*store.MemStore
	err error
}

func (f *failPutStore) PutTierContent(ctx context.Context, key string, t tier.Tier, content string) error {
	return f.err
}

// failGetStore rejects reads to exercise the answer error path.
type failGetStore struct {
	*store.MemStore
	err error
}

func (f *failGetStore) GetTierContent(ctx context.Context, key string, t tier.Tier) (string, bool, error) {
	return "", false, f.err
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) (*Engine, *store.MemStore) {
	t.Helper()

	st := store.NewMemStore()
	tracker, err := stats.NewTracker(stats.Config{}, zap.NewNop())
	require.NoError(t, err, "Should create tracker")

	eng, err := New(cfg, st, tracker, zap.NewNop(), opts...)
	require.NoError(t, err, "Should create engine")
	return eng, st
}

func TestNew_Validation(t *testing.T) {
	tracker, err := stats.NewTracker(stats.Config{}, zap.NewNop())
	require.NoError(t, err)

	t.Run("nil store", func(t *testing.T) {
		_, err := New(DefaultConfig(), nil, tracker, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store is required")
	})

	t.Run("nil tracker", func(t *testing.T) {
		_, err := New(DefaultConfig(), store.NewMemStore(), nil, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stats tracker is required")
	})

	t.Run("invalid digest config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Digest = digest.Config{Tier0Max: -1}
		_, err := New(cfg, store.NewMemStore(), tracker, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "digest config")
	})

	t.Run("invalid pricing", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TokensPerByte = -1
		_, err := New(cfg, store.NewMemStore(), tracker, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retrieval orchestrator")
	})

	t.Run("zero config selects defaults", func(t *testing.T) {
		eng, err := New(Config{}, store.NewMemStore(), tracker, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, tier.ModeHybrid, eng.Mode())
	})

	t.Run("nil logger is allowed", func(t *testing.T) {
		_, err := New(DefaultConfig(), store.NewMemStore(), tracker, nil)
		require.NoError(t, err)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, tier.ModeHybrid, cfg.Mode)
	assert.Equal(t, tier.DefaultPolicy(), cfg.Policy)
	assert.Equal(t, digest.DefaultConfig(), cfg.Digest)
	assert.InDelta(t, 0.25, cfg.TokensPerByte, 1e-9)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	eng, st := newTestEngine(t, DefaultConfig())

	d := eng.Summarize(ctx, releaseDoc)
	assert.NotEmpty(t, d.Summary)
	assert.NotEmpty(t, d.Overview)
	assert.Equal(t, len(releaseDoc), d.Metadata.OriginalSize)

	// Summarize is a dry run: nothing lands in the store.
	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs, "Summarize should not store anything")
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	eng, st := newTestEngine(t, DefaultConfig())

	d, err := eng.Ingest(ctx, "release-2.0", releaseDoc)
	require.NoError(t, err, "Should ingest document")

	assert.LessOrEqual(t, utf8.RuneCountInString(d.Summary), 100)
	assert.LessOrEqual(t, utf8.RuneCountInString(d.Overview), 500)

	full, ok, err := st.GetTierContent(ctx, "release-2.0", tier.Tier2)
	require.NoError(t, err)
	require.True(t, ok, "Full tier should be stored")
	assert.Equal(t, releaseDoc, full, "Full tier must be the original text")

	for _, tr := range []tier.Tier{tier.Tier0, tier.Tier1} {
		content, ok, err := st.GetTierContent(ctx, "release-2.0", tr)
		require.NoError(t, err)
		require.True(t, ok, "Tier %s should be stored", tr)
		assert.NotEmpty(t, content)
	}
}

func TestIngest_StorageError(t *testing.T) {
	ctx := context.Background()
	boom := assert.AnError

	tracker, err := stats.NewTracker(stats.Config{}, zap.NewNop())
	require.NoError(t, err)

	fs := &failPutStore{MemStore: store.NewMemStore(), err: boom}
	eng, err := New(DefaultConfig(), fs, tracker, zap.NewNop())
	require.NoError(t, err)

	_, err = eng.Ingest(ctx, "release-2.0", releaseDoc)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "store tier L0")
}

func TestClassify(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultConfig())

	res := eng.Classify("progress report")
	assert.Equal(t, classify.QueryAdministrative, res.PrimaryType)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestAnswer_Hybrid(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, DefaultConfig())

	_, err := eng.Ingest(ctx, "release-2.0", releaseDoc)
	require.NoError(t, err)

	ans, err := eng.Answer(ctx, "when did the release ship?", "release-2.0")
	require.NoError(t, err, "Should answer query")

	assert.Equal(t, classify.QueryFactualDate, ans.Metrics.QueryType)
	assert.InDelta(t, 2.0/3.0, ans.Metrics.Confidence, 1e-9)
	assert.Equal(t, []string{"L0", "L1"}, ans.Metrics.TiersLoaded)
	assert.Contains(t, ans.Content, "--- L0 ---")
	assert.Contains(t, ans.Content, "--- L1 ---")
	assert.NotContains(t, ans.Content, "--- L2 ---")
	assert.Greater(t, ans.Metrics.SavingRate, 0.0, "Reduced tiers should beat the baseline")

	_, err = uuid.Parse(ans.Metrics.ID)
	assert.NoError(t, err, "Metrics ID should be a UUID")
	assert.Equal(t, "when did the release ship?", ans.Metrics.Query)
	assert.Equal(t, "release-2.0", ans.Metrics.DocumentKey)
	assert.GreaterOrEqual(t, ans.Metrics.LatencyMS, 0.0)
	assert.False(t, ans.Metrics.Timestamp.IsZero())
	assert.Equal(t, time.UTC, ans.Metrics.Timestamp.Location())

	dash := eng.Dashboard()
	assert.Equal(t, uint64(1), dash.TotalQueries, "Answer should record into the tracker")
	assert.Contains(t, dash.QueryTypes, "factual_date")
}

func TestAnswer_TraditionalMode(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Mode = tier.ModeTraditional
	eng, _ := newTestEngine(t, cfg)

	_, err := eng.Ingest(ctx, "release-2.0", releaseDoc)
	require.NoError(t, err)

	ans, err := eng.Answer(ctx, "when did the release ship?", "release-2.0")
	require.NoError(t, err)

	assert.Equal(t, []string{"L2"}, ans.Metrics.TiersLoaded)
	assert.Contains(t, ans.Content, releaseDoc)
	assert.Less(t, ans.Metrics.SavingRate, 0.0, "Separator overhead puts the full tier above the baseline")
}

func TestAnswer_CustomPolicy(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	// A floor above every achievable confidence forces the conservative
	// all-tiers selection.
	cfg.Policy = tier.Policy{MinConfidence: 1.1, AnalyticalDeep: 0.7}
	eng, _ := newTestEngine(t, cfg)

	_, err := eng.Ingest(ctx, "release-2.0", releaseDoc)
	require.NoError(t, err)

	ans, err := eng.Answer(ctx, "progress report", "release-2.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"L0", "L1", "L2"}, ans.Metrics.TiersLoaded)
}

func TestAnswer_QueryTruncatedInHistory(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, DefaultConfig())

	_, err := eng.Ingest(ctx, "release-2.0", releaseDoc)
	require.NoError(t, err)

	long := strings.Repeat("か", 150)
	ans, err := eng.Answer(ctx, long, "release-2.0")
	require.NoError(t, err)

	assert.Equal(t, 100, utf8.RuneCountInString(ans.Metrics.Query), "History keeps at most 100 runes")
	assert.True(t, utf8.ValidString(ans.Metrics.Query))
}

func TestAnswer_UnknownKey(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, DefaultConfig())

	ans, err := eng.Answer(ctx, "when did the release ship?", "no-such-key")
	require.NoError(t, err, "Absence degrades the answer, it does not fail it")

	assert.Empty(t, ans.Content)
	assert.Empty(t, ans.Metrics.TiersLoaded)
	assert.Zero(t, ans.Metrics.TokensSaved)

	// The degraded answer still counts as an answered query.
	assert.Equal(t, uint64(1), eng.Dashboard().TotalQueries)
}

func TestAnswer_StorageError(t *testing.T) {
	ctx := context.Background()
	boom := assert.AnError

	tracker, err := stats.NewTracker(stats.Config{}, zap.NewNop())
	require.NoError(t, err)

	fs := &failGetStore{MemStore: store.NewMemStore(), err: boom}
	eng, err := New(DefaultConfig(), fs, tracker, zap.NewNop())
	require.NoError(t, err)

	_, err = eng.Answer(ctx, "when did the release ship?", "release-2.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Zero(t, eng.Dashboard().TotalQueries, "Failed queries must not be recorded")
}

type captureListener struct {
	calls []stats.QueryMetrics
}

func (c *captureListener) QueryAnswered(_ context.Context, m stats.QueryMetrics) {
	c.calls = append(c.calls, m)
}

func TestAnswer_NotifiesListener(t *testing.T) {
	ctx := context.Background()
	listener := &captureListener{}
	eng, _ := newTestEngine(t, DefaultConfig(), WithListener(listener))

	_, err := eng.Ingest(ctx, "release-2.0", releaseDoc)
	require.NoError(t, err)

	ans, err := eng.Answer(ctx, "progress report", "release-2.0")
	require.NoError(t, err)

	require.Len(t, listener.calls, 1, "Listener should see each answered query")
	assert.Equal(t, ans.Metrics.ID, listener.calls[0].ID)
	assert.Equal(t, classify.QueryAdministrative, listener.calls[0].QueryType)
}

func TestWithClassifierRules(t *testing.T) {
	rules := []classify.Rule{
		{Type: classify.QueryAdministrative, Keywords: []string{"deploy"}},
	}
	eng, _ := newTestEngine(t, DefaultConfig(), WithClassifierRules(rules))

	res := eng.Classify("deploy the service")
	assert.Equal(t, classify.QueryAdministrative, res.PrimaryType)

	// The table replaces the built-in rules rather than extending them.
	res = eng.Classify("what is the plan")
	assert.Equal(t, classify.QueryGeneral, res.PrimaryType)
}

func TestListDocumentsAndResetStats(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, DefaultConfig())

	_, err := eng.Ingest(ctx, "release-2.0", releaseDoc)
	require.NoError(t, err)
	_, err = eng.Ingest(ctx, "planning", "# Planning\n\nNext quarter targets the ingest rewrite cleanup.")
	require.NoError(t, err)

	docs, err := eng.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"planning", "release-2.0"}, docs)

	_, err = eng.Answer(ctx, "progress report", "release-2.0")
	require.NoError(t, err)
	require.Equal(t, uint64(1), eng.Dashboard().TotalQueries)

	require.NoError(t, eng.ResetStats())
	assert.Zero(t, eng.Dashboard().TotalQueries)

	// Reset clears statistics, not documents.
	docs, err = eng.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

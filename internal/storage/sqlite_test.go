package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/transmatch/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDocuments_upsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{
		Fingerprint: "abc",
		Side:        models.SideSource,
		DisplayName: "GMP1833.pdf",
		Path:        "/corpus/GMP1833.pdf",
		Text:        "La lumière de Paris",
		PageCount:   2,
		Status:      models.StatusExtracted,
	}
	require.NoError(t, store.UpsertDocument(ctx, doc))

	again := *doc
	again.Text = "different text must not overwrite"
	again.DisplayName = "renamed.pdf"
	require.NoError(t, store.UpsertDocument(ctx, &again))

	got, err := store.LookupDocument(ctx, "abc", models.SideSource)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "La lumière de Paris", got.Text)
	assert.Equal(t, "GMP1833.pdf", got.DisplayName)
	assert.Equal(t, 2, got.PageCount)
	assert.True(t, got.Extracted())

	docs, err := store.ListDocuments(ctx, models.SideSource)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDocuments_sidesAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, side := range []models.CorpusSide{models.SideSource, models.SideTarget} {
		require.NoError(t, store.UpsertDocument(ctx, &models.Document{
			Fingerprint: "same", Side: side, DisplayName: "x.pdf", Path: "/x.pdf",
			Text: string(side), Status: models.StatusExtracted,
		}))
	}
	n, err := store.CountDocuments(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = store.CountDocuments(ctx, models.SideTarget)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDocuments_lookupMissing(t *testing.T) {
	store := newTestStore(t)
	got, err := store.LookupDocument(context.Background(), "nope", models.SideTarget)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDocuments_errorThenExtracted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := &models.Document{Fingerprint: "f1", Side: models.SideTarget, DisplayName: "a.pdf", Path: "/a.pdf"}

	require.NoError(t, store.MarkDocumentError(ctx, doc, "corrupt xref"))
	got, err := store.LookupDocument(ctx, "f1", models.SideTarget)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Equal(t, "corrupt xref", got.Error)

	doc.Text = "recovered"
	doc.Status = models.StatusExtracted
	require.NoError(t, store.UpsertDocument(ctx, doc))
	got, err = store.LookupDocument(ctx, "f1", models.SideTarget)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExtracted, got.Status)
	assert.Equal(t, "recovered", got.Text)
	assert.Empty(t, got.Error)

	// A later failure must not clobber extracted text.
	require.NoError(t, store.MarkDocumentError(ctx, doc, "transient"))
	got, _ = store.LookupDocument(ctx, "f1", models.SideTarget)
	assert.Equal(t, models.StatusExtracted, got.Status)
}

func TestDocuments_listInInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, fp := range []string{"zz", "aa", "mm"} {
		require.NoError(t, store.UpsertDocument(ctx, &models.Document{
			Fingerprint: fp, Side: models.SideSource, DisplayName: fp, Path: fp, Status: models.StatusExtracted,
		}))
	}
	docs, err := store.ListDocuments(ctx, models.SideSource)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "zz", docs[0].Fingerprint)
	assert.Equal(t, "aa", docs[1].Fingerprint)
	assert.Equal(t, "mm", docs[2].Fingerprint)
}

func TestDocuments_setIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertDocument(ctx, &models.Document{
		Fingerprint: "f", Side: models.SideSource, DisplayName: "f", Path: "f", Status: models.StatusExtracted,
	}))
	require.NoError(t, store.SetDocumentIndex(ctx, "f", models.SideSource, json.RawMessage(`{"keywords":["paris"]}`)))
	got, err := store.LookupDocument(ctx, "f", models.SideSource)
	require.NoError(t, err)
	assert.JSONEq(t, `{"keywords":["paris"]}`, string(got.Index))

	assert.Error(t, store.SetDocumentIndex(ctx, "missing", models.SideSource, json.RawMessage(`{}`)))
}

func TestCandidates_clearReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.CandidateRecord{RunID: "r1", ArticleRef: "a", DocumentRef: "d", Reason: "shared names", Confidence: 0.7}
	require.NoError(t, store.InsertCandidate(ctx, first))
	assert.NotZero(t, first.ID)

	require.NoError(t, store.ClearCandidates(ctx))
	require.NoError(t, store.InsertCandidate(ctx, &models.CandidateRecord{RunID: "r2", ArticleRef: "b", DocumentRef: "d", Confidence: 0.2}))
	require.NoError(t, store.InsertCandidate(ctx, &models.CandidateRecord{RunID: "r2", ArticleRef: "c", DocumentRef: "d", Confidence: 0.9}))

	all, err := store.ListCandidates(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c", all[0].ArticleRef, "most confident first")
	for _, c := range all {
		assert.Equal(t, "r2", c.RunID)
	}

	confident, err := store.ListCandidates(ctx, 0.5)
	require.NoError(t, err)
	assert.Len(t, confident, 1)
}

func TestMatches_roundTripAndCitation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := &models.Match{
		ArticleRef:  "Sheet1#2@abc",
		DocumentRef: "def",
		MatchType:   models.MatchDirectTranslation,
		Confidence:  0.82,
		Evidence: models.Evidence{
			Reason:   "same narrative",
			Snippets: []models.EvidenceSnippet{{Original: "luz", Translated: "lumière"}},
			Source:   models.EvidenceConfirmed,
		},
	}
	require.NoError(t, store.InsertMatch(ctx, m))
	assert.NotEmpty(t, m.ID)

	pending, err := store.ListMatchesWithoutCitation(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "same narrative", pending[0].Evidence.Reason)
	assert.Equal(t, models.EvidenceConfirmed, pending[0].Evidence.Source)

	require.NoError(t, store.SetMatchCitation(ctx, m.ID, &models.Citation{Bibliography: "Dumas, Alexandre. 1833."}))
	pending, err = store.ListMatchesWithoutCitation(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := store.ListMatches(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Citation)
	assert.Equal(t, "Dumas, Alexandre. 1833.", all[0].Citation.Bibliography)

	assert.Error(t, store.SetMatchCitation(ctx, "missing", &models.Citation{}))
}

func TestMatches_noMatchRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	err := store.InsertMatch(ctx, &models.Match{ArticleRef: "a", DocumentRef: "d", MatchType: models.MatchNone, Confidence: 0.9})
	assert.ErrorIs(t, err, ErrNoMatchNotStored)
	n, err := store.CountMatches(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMatches_clear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertMatch(ctx, &models.Match{ArticleRef: "a", DocumentRef: "d", MatchType: models.MatchAdaptation, Confidence: 0.6}))
	require.NoError(t, store.ClearMatches(ctx))
	n, err := store.CountMatches(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

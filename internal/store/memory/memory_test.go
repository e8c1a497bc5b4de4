package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduscribe/internal/domain"
	"eduscribe/internal/store"
)

func chunk(lecture, doc string, index int, text string) domain.Chunk {
	return domain.Chunk{
		ID:         doc + "-" + text,
		LectureID:  lecture,
		DocumentID: doc,
		Index:      index,
		Text:       text,
		Embedding:  []float32{1, 0},
	}
}

func TestChunkUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	first := []domain.Chunk{
		chunk("lec", "doc", 0, "alpha"),
		chunk("lec", "doc", 1, "beta"),
	}
	require.NoError(t, st.UpsertChunks(ctx, first))
	require.NoError(t, st.UpsertChunks(ctx, first))

	rows, err := st.ChunksByLecture(ctx, "lec")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestChunkUpsertPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	require.NoError(t, st.UpsertChunks(ctx, []domain.Chunk{
		chunk("lec", "a", 0, "first"),
		chunk("lec", "b", 0, "second"),
	}))
	// re-processing document a must not move its chunk to the back
	require.NoError(t, st.UpsertChunks(ctx, []domain.Chunk{
		chunk("lec", "a", 0, "first updated"),
	}))

	rows, err := st.ChunksByLecture(ctx, "lec")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "first updated", rows[0].Text)
	assert.Equal(t, "second", rows[1].Text)
}

func TestDeleteDocumentChunks(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	require.NoError(t, st.UpsertChunks(ctx, []domain.Chunk{
		chunk("lec", "a", 0, "keep me not"),
		chunk("lec", "b", 0, "keep me"),
	}))
	require.NoError(t, st.DeleteDocumentChunks(ctx, "a"))

	rows, err := st.ChunksByLecture(ctx, "lec")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].DocumentID)
}

func TestFragmentUpsertLastWriteWins(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	require.NoError(t, st.UpsertFragment(ctx, &domain.TranscriptFragment{
		LectureID: "lec", Index: 0, Text: "draft", Importance: 0.2,
	}))
	require.NoError(t, st.UpsertFragment(ctx, &domain.TranscriptFragment{
		LectureID: "lec", Index: 0, Text: "final", Importance: 0.8,
	}))

	rows, err := st.FragmentsByLecture(ctx, "lec")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "final", rows[0].Text)
	assert.Equal(t, 0.8, rows[0].Importance)
}

func TestFragmentsSortedByIndex(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	for _, idx := range []int{2, 0, 1} {
		require.NoError(t, st.UpsertFragment(ctx, &domain.TranscriptFragment{
			LectureID: "lec", Index: idx,
		}))
	}
	rows, err := st.FragmentsByLecture(ctx, "lec")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, f := range rows {
		assert.Equal(t, i, f.Index)
	}
}

func TestFinalNoteUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	_, err := st.FinalNote(ctx, "lec")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.UpsertFinalNote(ctx, &domain.FinalNote{LectureID: "lec", Title: "v1"}))
	require.NoError(t, st.UpsertFinalNote(ctx, &domain.FinalNote{LectureID: "lec", Title: "v2"}))

	got, err := st.FinalNote(ctx, "lec")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
}

func TestLectureLifecycle(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	_, err := st.GetLecture(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.CreateLecture(ctx, &domain.Lecture{
		ID: "lec", Title: "T", Status: domain.LectureInProgress,
	}))
	require.NoError(t, st.CompleteLecture(ctx, "lec"))

	got, err := st.GetLecture(ctx, "lec")
	require.NoError(t, err)
	assert.Equal(t, domain.LectureCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

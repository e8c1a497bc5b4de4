package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduscribe/internal/chunker"
	"eduscribe/internal/domain"
	hashembed "eduscribe/internal/embedding/hash"
	"eduscribe/internal/extract"
	"eduscribe/internal/logger"
	"eduscribe/internal/store"
	"eduscribe/internal/store/memory"
	"eduscribe/internal/synth"
	"eduscribe/internal/vectorindex"
)

// newService wires the all-local stack: memory store, hash embedder, no
// approximate index and no completion model, so every synthesis takes its
// deterministic fallback.
func newService(t *testing.T, st store.Store, cfg Config) *Service {
	t.Helper()
	log := logger.NewNop()
	emb := hashembed.NewEmbedder(32)
	retriever := vectorindex.NewRetriever(emb, nil, st, log)
	return NewService(
		st,
		emb,
		chunker.NewWordChunker(5),
		extract.NewTextExtractor(),
		retriever,
		nil,
		synth.NewIncremental(nil, log),
		synth.NewFinal(nil, log),
		cfg,
		log,
	)
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const docText = "Machine learning studies algorithms that improve through experience. " +
	"Neural networks are one important family of such algorithms. " +
	"Deep learning stacks many layers of neural networks."

func TestLectureEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := newService(t, st, Config{WindowSize: 5, ContextTopK: 5})

	lecture, err := svc.CreateLecture(ctx, "Intro to ML")
	require.NoError(t, err)
	require.Equal(t, domain.LectureInProgress, lecture.Status)

	doc, err := svc.IngestDocument(ctx, lecture.ID, writeDoc(t, "notes.txt", docText))
	require.NoError(t, err)
	assert.True(t, doc.Processed)

	chunks, err := st.ChunksByLecture(ctx, lecture.ID)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)

	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "machine learning is good.", 0))
	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "neural networks help.", 0))
	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "deep learning works.", 0))

	final, err := svc.Finish(ctx, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lecture Notes", final.Title)
	assert.Contains(t, final.Markdown, "# Lecture Notes")
	require.Len(t, final.Sections, 1)
	assert.Equal(t, "Main Content", final.Sections[0].Title)
	assert.Empty(t, final.Glossary)

	notes, err := st.StructuredNotesByLecture(ctx, lecture.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 3, notes[0].FragmentCount)

	stored, err := st.GetLecture(ctx, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LectureCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	got, err := svc.FinalNote(ctx, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, final.Markdown, got.Markdown)
}

func TestIngestRejectsShortDocument(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := newService(t, st, Config{})

	lecture, err := svc.CreateLecture(ctx, "Short docs")
	require.NoError(t, err)

	_, err = svc.IngestDocument(ctx, lecture.ID, writeDoc(t, "tiny.txt", "too short"))
	require.ErrorIs(t, err, domain.ErrEmptyInput)

	chunks, err := st.ChunksByLecture(ctx, lecture.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFullWindowTriggersSynthesis(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := newService(t, st, Config{WindowSize: 2})

	lecture, err := svc.CreateLecture(ctx, "Windows")
	require.NoError(t, err)

	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "first point.", 0))
	notes, err := st.StructuredNotesByLecture(ctx, lecture.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "second point.", 0))
	notes, err = st.StructuredNotesByLecture(ctx, lecture.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 2, notes[0].FragmentCount)

	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "third point.", 0))
	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "fourth point.", 0))
	notes, err = st.StructuredNotesByLecture(ctx, lecture.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
}

func TestTopicShiftFlushesEarly(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := newService(t, st, Config{WindowSize: 5})

	lecture, err := svc.CreateLecture(ctx, "Shifts")
	require.NoError(t, err)

	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "gradient descent minimizes loss.", 0))
	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "now let's move on to backpropagation.", 0))

	notes, err := st.StructuredNotesByLecture(ctx, lecture.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 1, notes[0].FragmentCount)
	assert.Contains(t, notes[0].Content, "gradient descent minimizes loss")

	// the shifting fragment starts the next window
	_, err = svc.Finish(ctx, lecture.ID)
	require.NoError(t, err)
	notes, err = st.StructuredNotesByLecture(ctx, lecture.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Contains(t, notes[1].Content, "backpropagation")
}

func TestFragmentIndicesAreStable(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := newService(t, st, Config{WindowSize: 10})

	lecture, err := svc.CreateLecture(ctx, "Indices")
	require.NoError(t, err)
	for _, text := range []string{"one.", "two.", "three."} {
		require.NoError(t, svc.AddFragment(ctx, lecture.ID, text, 0))
	}

	fragments, err := st.FragmentsByLecture(ctx, lecture.ID)
	require.NoError(t, err)
	require.Len(t, fragments, 3)
	for i, f := range fragments {
		assert.Equal(t, i, f.Index)
		assert.Greater(t, f.Importance, 0.0)
	}
}

func TestAddFragmentRejectsBlank(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.NewStore(), Config{})

	lecture, err := svc.CreateLecture(ctx, "Blanks")
	require.NoError(t, err)
	err = svc.AddFragment(ctx, lecture.ID, "   ", 0)
	require.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestCreateLectureRejectsBlankTitle(t *testing.T) {
	svc := newService(t, memory.NewStore(), Config{})
	_, err := svc.CreateLecture(context.Background(), "  ")
	require.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestFinishWithoutFragments(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.NewStore(), Config{})

	lecture, err := svc.CreateLecture(ctx, "Silent lecture")
	require.NoError(t, err)

	final, err := svc.Finish(ctx, lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, "No Notes", final.Title)
	assert.Contains(t, final.Markdown, "No notes were generated")
}

func TestCompletedLectureRejectsFragments(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.NewStore(), Config{})

	lecture, err := svc.CreateLecture(ctx, "Done")
	require.NoError(t, err)
	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "only point.", 0))
	_, err = svc.Finish(ctx, lecture.ID)
	require.NoError(t, err)

	err = svc.AddFragment(ctx, lecture.ID, "too late.", 0)
	require.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestSessionRebuiltFromStore(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := newService(t, st, Config{WindowSize: 10})

	lecture, err := svc.CreateLecture(ctx, "Restart")
	require.NoError(t, err)
	require.NoError(t, svc.AddFragment(ctx, lecture.ID, "before restart.", 0))

	// a fresh service over the same store continues the index sequence
	svc2 := newService(t, st, Config{WindowSize: 10})
	require.NoError(t, svc2.AddFragment(ctx, lecture.ID, "after restart.", 0))

	fragments, err := st.FragmentsByLecture(ctx, lecture.ID)
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, 1, fragments[1].Index)
}

func TestUnknownLectureFails(t *testing.T) {
	svc := newService(t, memory.NewStore(), Config{})
	err := svc.AddFragment(context.Background(), "missing", "text.", 0)
	require.Error(t, err)
}

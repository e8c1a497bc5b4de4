package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eduscribe/internal/domain"
	"eduscribe/internal/importance"
	"eduscribe/internal/logger"
	"eduscribe/internal/store"
	"eduscribe/internal/synth"
	"eduscribe/internal/vectorindex"
)

const (
	// Documents shorter than this after extraction carry no signal worth
	// chunking and are rejected outright.
	minDocumentChars = 50

	defaultWindowSize  = 5
	defaultContextTopK = 5

	// Final synthesis embeds a single query built from the accumulated
	// notes; only the head matters for retrieval.
	finalQueryChars = 500
)

// Config sizes the rolling transcript window and the retrieval context.
type Config struct {
	WindowSize  int
	ContextTopK int
	Workers     int
}

// session is the in-memory state of one in-progress lecture: the buffered
// fragments not yet synthesized, the next fragment index, and the last
// structured note to thread into the next synthesis.
type session struct {
	pending       []domain.TranscriptFragment
	nextIndex     int
	previousNotes string
}

// Service drives a lecture from creation through document ingestion and
// live transcription to the final document. All persistent effects go
// through the store's idempotent upserts, so replaying an operation is
// safe.
type Service struct {
	store       store.Store
	embedder    domain.Embedder
	chunker     domain.Chunker
	extractor   domain.Extractor
	retriever   domain.Retriever
	approx      vectorindex.Index // nil when no approximate backend is configured
	incremental *synth.Incremental
	final       *synth.Final
	shifts      *synth.TopicShiftDetector
	pool        *Pool
	log         *logger.Logger

	windowSize  int
	contextTopK int

	mu       sync.Mutex
	sessions map[string]*session
}

func NewService(
	st store.Store,
	embedder domain.Embedder,
	chunker domain.Chunker,
	extractor domain.Extractor,
	retriever domain.Retriever,
	approx vectorindex.Index,
	incremental *synth.Incremental,
	final *synth.Final,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = defaultWindowSize
	}
	if cfg.ContextTopK <= 0 {
		cfg.ContextTopK = defaultContextTopK
	}
	return &Service{
		store:       st,
		embedder:    embedder,
		chunker:     chunker,
		extractor:   extractor,
		retriever:   retriever,
		approx:      approx,
		incremental: incremental,
		final:       final,
		shifts:      synth.NewTopicShiftDetector(),
		pool:        NewPool(cfg.Workers),
		log:         log.With("component", "pipeline"),
		windowSize:  cfg.WindowSize,
		contextTopK: cfg.ContextTopK,
		sessions:    make(map[string]*session),
	}
}

// CreateLecture opens a new lecture session.
func (s *Service) CreateLecture(ctx context.Context, title string) (*domain.Lecture, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("create lecture: %w", domain.ErrEmptyInput)
	}
	lecture := &domain.Lecture{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    domain.LectureInProgress,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateLecture(ctx, lecture); err != nil {
		return nil, fmt.Errorf("create lecture: %w", err)
	}
	s.mu.Lock()
	s.sessions[lecture.ID] = &session{}
	s.mu.Unlock()
	s.log.Info("lecture created", "lecture_id", lecture.ID, "title", title)
	return lecture, nil
}

// IngestDocument extracts, chunks, embeds and indexes one supporting file.
// Re-ingesting the same content is idempotent at the chunk level; the
// approximate index is best-effort and its failure only costs approximate
// search until it recovers.
func (s *Service) IngestDocument(ctx context.Context, lectureID, path string) (*domain.Document, error) {
	text, err := s.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	if len(strings.TrimSpace(text)) < minDocumentChars {
		return nil, fmt.Errorf("document %s too short to ingest: %w", path, domain.ErrEmptyInput)
	}

	doc := &domain.Document{
		ID:        uuid.NewString(),
		LectureID: lectureID,
		Filename:  path,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	pieces := s.chunker.Chunk(text)
	vectors, err := s.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed document %s: %w", doc.ID, err)
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{
			ID:         uuid.NewString(),
			LectureID:  lectureID,
			DocumentID: doc.ID,
			Index:      i,
			Text:       piece,
			Embedding:  vectors[i],
		}
	}
	if err := s.store.UpsertChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("store chunks for %s: %w", doc.ID, err)
	}

	if s.approx != nil {
		if err := s.approx.Index(ctx, lectureID, chunks); err != nil {
			s.log.Warn("approximate index unavailable, exact search still serves",
				"lecture_id", lectureID, "document_id", doc.ID, "error", err)
		}
	}

	if err := s.store.MarkDocumentProcessed(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("mark document processed: %w", err)
	}
	doc.Processed = true
	s.log.Info("document ingested",
		"lecture_id", lectureID, "document_id", doc.ID, "chunks", len(chunks))
	return doc, nil
}

// AddFragment records one transcript fragment, scores its importance, and
// buffers it toward the next incremental synthesis. A topic-shift cue
// flushes the current window before the fragment joins a fresh one; a full
// window flushes after.
func (s *Service) AddFragment(ctx context.Context, lectureID, text string, duration float64) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("add fragment: %w", domain.ErrEmptyInput)
	}
	sess, err := s.session(ctx, lectureID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	previous := make([]string, len(sess.pending))
	for i, f := range sess.pending {
		previous[i] = f.Text
	}
	s.mu.Unlock()

	if s.shifts.Detect(text, previous) {
		if err := s.synthesizeWindow(ctx, lectureID, sess); err != nil {
			return err
		}
	}

	fragment := domain.TranscriptFragment{
		LectureID:  lectureID,
		Text:       text,
		Importance: importance.Score(text, duration).Importance,
		Timestamp:  time.Now().UTC(),
	}

	s.mu.Lock()
	fragment.Index = sess.nextIndex
	sess.nextIndex++
	sess.pending = append(sess.pending, fragment)
	full := len(sess.pending) >= s.windowSize
	s.mu.Unlock()

	if err := s.store.UpsertFragment(ctx, &fragment); err != nil {
		return fmt.Errorf("store fragment %d: %w", fragment.Index, err)
	}

	if full {
		return s.synthesizeWindow(ctx, lectureID, sess)
	}
	return nil
}

// Finish flushes any buffered fragments, runs final synthesis over every
// structured note with fresh retrieval context, and closes the lecture.
func (s *Service) Finish(ctx context.Context, lectureID string) (*domain.FinalNote, error) {
	sess, err := s.session(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	if err := s.synthesizeWindow(ctx, lectureID, sess); err != nil {
		return nil, err
	}

	stored, err := s.store.StructuredNotesByLecture(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("load structured notes: %w", err)
	}
	notes := make([]string, len(stored))
	for i, n := range stored {
		notes[i] = n.Content
	}

	var ragContext []string
	if len(notes) > 0 {
		query := strings.Join(notes, "\n")
		if len(query) > finalQueryChars {
			query = query[:finalQueryChars]
		}
		ragContext = s.retrieveContext(ctx, lectureID, query)
	}

	var result synth.FinalResult
	if err := s.pool.Do(ctx, func() error {
		result = s.final.Synthesize(ctx, lectureID, notes, ragContext)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("final synthesis: %w", err)
	}

	final := &domain.FinalNote{
		LectureID: lectureID,
		Title:     result.Title,
		Markdown:  result.Markdown,
		Sections:  result.Sections,
		Glossary:  result.Glossary,
		Takeaways: result.Takeaways,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.UpsertFinalNote(ctx, final); err != nil {
		return nil, fmt.Errorf("store final note: %w", err)
	}
	if err := s.store.CompleteLecture(ctx, lectureID); err != nil {
		return nil, fmt.Errorf("complete lecture: %w", err)
	}

	s.mu.Lock()
	delete(s.sessions, lectureID)
	s.mu.Unlock()

	s.log.Info("lecture finished",
		"lecture_id", lectureID, "notes", len(notes), "degraded", result.Degraded)
	return final, nil
}

// Search exposes the lecture's retrieval corpus, for the TUI and CLI.
func (s *Service) Search(ctx context.Context, lectureID, query string, topK int) ([]domain.SearchResult, error) {
	return s.retriever.Retrieve(ctx, lectureID, query, topK)
}

// FinalNote returns the assembled document for a finished lecture.
func (s *Service) FinalNote(ctx context.Context, lectureID string) (*domain.FinalNote, error) {
	return s.store.FinalNote(ctx, lectureID)
}

// synthesizeWindow turns the buffered fragments into one structured note
// and clears the buffer. A degraded synthesis still produces a note; only
// store failures surface as errors.
func (s *Service) synthesizeWindow(ctx context.Context, lectureID string, sess *session) error {
	s.mu.Lock()
	window := sess.pending
	sess.pending = nil
	previousNotes := sess.previousNotes
	s.mu.Unlock()

	if len(window) == 0 {
		return nil
	}

	texts := make([]string, len(window))
	for i, f := range window {
		texts[i] = f.Text
	}
	ragContext := s.retrieveContext(ctx, lectureID, strings.Join(texts, " "))

	var result synth.IncrementalResult
	err := s.pool.Do(ctx, func() error {
		var synthErr error
		result, synthErr = s.incremental.Synthesize(ctx, window, ragContext, lectureID, previousNotes)
		return synthErr
	})
	if err != nil {
		return fmt.Errorf("incremental synthesis: %w", err)
	}
	if result.Degraded {
		s.log.Warn("incremental synthesis degraded",
			"lecture_id", lectureID, "reason", result.FallbackReason)
	}

	note := &domain.StructuredNote{
		ID:            uuid.NewString(),
		LectureID:     lectureID,
		Content:       result.Notes,
		FragmentCount: result.FragmentCount,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.AppendStructuredNote(ctx, note); err != nil {
		return fmt.Errorf("store structured note: %w", err)
	}

	s.mu.Lock()
	sess.previousNotes = result.Notes
	s.mu.Unlock()
	return nil
}

// retrieveContext is best-effort: a retrieval failure costs context, not
// the synthesis itself.
func (s *Service) retrieveContext(ctx context.Context, lectureID, query string) []string {
	results, err := s.retriever.Retrieve(ctx, lectureID, query, s.contextTopK)
	if err != nil {
		s.log.Warn("context retrieval failed, synthesizing without context",
			"lecture_id", lectureID, "error", err)
		return nil
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts
}

// session returns the in-memory state for a lecture, rebuilding it from
// the store when the process restarted mid-lecture.
func (s *Service) session(ctx context.Context, lectureID string) (*session, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[lectureID]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	lecture, err := s.store.GetLecture(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("load lecture: %w", err)
	}
	if lecture.Status == domain.LectureCompleted {
		return nil, fmt.Errorf("lecture %s already completed: %w", lectureID, domain.ErrUnavailable)
	}

	fragments, err := s.store.FragmentsByLecture(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("load fragments: %w", err)
	}
	notes, err := s.store.StructuredNotesByLecture(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("load structured notes: %w", err)
	}

	sess := &session{}
	if n := len(fragments); n > 0 {
		sess.nextIndex = fragments[n-1].Index + 1
	}
	if n := len(notes); n > 0 {
		sess.previousNotes = notes[n-1].Content
	}

	s.mu.Lock()
	if existing, ok := s.sessions[lectureID]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.sessions[lectureID] = sess
	s.mu.Unlock()
	return sess, nil
}

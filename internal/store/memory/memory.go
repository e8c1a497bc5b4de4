package memory

import (
	"context"
	"sync"
	"time"

	"eduscribe/internal/domain"
	"eduscribe/internal/store"
)

// Store keeps everything in process memory behind one mutex. It is the
// default backend for the CLI and for tests.
type Store struct {
	mu        sync.RWMutex
	lectures  map[string]*domain.Lecture
	documents map[string]*domain.Document
	// chunks are kept in insertion order per lecture; upserts replace in
	// place so the order chunks were first stored is preserved, which the
	// retriever's tie-break depends on.
	chunks    map[string][]domain.Chunk
	fragments map[string][]domain.TranscriptFragment
	notes     map[string][]domain.StructuredNote
	finals    map[string]*domain.FinalNote
}

func NewStore() *Store {
	return &Store{
		lectures:  make(map[string]*domain.Lecture),
		documents: make(map[string]*domain.Document),
		chunks:    make(map[string][]domain.Chunk),
		fragments: make(map[string][]domain.TranscriptFragment),
		notes:     make(map[string][]domain.StructuredNote),
		finals:    make(map[string]*domain.FinalNote),
	}
}

func (s *Store) CreateLecture(_ context.Context, lecture *domain.Lecture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *lecture
	s.lectures[lecture.ID] = &cp
	return nil
}

func (s *Store) GetLecture(_ context.Context, id string) (*domain.Lecture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lectures[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) CompleteLecture(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lectures[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	l.Status = domain.LectureCompleted
	l.CompletedAt = &now
	return nil
}

func (s *Store) CreateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

func (s *Store) MarkDocumentProcessed(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[documentID]
	if !ok {
		return store.ErrNotFound
	}
	d.Processed = true
	return nil
}

func (s *Store) UpsertChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range chunks {
		rows := s.chunks[ch.LectureID]
		replaced := false
		for i := range rows {
			if rows[i].DocumentID == ch.DocumentID && rows[i].Index == ch.Index {
				rows[i].Text = ch.Text
				rows[i].Embedding = ch.Embedding
				replaced = true
				break
			}
		}
		if !replaced {
			rows = append(rows, ch)
		}
		s.chunks[ch.LectureID] = rows
	}
	return nil
}

func (s *Store) ChunksByLecture(_ context.Context, lectureID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.chunks[lectureID]
	out := make([]domain.Chunk, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Store) DeleteDocumentChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for lectureID, rows := range s.chunks {
		kept := rows[:0]
		for _, ch := range rows {
			if ch.DocumentID != documentID {
				kept = append(kept, ch)
			}
		}
		s.chunks[lectureID] = kept
	}
	return nil
}

func (s *Store) UpsertFragment(_ context.Context, fragment *domain.TranscriptFragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.fragments[fragment.LectureID]
	for i := range rows {
		if rows[i].Index == fragment.Index {
			rows[i] = *fragment
			return nil
		}
	}
	s.fragments[fragment.LectureID] = append(rows, *fragment)
	return nil
}

func (s *Store) FragmentsByLecture(_ context.Context, lectureID string) ([]domain.TranscriptFragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.fragments[lectureID]
	out := make([]domain.TranscriptFragment, len(rows))
	copy(out, rows)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Index < out[j-1].Index; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (s *Store) AppendStructuredNote(_ context.Context, note *domain.StructuredNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[note.LectureID] = append(s.notes[note.LectureID], *note)
	return nil
}

func (s *Store) StructuredNotesByLecture(_ context.Context, lectureID string) ([]domain.StructuredNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.notes[lectureID]
	out := make([]domain.StructuredNote, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Store) UpsertFinalNote(_ context.Context, note *domain.FinalNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *note
	s.finals[note.LectureID] = &cp
	return nil
}

func (s *Store) FinalNote(_ context.Context, lectureID string) (*domain.FinalNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.finals[lectureID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

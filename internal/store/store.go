package store

import (
	"context"
	"errors"

	"eduscribe/internal/domain"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator for the pipeline. Keys are opaque
// identifiers; the pipeline never relies on their representation.
//
// Idempotence contracts:
//   - UpsertChunks is keyed by (document, index): re-processing a document
//     never duplicates chunk rows.
//   - UpsertFragment is keyed by (lecture, index): re-submission with the
//     same index overwrites text and importance, last write wins.
//   - UpsertFinalNote keeps at most one final note per lecture, replacing
//     any prior one atomically.
//
// Listing methods return entities in insertion order (chunks) or index
// order (fragments); structured notes in append order.
type Store interface {
	CreateLecture(ctx context.Context, lecture *domain.Lecture) error
	GetLecture(ctx context.Context, id string) (*domain.Lecture, error)
	CompleteLecture(ctx context.Context, id string) error

	CreateDocument(ctx context.Context, doc *domain.Document) error
	MarkDocumentProcessed(ctx context.Context, documentID string) error

	UpsertChunks(ctx context.Context, chunks []domain.Chunk) error
	ChunksByLecture(ctx context.Context, lectureID string) ([]domain.Chunk, error)
	DeleteDocumentChunks(ctx context.Context, documentID string) error

	UpsertFragment(ctx context.Context, fragment *domain.TranscriptFragment) error
	FragmentsByLecture(ctx context.Context, lectureID string) ([]domain.TranscriptFragment, error)

	AppendStructuredNote(ctx context.Context, note *domain.StructuredNote) error
	StructuredNotesByLecture(ctx context.Context, lectureID string) ([]domain.StructuredNote, error)

	UpsertFinalNote(ctx context.Context, note *domain.FinalNote) error
	FinalNote(ctx context.Context, lectureID string) (*domain.FinalNote, error)
}

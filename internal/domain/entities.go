package domain

import "time"

// LectureStatus tracks the lifecycle of a lecture session.
// Transitions are monotonic: in_progress -> completed.
type LectureStatus string

const (
	LectureInProgress LectureStatus = "in_progress"
	LectureCompleted  LectureStatus = "completed"
)

// Lecture is the aggregate root. Every other entity is owned by a lecture.
type Lecture struct {
	ID          string
	Title       string
	Status      LectureStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Document is an uploaded supporting file with its extracted text.
// Processed is set once its chunks are embedded and stored.
type Document struct {
	ID        string
	LectureID string
	Filename  string
	Content   string
	Processed bool
	CreatedAt time.Time
}

// Chunk is a word-bounded slice of a document's text, the unit of
// embedding and retrieval. Indices are contiguous from 0 per document.
type Chunk struct {
	ID         string
	LectureID  string
	DocumentID string
	Index      int
	Text       string
	Embedding  []float32
}

// TranscriptFragment is one piece of raw spoken transcript. At most one
// fragment exists per (lecture, index); re-submission overwrites.
type TranscriptFragment struct {
	LectureID  string
	Index      int
	Text       string
	Enhanced   string
	Importance float64
	Timestamp  time.Time
}

// StructuredNote is one incremental synthesis output covering a rolling
// window of transcript fragments. Notes are append-only.
type StructuredNote struct {
	ID            string
	LectureID     string
	Content       string
	FragmentCount int
	CreatedAt     time.Time
}

// Section is one titled block of the final document.
type Section struct {
	Title    string
	Content  string
	Formulas []string
}

// FinalNote is the single lecture-level document assembled from all
// structured notes. At most one exists per lecture; regeneration replaces it.
type FinalNote struct {
	LectureID string
	Title     string
	Markdown  string
	Sections  []Section
	Glossary  map[string]string
	Takeaways []string
	CreatedAt time.Time
}

// SearchResult is a matching chunk with its relevance score.
type SearchResult struct {
	Text       string
	DocumentID string
	Score      float64
}

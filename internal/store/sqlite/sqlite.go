package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"eduscribe/internal/domain"
	"eduscribe/internal/store"
)

// Store persists the lecture aggregate in a SQLite database through GORM.
// Unique indexes back the idempotence contracts of store.Store.
type Store struct {
	db *gorm.DB
}

type lectureRow struct {
	ID          string `gorm:"primaryKey"`
	Title       string
	Status      string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

type documentRow struct {
	ID        string `gorm:"primaryKey"`
	LectureID string `gorm:"index"`
	Filename  string
	Content   string
	Processed bool
	CreatedAt time.Time
}

type chunkRow struct {
	// Seq is the insertion-order key. Upserts keep the original Seq so
	// search tie-breaks stay stable across re-processing.
	Seq        uint   `gorm:"primaryKey;autoIncrement"`
	ID         string `gorm:"index"`
	LectureID  string `gorm:"index"`
	DocumentID string `gorm:"uniqueIndex:idx_doc_chunk"`
	ChunkIndex int    `gorm:"uniqueIndex:idx_doc_chunk"`
	Text       string
	Embedding  string // JSON-encoded []float32
}

type fragmentRow struct {
	LectureID  string `gorm:"primaryKey"`
	FragIndex  int    `gorm:"primaryKey"`
	Text       string
	Enhanced   string
	Importance float64
	Timestamp  time.Time
}

type structuredNoteRow struct {
	Seq           uint   `gorm:"primaryKey;autoIncrement"`
	ID            string `gorm:"index"`
	LectureID     string `gorm:"index"`
	Content       string
	FragmentCount int
	CreatedAt     time.Time
}

type finalNoteRow struct {
	LectureID string `gorm:"primaryKey"`
	Title     string
	Markdown  string
	Sections  string // JSON-encoded []domain.Section
	Glossary  string // JSON-encoded map[string]string
	Takeaways string // JSON-encoded []string
	CreatedAt time.Time
}

func (lectureRow) TableName() string        { return "lectures" }
func (documentRow) TableName() string       { return "documents" }
func (chunkRow) TableName() string          { return "chunks" }
func (fragmentRow) TableName() string       { return "transcript_fragments" }
func (structuredNoteRow) TableName() string { return "structured_notes" }
func (finalNoteRow) TableName() string      { return "final_notes" }

func NewStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(
		&lectureRow{}, &documentRow{}, &chunkRow{},
		&fragmentRow{}, &structuredNoteRow{}, &finalNoteRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateLecture(ctx context.Context, lecture *domain.Lecture) error {
	row := lectureRow{
		ID:          lecture.ID,
		Title:       lecture.Title,
		Status:      string(lecture.Status),
		CreatedAt:   lecture.CreatedAt,
		CompletedAt: lecture.CompletedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) GetLecture(ctx context.Context, id string) (*domain.Lecture, error) {
	var row lectureRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Lecture{
		ID:          row.ID,
		Title:       row.Title,
		Status:      domain.LectureStatus(row.Status),
		CreatedAt:   row.CreatedAt,
		CompletedAt: row.CompletedAt,
	}, nil
}

func (s *Store) CompleteLecture(ctx context.Context, id string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&lectureRow{}).Where("id = ?", id).
		Updates(map[string]any{"status": string(domain.LectureCompleted), "completed_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) error {
	row := documentRow{
		ID:        doc.ID,
		LectureID: doc.LectureID,
		Filename:  doc.Filename,
		Content:   doc.Content,
		Processed: doc.Processed,
		CreatedAt: doc.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) MarkDocumentProcessed(ctx context.Context, documentID string) error {
	res := s.db.WithContext(ctx).Model(&documentRow{}).Where("id = ?", documentID).
		Update("processed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]chunkRow, 0, len(chunks))
	for _, ch := range chunks {
		emb, err := json.Marshal(ch.Embedding)
		if err != nil {
			return err
		}
		rows = append(rows, chunkRow{
			ID:         ch.ID,
			LectureID:  ch.LectureID,
			DocumentID: ch.DocumentID,
			ChunkIndex: ch.Index,
			Text:       ch.Text,
			Embedding:  string(emb),
		})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}, {Name: "chunk_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "embedding"}),
	}).Create(&rows).Error
}

func (s *Store) ChunksByLecture(ctx context.Context, lectureID string) ([]domain.Chunk, error) {
	var rows []chunkRow
	if err := s.db.WithContext(ctx).Where("lecture_id = ?", lectureID).
		Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Chunk, 0, len(rows))
	for _, r := range rows {
		var emb []float32
		if r.Embedding != "" {
			if err := json.Unmarshal([]byte(r.Embedding), &emb); err != nil {
				return nil, err
			}
		}
		out = append(out, domain.Chunk{
			ID:         r.ID,
			LectureID:  r.LectureID,
			DocumentID: r.DocumentID,
			Index:      r.ChunkIndex,
			Text:       r.Text,
			Embedding:  emb,
		})
	}
	return out, nil
}

func (s *Store) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	return s.db.WithContext(ctx).Where("document_id = ?", documentID).
		Delete(&chunkRow{}).Error
}

func (s *Store) UpsertFragment(ctx context.Context, fragment *domain.TranscriptFragment) error {
	row := fragmentRow{
		LectureID:  fragment.LectureID,
		FragIndex:  fragment.Index,
		Text:       fragment.Text,
		Enhanced:   fragment.Enhanced,
		Importance: fragment.Importance,
		Timestamp:  fragment.Timestamp,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lecture_id"}, {Name: "frag_index"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Store) FragmentsByLecture(ctx context.Context, lectureID string) ([]domain.TranscriptFragment, error) {
	var rows []fragmentRow
	if err := s.db.WithContext(ctx).Where("lecture_id = ?", lectureID).
		Order("frag_index").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.TranscriptFragment, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.TranscriptFragment{
			LectureID:  r.LectureID,
			Index:      r.FragIndex,
			Text:       r.Text,
			Enhanced:   r.Enhanced,
			Importance: r.Importance,
			Timestamp:  r.Timestamp,
		})
	}
	return out, nil
}

func (s *Store) AppendStructuredNote(ctx context.Context, note *domain.StructuredNote) error {
	row := structuredNoteRow{
		ID:            note.ID,
		LectureID:     note.LectureID,
		Content:       note.Content,
		FragmentCount: note.FragmentCount,
		CreatedAt:     note.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) StructuredNotesByLecture(ctx context.Context, lectureID string) ([]domain.StructuredNote, error) {
	var rows []structuredNoteRow
	if err := s.db.WithContext(ctx).Where("lecture_id = ?", lectureID).
		Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.StructuredNote, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.StructuredNote{
			ID:            r.ID,
			LectureID:     r.LectureID,
			Content:       r.Content,
			FragmentCount: r.FragmentCount,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) UpsertFinalNote(ctx context.Context, note *domain.FinalNote) error {
	sections, err := json.Marshal(note.Sections)
	if err != nil {
		return err
	}
	glossary, err := json.Marshal(note.Glossary)
	if err != nil {
		return err
	}
	takeaways, err := json.Marshal(note.Takeaways)
	if err != nil {
		return err
	}
	row := finalNoteRow{
		LectureID: note.LectureID,
		Title:     note.Title,
		Markdown:  note.Markdown,
		Sections:  string(sections),
		Glossary:  string(glossary),
		Takeaways: string(takeaways),
		CreatedAt: note.CreatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lecture_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Store) FinalNote(ctx context.Context, lectureID string) (*domain.FinalNote, error) {
	var row finalNoteRow
	err := s.db.WithContext(ctx).First(&row, "lecture_id = ?", lectureID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	note := &domain.FinalNote{
		LectureID: row.LectureID,
		Title:     row.Title,
		Markdown:  row.Markdown,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Sections), &note.Sections); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(row.Glossary), &note.Glossary); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(row.Takeaways), &note.Takeaways); err != nil {
		return nil, err
	}
	return note, nil
}

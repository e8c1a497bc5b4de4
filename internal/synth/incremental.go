package synth

import (
	"context"
	"fmt"
	"strings"

	"eduscribe/internal/domain"
	"eduscribe/internal/logger"
)

const (
	incrementalTemperature = 0.3
	incrementalMaxTokens   = 1500
	maxContextPassages     = 5
	fallbackSentenceLimit  = 10

	firstNotesSentinel = "This is the first set of notes for this lecture."
)

const incrementalSystemPrompt = `You are an expert educational note-taker. The transcript you receive is full of speech-recognition errors: wrong words, broken grammar, nonsense phrases.

Your task:
1. Understand what the speaker actually meant; do not copy transcription errors, fix them.
2. Use the provided document context to recover correct terminology and concepts.
3. Write clear, accurate, educational notes in complete sentences.

Output format:
- Use ## for main topics and ### for subtopics
- Use bullet points for key information
- Use **bold** for important technical terms`

// IncrementalResult is the outcome of one incremental synthesis call.
// Degraded marks that the deterministic fallback produced the notes.
type IncrementalResult struct {
	Success        bool
	Notes          string
	FragmentCount  int
	LectureID      string
	Degraded       bool
	FallbackReason string
}

// Incremental turns a window of raw transcript fragments plus retrieved
// context into one structured-notes markdown document.
type Incremental struct {
	model domain.CompletionModel // nil means the capability is not configured
	log   *logger.Logger
}

func NewIncremental(model domain.CompletionModel, log *logger.Logger) *Incremental {
	return &Incremental{model: model, log: log.With("component", "incremental_synth")}
}

// Synthesize concatenates the fragment texts in order and produces one
// structured note. A blank transcript is terminal for the call; any model
// failure degrades to the extractive fallback instead of erroring.
func (s *Incremental) Synthesize(ctx context.Context, fragments []domain.TranscriptFragment, ragContext []string, lectureID string, previousNotes string) (IncrementalResult, error) {
	texts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		texts = append(texts, f.Text)
	}
	transcript := strings.Join(texts, "\n")
	if strings.TrimSpace(transcript) == "" {
		return IncrementalResult{Success: false, LectureID: lectureID},
			fmt.Errorf("synthesize transcript window: %w", domain.ErrEmptyInput)
	}

	result := IncrementalResult{
		Success:       true,
		FragmentCount: len(fragments),
		LectureID:     lectureID,
	}

	if s.model == nil {
		result.Notes = extractiveFallback(transcript)
		result.Degraded = true
		result.FallbackReason = "model not configured"
		return result, nil
	}

	notes, err := s.model.Complete(ctx,
		incrementalSystemPrompt,
		s.userPrompt(transcript, ragContext, previousNotes),
		incrementalTemperature, incrementalMaxTokens)
	if err != nil {
		s.log.Warn("model synthesis failed, using extractive fallback",
			"lecture_id", lectureID, "error", err)
		result.Notes = extractiveFallback(transcript)
		result.Degraded = true
		result.FallbackReason = err.Error()
		return result, nil
	}

	result.Notes = notes
	return result, nil
}

func (s *Incremental) userPrompt(transcript string, ragContext []string, previousNotes string) string {
	contextText := "No additional context available."
	if len(ragContext) > 0 {
		if len(ragContext) > maxContextPassages {
			ragContext = ragContext[:maxContextPassages]
		}
		contextText = strings.Join(ragContext, "\n\n")
	}
	previousText := previousNotes
	if previousText == "" {
		previousText = firstNotesSentinel
	}
	var b strings.Builder
	b.WriteString("The transcript below contains recognition errors. Understand what was meant and write accurate notes.\n\n")
	fmt.Fprintf(&b, "MESSY TRANSCRIPT (fix all errors):\n\"\"\"\n%s\n\"\"\"\n\n", transcript)
	fmt.Fprintf(&b, "COURSE DOCUMENTS (use for correct concepts):\n\"\"\"\n%s\n\"\"\"\n\n", contextText)
	fmt.Fprintf(&b, "PREVIOUS NOTES (context only, do not repeat):\n\"\"\"\n%s\n\"\"\"\n\n", previousText)
	b.WriteString("Now create accurate, educational notes:")
	return b.String()
}

// extractiveFallback never fails and calls no external service: the first
// ten non-empty sentences become bullets under a fixed header.
func extractiveFallback(transcript string) string {
	var b strings.Builder
	b.WriteString("## Lecture Notes\n\n### Key Points\n\n")
	count := 0
	for _, sentence := range strings.Split(transcript, ".") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(sentence)
		b.WriteString("\n")
		count++
		if count == fallbackSentenceLimit {
			break
		}
	}
	return b.String()
}

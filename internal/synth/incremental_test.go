package synth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduscribe/internal/domain"
	"eduscribe/internal/logger"
)

// fakeModel fulfills domain.CompletionModel with a programmable reply.
type fakeModel struct {
	fn func(system, user string) (string, error)
}

func (m *fakeModel) Complete(_ context.Context, system, user string, _ float32, _ int) (string, error) {
	return m.fn(system, user)
}

func fragments(texts ...string) []domain.TranscriptFragment {
	out := make([]domain.TranscriptFragment, len(texts))
	for i, t := range texts {
		out[i] = domain.TranscriptFragment{LectureID: "lec", Index: i, Text: t}
	}
	return out
}

func TestIncrementalBlankInput(t *testing.T) {
	s := NewIncremental(nil, logger.NewNop())
	result, err := s.Synthesize(context.Background(), fragments("", "  \t", "\n"), nil, "lec", "")
	require.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.False(t, result.Success)
	assert.Empty(t, result.Notes)
}

func TestIncrementalFallbackWithoutModel(t *testing.T) {
	sentences := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		sentences = append(sentences, "sentence number "+strings.Repeat("x", i+1))
	}
	transcript := strings.Join(sentences, ". ") + "."

	s := NewIncremental(nil, logger.NewNop())
	result, err := s.Synthesize(context.Background(), fragments(transcript), nil, "lec", "")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Degraded)
	assert.Equal(t, 1, result.FragmentCount)
	assert.Contains(t, result.Notes, "### Key Points")

	var bullets []string
	for _, line := range strings.Split(result.Notes, "\n") {
		if strings.HasPrefix(line, "- ") {
			bullets = append(bullets, line)
		}
	}
	require.Len(t, bullets, 10)
	for _, b := range bullets {
		body := strings.TrimPrefix(b, "- ")
		assert.NotEmpty(t, body)
		assert.Equal(t, strings.TrimSpace(body), body)
	}
}

func TestIncrementalFallbackOnModelError(t *testing.T) {
	model := &fakeModel{fn: func(string, string) (string, error) {
		return "", assert.AnError
	}}
	s := NewIncremental(model, logger.NewNop())
	result, err := s.Synthesize(context.Background(), fragments("machine learning is good."), nil, "lec", "")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Degraded)
	assert.NotEmpty(t, result.FallbackReason)
	assert.Contains(t, result.Notes, "- machine learning is good")
}

func TestIncrementalUsesModelOutput(t *testing.T) {
	var capturedUser string
	model := &fakeModel{fn: func(_, user string) (string, error) {
		capturedUser = user
		return "## Machine Learning\n\n- corrected notes", nil
	}}
	s := NewIncremental(model, logger.NewNop())

	ragContext := []string{"ctx1", "ctx2", "ctx3", "ctx4", "ctx5", "ctx6"}
	result, err := s.Synthesize(context.Background(),
		fragments("machines are devolving by a living need to be programmed."),
		ragContext, "lec", "")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Degraded)
	assert.Equal(t, "## Machine Learning\n\n- corrected notes", result.Notes)
	assert.Equal(t, "lec", result.LectureID)

	// first window carries the sentinel, and context is capped at 5 passages
	assert.Contains(t, capturedUser, firstNotesSentinel)
	assert.Contains(t, capturedUser, "ctx5")
	assert.NotContains(t, capturedUser, "ctx6")
}

func TestIncrementalThreadsPreviousNotes(t *testing.T) {
	var capturedUser string
	model := &fakeModel{fn: func(_, user string) (string, error) {
		capturedUser = user
		return "- more notes", nil
	}}
	s := NewIncremental(model, logger.NewNop())

	_, err := s.Synthesize(context.Background(), fragments("more content."), nil, "lec",
		"## Earlier\n\n- earlier point")
	require.NoError(t, err)
	assert.Contains(t, capturedUser, "- earlier point")
	assert.NotContains(t, capturedUser, firstNotesSentinel)
}

package importance

import (
	"math"
	"regexp"
	"strings"
)

// Keywords that mark a fragment as likely exam-relevant. Tuneable.
var keywords = map[string]struct{}{
	"important": {}, "definition": {}, "remember": {}, "note": {}, "exam": {},
	"formula": {}, "must": {}, "key": {}, "significant": {}, "critical": {},
	"essential": {}, "concept": {}, "principle": {}, "theory": {},
	"algorithm": {}, "method": {}, "approach": {}, "technique": {},
	"strategy": {}, "solution": {},
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]`)

// Result carries the weighted importance and its component scores.
type Result struct {
	Importance    float64
	KeywordScore  float64
	RateScore     float64
	LengthScore   float64
	SentenceScore float64
	WordCount     int
}

// Score rates a transcript fragment in [0,1]. Duration is in seconds; when
// unknown (<=0) it is estimated from the word count at 150 words/minute.
func Score(text string, duration float64) Result {
	words := tokenize(text)
	if len(words) == 0 {
		return Result{}
	}
	if duration <= 0 {
		duration = math.Max(0.001, float64(len(words))/2.5)
	}

	hits := 0
	for _, w := range words {
		if _, ok := keywords[w]; ok {
			hits++
		}
	}
	keywordScore := math.Min(1.0, float64(hits)/2.0)

	// logistic around the comfortable 2-3 words/second speaking rate
	wps := float64(len(words)) / duration
	rateScore := 1 / (1 + math.Exp(-(wps - 2)))

	lengthScore := math.Min(1.0, float64(len(words))/20.0)

	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 && strings.TrimSpace(text) != "" {
		sentences = []string{text}
	}
	sentenceScore := math.Min(1.0, float64(len(sentences))/3.0)

	importance := 0.3*keywordScore + 0.2*rateScore + 0.2*lengthScore + 0.3*sentenceScore
	importance = math.Max(0.0, math.Min(1.0, importance))

	return Result{
		Importance:    importance,
		KeywordScore:  keywordScore,
		RateScore:     rateScore,
		LengthScore:   lengthScore,
		SentenceScore: sentenceScore,
		WordCount:     len(words),
	}
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

package synth

import "strings"

// transitionPhrases are spoken cues that a lecturer is changing subject.
var transitionPhrases = []string{
	"now let's move on",
	"next topic",
	"moving on to",
	"let's discuss",
	"now we'll talk about",
	"switching to",
	"another important topic",
}

// TopicShiftDetector flags when incremental synthesis should be triggered
// before the window fills. It is purely a heuristic: false negatives are
// fine, false positives only cost one extra synthesis cycle.
type TopicShiftDetector struct {
	phrases []string
}

func NewTopicShiftDetector() *TopicShiftDetector {
	return &TopicShiftDetector{phrases: transitionPhrases}
}

// Detect reports whether the current fragment sounds like a transition.
// Always false when there is nothing before it to transition from.
func (d *TopicShiftDetector) Detect(current string, previous []string) bool {
	if len(previous) == 0 {
		return false
	}
	lower := strings.ToLower(current)
	for _, p := range d.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

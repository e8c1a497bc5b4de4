package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectRequiresHistory(t *testing.T) {
	d := NewTopicShiftDetector()
	assert.False(t, d.Detect("now let's move on to neural networks", nil))
	assert.False(t, d.Detect("now let's move on to neural networks", []string{}))
}

func TestDetectTransitionPhrases(t *testing.T) {
	d := NewTopicShiftDetector()
	previous := []string{"we covered gradient descent"}

	tests := []struct {
		text string
		want bool
	}{
		{"Now Let's Move On to backpropagation", true},
		{"okay so NEXT TOPIC is regularization", true},
		{"switching to a different optimizer here", true},
		{"gradient descent takes small steps downhill", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.Detect(tt.text, previous), "text=%q", tt.text)
	}
}

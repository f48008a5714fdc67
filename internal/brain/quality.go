package brain

import (
	"strings"

	"ciphercore.app/convo/internal/model"
)

var (
	poorMarkers = []string{"repeating myself", "wiederhole mich"}
	goodMarkers = []string{"new perspective", "neue perspektive"}
)

// ClassifyQuality is a keyword heuristic: a "repeating myself" marker wins over
// a "new perspective" marker, anything else is neutral.
func ClassifyQuality(text string) model.QualityLabel {
	lower := strings.ToLower(text)
	if containsAny(lower, poorMarkers) {
		return model.QualityPoor
	}
	if containsAny(lower, goodMarkers) {
		return model.QualityGood
	}
	return model.QualityNeutral
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

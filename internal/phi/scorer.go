package phi

import "unicode"

// maxConfidence caps every score below certainty: regex detection always
// carries residual false-positive and false-negative risk, so the engine
// must never report 1.0.
const maxConfidence = 0.99

// Score turns a raw rule match into a calibrated confidence. Starting from
// the pattern's base confidence it applies shape heuristics: longer matches
// and mixed alphanumeric content are more likely genuine identifiers than
// coincidental runs. Pure and reproducible, which audit replay depends on.
func Score(baseConfidence float64, matchedText string) float64 {
	confidence := baseConfidence

	if len(matchedText) > 5 {
		confidence += 0.05
	}
	if len(matchedText) > 10 {
		confidence += 0.05
	}

	hasDigit := false
	hasLetter := false
	for _, r := range matchedText {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
		if hasDigit && hasLetter {
			break
		}
	}
	if hasDigit && hasLetter {
		confidence += 0.05
	}

	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	return confidence
}

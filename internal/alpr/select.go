package alpr

import "parking-anpr-service/internal/domain/anpr"

// SelectBest returns the highest-confidence candidate. Among equal maxima the
// earliest one in input order wins. An empty set yields a result with no plate
// and zero confidence.
func SelectBest(cands []anpr.Candidate) anpr.RecognitionResult {
	if len(cands) == 0 {
		return anpr.RecognitionResult{}
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	plate := best.Plate
	return anpr.RecognitionResult{
		BestPlate:  &plate,
		Confidence: best.Confidence,
	}
}

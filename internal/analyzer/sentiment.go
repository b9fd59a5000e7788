package analyzer

import "strings"

// sentimentLexicon maps lowercase tokens to a polarity in [-1, 1]. The list
// covers the vocabulary common in news copy; anything unmatched is neutral.
var sentimentLexicon = map[string]float64{
	"breakthrough": 0.8,
	"success":      0.7,
	"successful":   0.7,
	"win":          0.6,
	"wins":         0.6,
	"growth":       0.5,
	"improve":      0.5,
	"improved":     0.5,
	"record":       0.4,
	"strong":       0.4,
	"innovative":   0.6,
	"celebrate":    0.7,
	"hope":         0.4,
	"progress":     0.5,
	"recovery":     0.5,
	"boost":        0.5,
	"gain":         0.4,
	"gains":        0.4,
	"thriving":     0.7,
	"award":        0.5,
	"praised":      0.6,
	"promising":    0.5,
	"safe":         0.3,
	"benefit":      0.4,
	"benefits":     0.4,

	"crisis":       -0.8,
	"disaster":     -0.9,
	"death":        -0.8,
	"deaths":       -0.8,
	"killed":       -0.9,
	"war":          -0.7,
	"attack":       -0.7,
	"collapse":     -0.7,
	"fail":         -0.6,
	"failed":       -0.6,
	"failure":      -0.6,
	"loss":         -0.5,
	"losses":       -0.5,
	"decline":      -0.4,
	"threat":       -0.6,
	"fear":         -0.5,
	"fraud":        -0.7,
	"scandal":      -0.6,
	"warning":      -0.4,
	"outbreak":     -0.6,
	"shortage":     -0.5,
	"layoffs":      -0.6,
	"recession":    -0.7,
	"controversy":  -0.4,
	"catastrophic": -0.9,
}

// subjectivityMarkers are opinionated or emotive words that push a text away
// from plain reportage.
var subjectivityMarkers = map[string]struct{}{
	"believe": {}, "think": {}, "feel": {}, "felt": {}, "amazing": {},
	"terrible": {}, "incredible": {}, "shocking": {}, "stunning": {},
	"remarkable": {}, "horrific": {}, "wonderful": {}, "awful": {},
	"unprecedented": {}, "extraordinary": {}, "devastating": {},
	"surprising": {}, "alarming": {}, "outrageous": {}, "brilliant": {},
}

// scoreSentiment runs the lexicon over the text and returns polarity in
// [-1, 1] and subjectivity in [0, 1]. Both are zero for text with no matches.
func scoreSentiment(text string) (polarity, subjectivity float64) {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return 0, 0
	}

	matched := 0
	subjective := 0
	total := 0.0
	for _, token := range tokens {
		token = strings.Trim(token, ".,!?;:'\"()[]")
		if score, ok := sentimentLexicon[token]; ok {
			total += score
			matched++
		}
		if _, ok := subjectivityMarkers[token]; ok {
			subjective++
		}
	}

	if matched > 0 {
		polarity = total / float64(matched)
	}
	// Scale marker density so a handful of emotive words in a normal-length
	// article registers without saturating.
	subjectivity = clampUnit(float64(matched+subjective*2) * 10.0 / float64(len(tokens)))
	return polarity, subjectivity
}

func sentimentLabel(polarity float64) string {
	switch {
	case polarity > 0.1:
		return "positive"
	case polarity < -0.1:
		return "negative"
	default:
		return "neutral"
	}
}

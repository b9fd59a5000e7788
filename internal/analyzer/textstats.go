package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var markupPattern = regexp.MustCompile(`<\s*/?\s*[a-zA-Z][^>]*>`)

// normalizeText strips markup, normalizes Unicode to NFC, and collapses
// whitespace so the deterministic statistics are stable across feed sources.
func normalizeText(raw string) string {
	text := raw
	if markupPattern.MatchString(text) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = doc.Text()
		}
	}
	text = norm.NFC.String(text)
	return strings.Join(strings.Fields(text), " ")
}

// fingerprint derives a stable content hash used for dedup across
// resubmissions of the same article.
func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

type textStats struct {
	Length              int
	Words               int
	Sentences           int
	AvgWordsPerSentence float64
	Readability         float64
}

func computeTextStats(text string) textStats {
	stats := textStats{Length: utf8.RuneCountInString(text)}
	words := strings.Fields(text)
	stats.Words = len(words)
	stats.Sentences = countSentences(text)
	if stats.Sentences > 0 {
		stats.AvgWordsPerSentence = float64(stats.Words) / float64(stats.Sentences)
	} else {
		stats.AvgWordsPerSentence = float64(stats.Words)
	}
	stats.Readability = readabilityScore(stats.AvgWordsPerSentence)
	return stats
}

func countSentences(text string) int {
	count := 0
	inTerminator := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inTerminator {
				count++
			}
			inTerminator = true
		default:
			inTerminator = false
		}
	}
	if count == 0 && strings.TrimSpace(text) != "" {
		count = 1
	}
	return count
}

// readabilityScore buckets average sentence length: short sentences read
// easily, long ones do not.
func readabilityScore(avgWordsPerSentence float64) float64 {
	switch {
	case avgWordsPerSentence <= 15:
		return 0.9
	case avgWordsPerSentence <= 20:
		return 0.7
	case avgWordsPerSentence <= 25:
		return 0.5
	default:
		return 0.3
	}
}

func clampUnit(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func mean(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

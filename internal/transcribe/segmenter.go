package transcribe

import (
	"strings"
	"unicode"

	"github.com/codelens/codelens/internal/models"
)

// Classifier assigns a content type to a span of transcript text. It is
// pluggable so keyword heuristics can be swapped out once the engine
// supplies real per-segment classification.
type Classifier interface {
	Classify(text string) models.ContentType
}

// KeywordClassifier classifies by surface features: structural symbols or
// language keywords mean code, discourse markers mean explanation.
type KeywordClassifier struct {
	keywords map[string]struct{}
	symbols  []string
	markers  []string
}

func NewKeywordClassifier() *KeywordClassifier {
	keywords := []string{
		"function", "class", "const", "var", "if", "else", "for", "while",
		"return", "returns", "import", "from", "def", "print", "public",
		"private", "static", "void", "struct", "interface", "async", "await",
		"lambda", "array", "string", "boolean", "null", "nil",
	}
	kw := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		kw[k] = struct{}{}
	}
	return &KeywordClassifier{
		keywords: kw,
		symbols: []string{
			"{", "}", "[", "]", "();", "==", "!=", "+=", "-=", "=>", "->", "::",
		},
		markers: []string{
			"let me explain", "what this does", "this means", "in other words",
			"basically", "essentially", "the idea is", "to summarize",
			"as you can see", "so what we", "explain",
		},
	}
}

func (c *KeywordClassifier) Classify(text string) models.ContentType {
	lower := strings.ToLower(text)

	for _, sym := range c.symbols {
		if strings.Contains(lower, sym) {
			return models.ContentCode
		}
	}
	for _, m := range c.markers {
		if strings.Contains(lower, m) {
			return models.ContentExplanation
		}
	}
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		if _, ok := c.keywords[word]; ok {
			return models.ContentCode
		}
	}
	return models.ContentOther
}

// secondsPerWord assumes a 150 words-per-minute speaking rate.
const secondsPerWord = 60.0 / 150.0

// SegmentText splits continuous transcript text into sentence segments
// with approximate timing: each sentence gets a duration proportional to
// its word count at a fixed assumed speaking rate. Segments are contiguous,
// so one segment's end is exactly the next segment's start.
func SegmentText(text string, classifier Classifier) []models.TranscriptSegment {
	sentences := splitSentences(text)
	segments := make([]models.TranscriptSegment, 0, len(sentences))

	cursor := 0.0
	for _, sentence := range sentences {
		words := len(strings.Fields(sentence))
		if words == 0 {
			continue
		}
		duration := float64(words) * secondsPerWord
		segments = append(segments, models.TranscriptSegment{
			Start:       cursor,
			End:         cursor + duration,
			Text:        sentence,
			ContentType: classifier.Classify(sentence),
		})
		cursor += duration
	}
	return segments
}

// splitSentences breaks text on sentence-terminal punctuation, keeping
// the punctuation with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

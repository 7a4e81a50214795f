// Package text segments a normalized utterance into the ordered token
// sequence consumed by vocabulary lookup. Tokens are single ASCII
// characters, romanized tonal syllables for Chinese runs, or raw
// characters for everything else. Segmentation must match the model's
// training-time tokenizer exactly.
package text

import (
	"strings"
	"unicode/utf8"
)

// cjkPunctuation marks pass through literally: no tonal conversion and
// no inserted spacing.
const cjkPunctuation = "。，、；：？！《》【】—…"

// Transliterator converts a run of CJK characters into romanized tonal
// syllables, one syllable per input rune, with the tone marked by a
// trailing digit ("ni3"). Runes the engine cannot romanize pass through
// unchanged. Passing a whole run (rather than one rune at a time) gives
// the engine the context it needs for tone sandhi.
type Transliterator interface {
	Convert(run string) []string
}

// Segmenter splits text into typed script runs and emits tokens.
type Segmenter struct {
	translit  Transliterator
	polyphone bool
}

// NewSegmenter returns a Segmenter with polyphone (run-level Chinese
// transliteration) enabled.
func NewSegmenter(tr Transliterator) *Segmenter {
	return &Segmenter{translit: tr, polyphone: true}
}

// SetPolyphone toggles run-level Chinese transliteration. With
// polyphone off, three-byte runs take the per-rune fallback path.
func (s *Segmenter) SetPolyphone(on bool) {
	s.polyphone = on
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
	";", ",",
)

// NormalizeQuotes maps curly quotes to their ASCII equivalents and
// semicolons to commas.
func NormalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

type runKind int

const (
	runASCII runKind = iota // every rune encodes to 1 byte
	runCJK                  // every rune encodes to 3 bytes (BMP CJK approximation)
	runOther                // mixed widths: per-rune fallback
)

type textRun struct {
	kind    runKind
	content string
}

// Tokenize converts input text into the ordered token sequence.
// Quote characters are normalized first. No rune is ever dropped:
// characters outside every classified range still flow through the
// transliteration fallback one at a time.
func (s *Segmenter) Tokenize(input string) []string {
	input = NormalizeQuotes(input)

	var tokens []string
	for _, run := range splitRuns(input) {
		switch {
		case run.kind == runASCII:
			tokens = s.appendASCIIRun(tokens, run.content)
		case run.kind == runCJK && s.polyphone:
			tokens = s.appendChineseRun(tokens, run.content)
		default:
			tokens = s.appendFallbackRun(tokens, run.content)
		}
	}

	return tokens
}

// appendASCIIRun emits one token per character. A multi-character run
// gets a single separating space first, unless the run starts the
// utterance or follows a space/quote/colon token.
func (s *Segmenter) appendASCIIRun(tokens []string, run string) []string {
	if len(tokens) > 0 && len(run) > 1 && !isSeparatorToken(tokens[len(tokens)-1]) {
		tokens = append(tokens, " ")
	}

	for _, r := range run {
		tokens = append(tokens, string(r))
	}

	return tokens
}

// appendChineseRun transliterates the whole run (preserving sandhi
// context) and emits one syllable token per character. Each syllable is
// preceded by a space unless it is a CJK punctuation mark or the
// previous token is Japanese.
func (s *Segmenter) appendChineseRun(tokens []string, run string) []string {
	for _, syl := range s.translit.Convert(run) {
		if isCJKPunct(syl) {
			tokens = append(tokens, syl)
			continue
		}

		if len(tokens) == 0 || !isJapaneseToken(tokens[len(tokens)-1]) {
			tokens = append(tokens, " ")
		}

		tokens = append(tokens, syl)
	}

	return tokens
}

// appendFallbackRun re-applies the script tests one rune at a time.
// Latin-1 and Japanese characters pass through literally; everything
// else that is not punctuation goes through the transliterator.
func (s *Segmenter) appendFallbackRun(tokens []string, run string) []string {
	for _, r := range run {
		switch {
		case r < 256:
			tokens = append(tokens, string(r))
		case isJapanese(r):
			tokens = append(tokens, string(r))
		case strings.ContainsRune(cjkPunctuation, r):
			tokens = append(tokens, string(r))
		default:
			tokens = append(tokens, s.translit.Convert(string(r))...)
		}
	}

	return tokens
}

// splitRuns groups consecutive runes by encoded byte width:
// 1 byte → ASCII, 3 bytes → CJK, anything else → other.
func splitRuns(s string) []textRun {
	var runs []textRun

	var cur strings.Builder
	curKind := runASCII
	started := false

	flush := func() {
		if cur.Len() > 0 {
			runs = append(runs, textRun{kind: curKind, content: cur.String()})
			cur.Reset()
		}
	}

	for _, r := range s {
		kind := classifyRune(r)
		if !started || kind != curKind {
			flush()
			curKind = kind
			started = true
		}
		cur.WriteRune(r)
	}
	flush()

	return runs
}

func classifyRune(r rune) runKind {
	switch utf8.RuneLen(r) {
	case 1:
		return runASCII
	case 3:
		return runCJK
	default:
		return runOther
	}
}

// isJapanese reports whether r is hiragana, katakana, or half-width
// katakana.
func isJapanese(r rune) bool {
	return (r >= 0x3040 && r <= 0x309F) ||
		(r >= 0x30A0 && r <= 0x30FF) ||
		(r >= 0xFF66 && r <= 0xFF9F)
}

// isJapaneseToken reports whether a token is a single Japanese character.
func isJapaneseToken(tok string) bool {
	r, size := utf8.DecodeRuneInString(tok)
	return size == len(tok) && isJapanese(r)
}

// isCJKPunct reports whether a token is a single CJK punctuation mark.
func isCJKPunct(tok string) bool {
	r, size := utf8.DecodeRuneInString(tok)
	return size == len(tok) && strings.ContainsRune(cjkPunctuation, r)
}

// isSeparatorToken reports whether a token already separates words:
// a space, colon, or quote character.
func isSeparatorToken(tok string) bool {
	return tok == " " || tok == ":" || tok == "'" || tok == `"`
}

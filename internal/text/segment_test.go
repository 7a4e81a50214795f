package text

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

// stubTranslit maps individual Han characters through a fixed table and
// passes everything else through unchanged, mirroring the production
// engine's fallback behavior.
type stubTranslit struct {
	table map[rune]string
}

func newStubTranslit() *stubTranslit {
	return &stubTranslit{table: map[rune]string{
		'你': "ni3",
		'好': "hao3",
		'世': "shi4",
		'界': "jie4",
		'中': "zhong1",
		'文': "wen2",
	}}
}

func (s *stubTranslit) Convert(run string) []string {
	var out []string
	for _, r := range run {
		if syl, ok := s.table[r]; ok {
			out = append(out, syl)
		} else {
			out = append(out, string(r))
		}
	}
	return out
}

func TestTokenize_PureASCIIUnchanged(t *testing.T) {
	seg := NewSegmenter(newStubTranslit())

	input := "Hello, world"
	tokens := seg.Tokenize(input)

	if len(tokens) != len(input) {
		t.Fatalf("Tokenize(%q) produced %d tokens, want %d", input, len(tokens), len(input))
	}
	for i, r := range input {
		// i counts bytes, but pure ASCII input makes byte index == rune index.
		if tokens[i] != string(r) {
			t.Errorf("token[%d] = %q, want %q", i, tokens[i], string(r))
		}
	}
}

func TestTokenize_AllChinese(t *testing.T) {
	seg := NewSegmenter(newStubTranslit())

	tokens := seg.Tokenize("你好，世界")

	want := []string{" ", "ni3", " ", "hao3", "，", " ", "shi4", " ", "jie4"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize = %v, want %v", tokens, want)
	}
}

func TestTokenize_ChineseTokensAreSyllablesOrPunct(t *testing.T) {
	seg := NewSegmenter(newStubTranslit())

	tokens := seg.Tokenize("你好。世界！中文")

	for _, tok := range tokens {
		if tok == " " {
			continue
		}
		if isCJKPunct(tok) {
			continue
		}
		last := tok[len(tok)-1]
		if last < '1' || last > '5' {
			t.Errorf("token %q is neither punctuation nor tone-digit syllable", tok)
		}
	}
}

func TestTokenize_PunctuationNeverSpacedOrToned(t *testing.T) {
	seg := NewSegmenter(newStubTranslit())

	tokens := seg.Tokenize("你，好")

	for i, tok := range tokens {
		if !isCJKPunct(tok) {
			continue
		}
		if i > 0 && tokens[i-1] == " " {
			t.Errorf("punctuation token %q at %d has a leading inserted space", tok, i)
		}
		if strings.ContainsAny(tok, "12345") {
			t.Errorf("punctuation token %q carries a tone digit", tok)
		}
	}
}

func TestTokenize_MixedChineseThenASCII(t *testing.T) {
	seg := NewSegmenter(newStubTranslit())

	tokens := seg.Tokenize("你好world")

	// The multi-character ASCII run gets one separating space.
	want := []string{" ", "ni3", " ", "hao3", " ", "w", "o", "r", "l", "d"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize = %v, want %v", tokens, want)
	}
}

func TestTokenize_NoSpaceAfterJapanese(t *testing.T) {
	seg := NewSegmenter(newStubTranslit())

	// Kana passes through the transliterator untouched; the syllable for
	// the following Han character must not get a leading space.
	tokens := seg.Tokenize("の你")

	want := []string{" ", "の", "ni3"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize = %v, want %v", tokens, want)
	}
}

func TestTokenize_FallbackKeepsEveryRune(t *testing.T) {
	seg := NewSegmenter(newStubTranslit())

	// é is a two-byte rune, 𠀀 (U+20000) is four bytes: both take the
	// per-rune fallback path and neither may be dropped.
	input := "café𠀀"
	tokens := seg.Tokenize(input)

	joined := strings.Join(tokens, "")
	for _, r := range input {
		if !strings.ContainsRune(joined, r) {
			t.Errorf("rune %q missing from tokens %v", r, tokens)
		}
	}
}

func TestTokenize_PolyphoneOff(t *testing.T) {
	seg := NewSegmenter(newStubTranslit())
	seg.SetPolyphone(false)

	// Without polyphone mode the three-byte run takes the fallback path:
	// Han characters are still transliterated, but one at a time and
	// without inserted spaces.
	tokens := seg.Tokenize("你好")

	want := []string{"ni3", "hao3"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize = %v, want %v", tokens, want)
	}
}

func TestNormalizeQuotes(t *testing.T) {
	got := NormalizeQuotes("“hi”; ‘there’")
	want := `"hi", 'there'`
	if got != want {
		t.Fatalf("NormalizeQuotes = %q, want %q", got, want)
	}
}

func TestSplitRuns_GroupsByByteWidth(t *testing.T) {
	runs := splitRuns("ab你好é")

	if len(runs) != 3 {
		t.Fatalf("splitRuns produced %d runs, want 3 (%v)", len(runs), runs)
	}
	if runs[0].kind != runASCII || runs[0].content != "ab" {
		t.Errorf("run[0] = %+v, want ASCII %q", runs[0], "ab")
	}
	if runs[1].kind != runCJK || runs[1].content != "你好" {
		t.Errorf("run[1] = %+v, want CJK %q", runs[1], "你好")
	}
	if runs[2].kind != runOther || runs[2].content != "é" {
		t.Errorf("run[2] = %+v, want other %q", runs[2], "é")
	}
}

func TestIsJapaneseRanges(t *testing.T) {
	cases := []struct {
		r    rune
		want bool
	}{
		{'あ', true},  // hiragana
		{'カ', true},  // katakana
		{'ｶ', true},  // half-width katakana
		{'你', false}, // Han
		{'a', false},
	}
	for _, c := range cases {
		if got := isJapanese(c.r); got != c.want {
			t.Errorf("isJapanese(%q) = %v, want %v", c.r, got, c.want)
		}
	}
}

func TestCJKPunctuationRunesAreThreeBytes(t *testing.T) {
	// The punctuation set must stay within the three-byte classification
	// so punctuation inside Chinese runs reaches the syllable filter.
	for _, r := range cjkPunctuation {
		if utf8.RuneLen(r) != 3 {
			t.Errorf("punctuation rune %q encodes to %d bytes, want 3", r, utf8.RuneLen(r))
		}
	}
}

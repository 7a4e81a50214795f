package text

import (
	gopinyin "github.com/mozillazg/go-pinyin"
)

// PinyinTransliterator converts Han characters to numbered-tone pinyin
// syllables ("zhong1") using the go-pinyin dictionary. Non-Han runes
// pass through unchanged via the fallback, which keeps kana and
// punctuation intact inside three-byte runs.
type PinyinTransliterator struct {
	args gopinyin.Args
}

// NewPinyinTransliterator returns a Transliterator in TONE3 style
// (tone marked by a trailing digit).
func NewPinyinTransliterator() *PinyinTransliterator {
	args := gopinyin.NewArgs()
	args.Style = gopinyin.Tone3
	args.Fallback = func(r rune, _ gopinyin.Args) []string {
		return []string{string(r)}
	}

	return &PinyinTransliterator{args: args}
}

// Convert returns one syllable per rune of run.
func (p *PinyinTransliterator) Convert(run string) []string {
	return gopinyin.LazyPinyin(run, p.args)
}

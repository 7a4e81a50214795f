package pipeline

import "strings"

// HopLength is the vocoder hop size at the 24 kHz target rate. One
// mel frame covers HopLength samples.
const HopLength = 256

// zhPausePunctuation are the pause marks whose presence lengthens the
// estimated Chinese text duration.
const zhPausePunctuation = "。，、；：？！"

// FrameCount converts a sample count into a mel frame count. The +1
// accounts for the final partial frame.
func FrameCount(sampleCount int) int64 {
	return int64(sampleCount/HopLength) + 1
}

// TextLength estimates the transcript weight for duration heuristics.
// For Chinese-mode text each pause mark counts three extra bytes on
// top of the UTF-8 length; other languages use the raw byte length.
//
// The emitted max duration is the audio frame count alone. The text
// length is computed and logged for observability only, matching the
// reference behavior.
func TextLength(refText, lang string) int {
	n := len(refText)
	if lang != "zh" {
		return n
	}

	pauses := 0
	for _, r := range refText {
		if strings.ContainsRune(zhPausePunctuation, r) {
			pauses++
		}
	}

	return n + 3*pauses
}

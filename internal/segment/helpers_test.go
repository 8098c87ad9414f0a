package segment

import "github.com/MimeLyc/contextual-caption-translator/internal/subtitle"

func intp(v int) *int { return &v }

func seg(text string, offset int) subtitle.Seg {
	return subtitle.Seg{UTF8: text, OffsetMs: intp(offset)}
}

func event(start, duration int, segs ...subtitle.Seg) subtitle.RawEvent {
	return subtitle.RawEvent{StartMs: intp(start), DurationMs: intp(duration), Segs: segs}
}

func lineBreak(start int) subtitle.RawEvent {
	return subtitle.RawEvent{StartMs: intp(start), Append: 1, Segs: []subtitle.Seg{{UTF8: "\n"}}}
}

package segment

import "strings"

type SplitReason int

const (
	SplitTimeGap SplitReason = iota + 1
	SplitLinguisticPause
	SplitEndOfBlock
)

func (r SplitReason) String() string {
	switch r {
	case SplitTimeGap:
		return "time_gap"
	case SplitLinguisticPause:
		return "linguistic_pause"
	case SplitEndOfBlock:
		return "end_of_block"
	default:
		return "unknown"
	}
}

func (r SplitReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Candidate is an intermediate sentence produced inside a single block
type Candidate struct {
	Text    string      `json:"text"`
	StartMs int         `json:"start"`
	EndMs   int         `json:"end"`
	Reason  SplitReason `json:"reason"`
}

// Split walks every block independently and cuts it into candidate sentences
// on long pauses and on sentence-final markers followed by a shorter pause.
// A lone segment is never cut on timing alone; the last segment of a block
// always closes the current sentence.
func Split(blocks []CleanedBlock, params Params) []Candidate {
	params = params.withDefaults()

	ret := make([]Candidate, 0, len(blocks))
	for _, block := range blocks {
		segments := block.Segments
		if len(segments) == 0 {
			continue
		}

		var parts []string
		sentenceStart := segments[0].StartMs
		for i, seg := range segments {
			parts = append(parts, seg.Text)

			var reason SplitReason
			end := block.EndMs
			if i == len(segments)-1 {
				reason = SplitEndOfBlock
			} else {
				next := segments[i+1]
				pause := next.StartMs - seg.StartMs
				end = next.StartMs
				switch {
				case pause > params.PauseThresholdMs:
					if len(parts) > 1 {
						reason = SplitTimeGap
					}
				case pause > params.LinguisticPauseMs && containsAny(seg.Text, params.Markers):
					if len(parts) > 1 {
						reason = SplitLinguisticPause
					}
				}
			}
			if reason == 0 {
				continue
			}

			if text := strings.Join(parts, ""); text != "" {
				ret = append(ret, Candidate{
					Text:    text,
					StartMs: sentenceStart,
					EndMs:   end,
					Reason:  reason,
				})
			}
			parts = parts[:0]
			if i+1 < len(segments) {
				sentenceStart = segments[i+1].StartMs
			}
		}
	}
	return ret
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

package segment

import (
	"strings"
	"unicode/utf8"
)

// Merge joins candidates that were cut only by a block boundary or that end
// on a connective particle. The merged sentence takes the reason of the
// candidate it absorbed, so a chain stops at the first clean ending and a
// second pass over the output changes nothing.
func Merge(candidates []Candidate, params Params) []Candidate {
	params = params.withDefaults()

	ret := make([]Candidate, 0, len(candidates))
	for _, current := range candidates {
		text := strings.TrimSpace(current.Text)
		if text == "" {
			continue
		}
		current.Text = text

		if len(ret) == 0 {
			ret = append(ret, current)
			continue
		}

		last := ret[len(ret)-1]
		if !shouldMerge(last, params.Particles) {
			ret = append(ret, current)
			continue
		}
		ret[len(ret)-1] = Candidate{
			Text:    last.Text + current.Text,
			StartMs: last.StartMs,
			EndMs:   current.EndMs,
			Reason:  current.Reason,
		}
	}
	return ret
}

func shouldMerge(last Candidate, particles []string) bool {
	if last.Reason == SplitEndOfBlock {
		return true
	}
	return endsWithParticle(last.Text, particles)
}

// endsWithParticle compares the final character only, so multi-character
// entries in the set never match
func endsWithParticle(text string, particles []string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text)
	last := string(r)
	for _, particle := range particles {
		if particle == last {
			return true
		}
	}
	return false
}

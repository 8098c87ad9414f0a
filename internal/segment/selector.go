package segment

import (
	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

type Engine string

const (
	EngineAdvanced Engine = "advanced"
	EngineLegacy   Engine = "legacy"
)

// Decision records why an engine was chosen for a payload
type Decision struct {
	Engine         Engine  `json:"engine"`
	Ratio          float64 `json:"ratio"`
	ContentEvents  int     `json:"content_events"`
	MultiSegEvents int     `json:"multi_seg_events"`
	LanguageMatch  bool    `json:"language_match"`
	Enabled        bool    `json:"enabled"`
}

type Result struct {
	Decision Decision       `json:"decision"`
	Cues     []subtitle.Cue `json:"cues"`
}

// Selector turns a raw payload into an ordered cue list
type Selector interface {
	Decide(payload *subtitle.Payload, sourceLang string) Decision
	Segment(payload *subtitle.Payload, sourceLang string) Result
}

type Pipeline struct {
	params Params
}

func NewPipeline(params Params) *Pipeline {
	return &Pipeline{params: params.withDefaults()}
}

func (p *Pipeline) Params() Params {
	return p.params
}

// MultiSegRatio returns the share of content events that carry more than one
// segment, 0 when there is no content.
func MultiSegRatio(payload *subtitle.Payload) (ratio float64, content int, multi int) {
	if payload == nil {
		return 0, 0, 0
	}
	for _, event := range payload.Events {
		if !event.IsContent() {
			continue
		}
		content++
		if len(event.Segs) > 1 {
			multi++
		}
	}
	if content == 0 {
		return 0, 0, 0
	}
	return float64(multi) / float64(content), content, multi
}

func (p *Pipeline) Decide(payload *subtitle.Payload, sourceLang string) Decision {
	ratio, content, multi := MultiSegRatio(payload)
	d := Decision{
		Engine:         EngineLegacy,
		Ratio:          ratio,
		ContentEvents:  content,
		MultiSegEvents: multi,
		LanguageMatch:  subtitle.LanguageEquivalent(sourceLang, p.params.AdvancedLanguage),
		Enabled:        p.params.AdvancedEnabled,
	}
	if d.LanguageMatch && d.Enabled && ratio >= p.params.MultiSegRatio {
		d.Engine = EngineAdvanced
	}
	return d
}

func (p *Pipeline) Segment(payload *subtitle.Payload, sourceLang string) Result {
	decision := p.Decide(payload, sourceLang)
	log.Info("Segmentation lang=%s ratio=%.3f content=%d multi=%d engine=%s",
		sourceLang, decision.Ratio, decision.ContentEvents, decision.MultiSegEvents, decision.Engine)

	if payload == nil {
		return Result{Decision: decision, Cues: []subtitle.Cue{}}
	}

	if decision.Engine == EngineAdvanced {
		cues := p.advanced(payload.Events)
		if len(cues) > 0 {
			return Result{Decision: decision, Cues: cues}
		}
		log.Warn("Advanced segmentation produced no sentences, using legacy parser")
		decision.Engine = EngineLegacy
	}
	return Result{Decision: decision, Cues: ParseLegacy(payload.Events, p.params)}
}

func (p *Pipeline) advanced(events []subtitle.RawEvent) []subtitle.Cue {
	blocks := Clean(events, p.params)
	candidates := Split(blocks, p.params)
	merged := Merge(candidates, p.params)
	log.Debug("Advanced segmentation blocks=%d candidates=%d sentences=%d",
		len(blocks), len(candidates), len(merged))

	cues := make([]subtitle.Cue, 0, len(merged))
	for _, sentence := range merged {
		cues = append(cues, subtitle.Cue{
			StartMs: sentence.StartMs,
			EndMs:   max(sentence.EndMs, sentence.StartMs),
			Text:    sentence.Text,
		})
	}
	return cues
}

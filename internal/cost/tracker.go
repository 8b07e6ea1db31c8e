package cost

import "sync"

// Usage is a running token total. Totals only ever grow.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage into u.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// estimatedPromptShare is applied when a boundary reports only a total token
// count with no prompt/completion breakdown. Discovery prompts dwarf their
// responses (page content in, a short JSON decision out), so the split is
// weighted toward prompt tokens.
const estimatedPromptShare = 0.75

// Tracker accumulates usage per logical label (classification, extraction,
// suggestion) across concurrent detail workers. All methods are safe for
// concurrent use.
type Tracker struct {
	mu      sync.Mutex
	byLabel map[string]Usage
	total   Usage
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byLabel: make(map[string]Usage)}
}

// Record adds usage under a label. A zero TotalTokens is derived from the
// prompt/completion sum.
func (t *Tracker) Record(label string, u Usage) {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	labeled := t.byLabel[label]
	labeled.Add(u)
	t.byLabel[label] = labeled
	t.total.Add(u)
}

// RecordTotalOnly handles a boundary response that reports only a total token
// count: the total is split estimatedPromptShare/1-estimatedPromptShare
// between prompt and completion rather than failing.
func (t *Tracker) RecordTotalOnly(label string, totalTokens int) {
	prompt := int(float64(totalTokens) * estimatedPromptShare)
	t.Record(label, Usage{
		PromptTokens:     prompt,
		CompletionTokens: totalTokens - prompt,
		TotalTokens:      totalTokens,
	})
}

// Total returns the accumulated usage across all labels.
func (t *Tracker) Total() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// ByLabel returns a copy of the per-label usage map.
func (t *Tracker) ByLabel() map[string]Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Usage, len(t.byLabel))
	for k, v := range t.byLabel {
		out[k] = v
	}
	return out
}

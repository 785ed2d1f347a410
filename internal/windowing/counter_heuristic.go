package windowing

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/petasbytes/toolchat/memory"
)

// TokenCounter estimates input-token cost for messages or groups.
type TokenCounter interface {
	CountMessage(m memory.Message) int
	CountGroup(g Group, all []memory.Message) int
}

// HeuristicCounter is the current default deterministic estimator.
// Rules:
// - text parts: rune count of the text
// - functionCall parts: runes of the name plus runes of the JSON-encoded args
// - functionResponse parts: runes of the result or error string
// Each part adds a small fixed overhead for minimal formatting.
type HeuristicCounter struct{}

// Fixed per-part overhead for deterministic counts; changing this requires updating the guard test.
const blockOverhead = 4

func (HeuristicCounter) CountMessage(m memory.Message) int {
	total := 0
	for _, p := range m.Parts {
		total += countPart(p)
	}
	return total
}

func (h HeuristicCounter) CountGroup(g Group, all []memory.Message) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountMessage(all[i])
	}
	return total
}

func countPart(p memory.Part) int {
	switch {
	case p.FunctionCall != nil:
		n := utf8.RuneCountInString(p.FunctionCall.Name)
		if len(p.FunctionCall.Args) > 0 {
			if b, err := json.Marshal(p.FunctionCall.Args); err == nil {
				n += utf8.RuneCount(b)
			} else {
				vlogf("counter: unencodable_call_args name=%s using=name_only", p.FunctionCall.Name)
			}
		}
		return n + blockOverhead
	case p.FunctionResponse != nil:
		return utf8.RuneCountInString(p.FunctionResponse.Content()) + blockOverhead
	default:
		return utf8.RuneCountInString(p.Text) + blockOverhead
	}
}

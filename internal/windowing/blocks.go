package windowing

import (
	"fmt"
	"os"

	"github.com/petasbytes/toolchat/memory"
)

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupPair
)

// Group describes a contiguous span of messages [Start, End) in the original slice.
// Kind indicates whether it is a singleton or a validated pair.
type Group struct {
	Kind  GroupKind
	Start int // inclusive index into msgs
	End   int // exclusive index into msgs
}

// GroupBlocks groups messages into atomic units that preserve call/result pairs.
// Invariants:
// - A pair is exactly two adjacent messages: model(functionCall...) then function(functionResponse).
// - The response name must match one of the calls in the model message.
// - Error responses are treated the same as results for grouping.
func GroupBlocks(msgs []memory.Message) []Group {
	groups := make([]Group, 0, len(msgs))
	for i := 0; i < len(msgs); {
		m := msgs[i]
		if m.IsCall() {
			if i+1 < len(msgs) && msgs[i+1].Role == memory.RoleFunction {
				if answersCall(m, msgs[i+1]) {
					groups = append(groups, Group{Kind: GroupPair, Start: i, End: i + 2})
					i += 2
					continue
				}
				vlogf("exclude pair: reason=name_mismatch idx=%d", i)
			} else {
				vlogf("exclude pair: reason=not_followed_by_function idx=%d", i)
			}
		}
		// Fallback: singleton
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// answersCall reports whether fn carries a response to one of call's function calls.
func answersCall(call, fn memory.Message) bool {
	resp := fn.Response()
	if resp == nil {
		return false
	}
	for _, c := range call.Calls() {
		if c.Name == resp.Name {
			return true
		}
	}
	return false
}

// minimal verbose logging when AGT_VERBOSE_WINDOW_LOGS=1
var verbose = os.Getenv("AGT_VERBOSE_WINDOW_LOGS") == "1"

func vlogf(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[windowing] "+format+"\n", args...)
	}
}

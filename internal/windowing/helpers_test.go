package windowing_test

import (
	"github.com/petasbytes/toolchat/internal/windowing"
	"github.com/petasbytes/toolchat/memory"
)

// User message constructor
func User(text string) memory.Message { return memory.UserText(text) }

// Model text reply constructor
func Model(text string) memory.Message { return memory.ModelText(text) }

// Call builds a model message requesting the named tools with no arguments.
func Call(names ...string) memory.Message {
	calls := make([]memory.FunctionCall, len(names))
	for i, n := range names {
		calls[i] = memory.FunctionCall{Name: n}
	}
	return memory.ModelCall(calls...)
}

// Result builds a successful function message.
func Result(name, content string) memory.Message { return memory.FunctionResult(name, content) }

// Failure builds an error function message.
func Failure(name, reason string) memory.Message { return memory.FunctionError(name, reason) }

// groupsEqual is a small utility used by grouping tests.
func groupsEqual(got, want []windowing.Group) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].Kind != want[i].Kind || got[i].Start != want[i].Start || got[i].End != want[i].End {
			return false
		}
	}
	return true
}

func single(i int) windowing.Group {
	return windowing.Group{Kind: windowing.GroupSingleton, Start: i, End: i + 1}
}

func pair(i int) windowing.Group {
	return windowing.Group{Kind: windowing.GroupPair, Start: i, End: i + 2}
}

package memory

import "time"

// Entry is a persisted message together with its storage metadata.
// CallID is set on function entries and names the call entry they answer.
type Entry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	CallID    string    `json:"callId,omitempty"`
	Message
}

// RepairStats counts what Load discarded and why.
type RepairStats struct {
	Malformed int // could not be decoded
	Invalid   int // decoded but missing the part its role requires
	Orphaned  int // broke the call/result pairing
}

// Dropped is the total number of discarded entries.
func (s RepairStats) Dropped() int {
	return s.Malformed + s.Invalid + s.Orphaned
}

// Repair sanitizes entries and enforces the pairing invariant in a single,
// order-preserving pass. Each entry is judged against its immediate retained
// neighbour:
//   - a call is kept only if the next sane entry is a function entry answering it;
//   - a function entry is kept only if it answers the call retained just before it;
//   - when a call is dropped because the next entry does not answer it, that next
//     entry is dropped too if it is a function entry.
//
// An unanswered call at the end of the log (an open intent) is dropped.
func Repair(entries []Entry) ([]Entry, RepairStats) {
	var stats RepairStats
	out := make([]Entry, 0, len(entries))
	open := false // out's last entry is a call still waiting for its result

	for _, e := range entries {
		if !e.sane() {
			stats.Invalid++
			continue
		}
		isResult := e.Role == RoleFunction

		if open {
			open = false
			if isResult && answers(e, out[len(out)-1]) {
				out = append(out, e)
				continue
			}
			out = out[:len(out)-1]
			stats.Orphaned++
			if isResult {
				stats.Orphaned++
				continue
			}
		} else if isResult {
			stats.Orphaned++
			continue
		}

		out = append(out, e)
		open = e.IsCall()
	}
	if open {
		out = out[:len(out)-1]
		stats.Orphaned++
	}
	return out, stats
}

// answers reports whether result closes call.
func answers(result, call Entry) bool {
	resp := result.Response()
	if resp == nil {
		return false
	}
	if result.CallID != "" && result.CallID != call.ID {
		return false
	}
	for _, c := range call.Calls() {
		if c.Name == resp.Name {
			return true
		}
	}
	return false
}

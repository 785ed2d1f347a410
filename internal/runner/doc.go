// Package runner drives one user turn through the model and tool protocol.
//
// Invariant:
//   - a model call entry is followed by the function entry that answers it.
//     The call is appended first, which opens an intent; AppendReply closes it.
//     A turn that fails in between leaves the intent open and the next Load
//     drops it, so the log is never rewritten in place.
//
// Flow:
//
//	IDLE -> AWAITING_FIRST_REPLY -> DONE
//	                             -> AWAITING_TOOL -> AWAITING_FINAL_REPLY -> DONE
//	any state -> FAILED
package runner

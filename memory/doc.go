// Package memory provides the durable conversation log.
//
// Persistence model:
//   - Every message is stored as an Entry: the protocol Message plus an id,
//     a creation time and, for function results, the id of the call it answers.
//   - The log is append-only; the only other mutation is a full Clear.
//   - Load never trusts the stored sequence. It drops undecodable and
//     mis-shaped entries, then repairs call/result pairing in one pass so the
//     returned history is always safe to send to a model.
//
// Pairing invariant:
//
//	model(functionCall) is immediately followed by function(functionResponse)
//
// A call appended without its result is an open intent. If the process dies or
// the result cannot be written, Load drops the call exactly like any other
// orphan, so crash recovery and steady-state repair share one code path.
package memory

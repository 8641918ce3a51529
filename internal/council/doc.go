// Package council implements the council orchestration pipeline: one query
// fanned out to N remote models (stage 1), an anonymized cross-ranking by
// the same responders (stage 2), average-rank aggregation, a chairman
// synthesis (stage 3), and an optional conversation title, emitted as a
// strictly ordered stream of progress events.
//
// A run moves through a fixed sequence of states with no skipping and no
// going back:
//
//	validating → stage1 → stage2 → stage3 → (optional title) → complete
//
// with error reachable only from validating or from a stage-1 total
// failure. Every run ends with exactly one terminal event, complete or
// error.
//
// Failure isolation: a branch that errors or times out inside a fan-out is
// recorded as absence, never retried, and never cancels its siblings. Only
// "zero stage-1 successes" is fatal. A failed synthesis degrades to a
// sentinel answer; a failed title call is silently skipped.
package council

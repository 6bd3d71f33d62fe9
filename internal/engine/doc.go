// Package engine drives the session step loop: ask the supervisor who runs
// next, invoke that role, fold the result into session state, checkpoint,
// and repeat until the turn reaches a terminal state.
//
// Progress is reported on an ordered event channel, one event per completed
// role invocation, followed by exactly one terminal event. Transports
// consume the channel; cancellation closes it.
package engine

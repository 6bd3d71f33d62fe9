// Package supervisor is the routing state machine: given current session
// state it decides which role runs next, detects terminal conditions, and
// enforces the revision budget.
//
// The transition table is a pure function over (current state, last role
// output); the supervisor holds no mutable state of its own and never
// performs I/O.
package supervisor

// Package session owns the per-key session model and its durable storage.
//
// A session is mutated exclusively by the orchestration engine applying one
// role's output per step, then checkpointed. Steps within one key are
// serialized through a lease; steps for different keys run concurrently.
// Sessions are never deleted by the engine; retention is external policy.
package session

// Package agents provides the generative implementations behind the role
// adapter contract: an intent classifier, a chat responder, a drafter, and
// the two reviewers.
//
// The LLM adapter asks each role for a single JSON object and parses it into
// the role's structured result; the engine never sees prompt text or model
// output, only role.Result values. A deterministic scripted adapter backs
// tests and the "scripted" provider.
package agents

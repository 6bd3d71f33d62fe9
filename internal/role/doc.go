// Package role defines the closed set of participant roles and the uniform
// request/response contract every role implementation is invoked through.
//
// A Role is a producer or reviewer in the drafting pipeline. The engine only
// ever talks to roles through the Adapter interface; whether a role is backed
// by a generative model, a script, or a human is invisible to it.
package role

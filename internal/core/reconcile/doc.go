// Package reconcile advances client-side copies of remote entities toward
// the state most recently pushed by the server.
//
// Every remote entity carries a ServerActor. Inbound updates are merged into
// a per-kind target; each tick the actor either interpolates a component
// toward its target or applies the patch at once, and forgets the target as
// soon as it is reached.
package reconcile

// Package replication describes which part of a component's state crosses
// the network and how partial updates are applied back onto it.
//
// A component declares an ordered set of dotted paths through a Codec. Each
// path is backed by an explicit accessor rather than reflection, so applying
// a patch is a targeted write: paths that are absent from the patch, or that
// the codec does not declare, are never touched.
//
// Patches travel as JSON, which means numbers arrive as float64 and nested
// objects as map[string]any. The coercion helpers (Float64, Int, String,
// Bool) absorb those differences.
package replication

// Package ir provides the arena-addressed intermediate representation shared
// by the parser, the optimizer and the interchange codec.
//
// A Store owns every node of one compilation unit. Nodes are addressed by
// small integer handles that are assigned monotonically and never reused, so
// a handle that outlives its node can be detected instead of silently
// aliasing a newer one. All other internal packages import ir; ir imports
// nothing internal.
//
// Key constraints:
//   - The root is always a Program node with no parent
//   - Every other live node has exactly one parent and appears exactly once
//     in that parent's child list
//   - Attribute values are scalars or handles into the same store
//   - Canonical JSON (RFC 8785) is the only encoding used for content hashes
package ir

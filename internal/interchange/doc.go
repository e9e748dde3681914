// Package interchange serializes IR stores into a self-describing flat
// form and back.
//
// The envelope is canonical JSON (see ir.MarshalCanonical): a header with
// the format tag, the IR schema version, a store identifier, the root
// handle, the next unassigned handle and the node count, followed by every
// live node in handle order. Each node lists its handle, kind, parent
// (0 for the root), children, attributes and span. Attribute values are
// tagged objects; numbers travel as strings so that NaN, the infinities
// and -0 survive, and Ref attributes name handles of the same store.
//
// The envelope carries a content hash over everything except the hash
// itself. Decode recomputes it and validates the rebuilt store, so a
// damaged or hand-edited document is rejected rather than loaded.
//
// Several envelopes can share one stream through the uvarint-prefixed
// frames of FrameWriter and FrameReader.
package interchange

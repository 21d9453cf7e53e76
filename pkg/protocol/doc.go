// Package protocol implements the binary wire protocol between a live
// session and its browser client.
//
// The server sends one snapshot frame when a client attaches, then one
// mutations frame per scheduler flush that changed the document. The
// client sends event frames addressed by node id. Node ids are the live
// document's ids (dom.Document.ID), so a mutation names the same node on
// both ends.
//
// # Frames
//
//	[type: 1 byte][flags: 1 byte][payload length: uint32 big-endian][payload]
//
//   - FrameSnapshot (0x01): Snapshot, server to client
//   - FrameMutations (0x02): MutationBatch, server to client
//   - FrameEvent (0x03): Event, client to server
//   - FramePing (0x04) and FramePong (0x05): empty heartbeat payloads
//   - FrameError (0x06): ErrorMessage, server to client
//
// # Encoding
//
// Integers are protobuf-style varints (signed values ZigZag-encoded),
// strings are varint length-prefixed, floats are big-endian IEEE 754.
// Decoders check every length and count against the remaining input and
// the limits in decoder.go before allocating.
package protocol

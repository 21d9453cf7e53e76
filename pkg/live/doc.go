// Package live serves kiln components to browsers.
//
// Every page request creates a Session: a kiln.App with its own document,
// rendered on the server and returned as HTML with a small client script.
// The client then opens a WebSocket to /kiln/ws and the session keeps the
// page live:
//
//   - on connect the server sends a snapshot frame holding the document
//     with a numeric id per node
//   - the client sends event frames for click, input, change, submit and
//     keydown, addressed by node id
//   - after every scheduler flush the server sends the mutations the flush
//     made to the document, numbered so the client can detect gaps
//
// A session outlives its connection by Config.ResumeWindow. A client that
// reconnects in time receives a fresh snapshot flagged as resumed; after
// the window the session is closed and its components unmounted.
//
// Frames use the binary format of package protocol.
package live

// Package livechat turns raw chat-polling payloads into a steady stream of
// structured comments.
//
// The pipeline for one accepted response body:
//   - ParseBatch extracts the ordered comments from the payload, tolerating
//     unrecognized shapes at every level (heartbeats, deletions, membership
//     events and other non-text actions simply yield nothing).
//   - A RateWindow smooths the measured gaps between accepted bodies into an
//     average fetch period.
//   - PaceBatch spreads the batch across that period so a burst of N comments
//     reads like N people typing, not one dump.
//
// Listener ties the three together and owns the shared rate state. One
// Listener serves one video feed; several listeners can run side by side in
// the same process, each with its own window and timestamp. Manager keeps
// track of the running sessions for the status and admin surfaces.
//
// Comments leave the package through the Emitter capability. An attached
// consumer may come and go at any time; ErrNoConsumer from an emit is an
// expected condition and never stops the feed.
package livechat

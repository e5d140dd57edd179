// Package episode generates podcast episodes.
//
// OutlineGenerator renders the outline prompt, invokes the model, and
// validates the reply into exactly the requested number of segments. A reply
// the validator rejects is retried once (by default) with a prompt that names
// the problem.
//
// TranscriptGenerator then walks the outline strictly in order. Each segment
// prompt carries the whole transcript so far, and each segment's validated
// turns are appended before the next segment starts. Only the last segment
// is rendered as final. When a segment exhausts its retries the
// FailurePolicy either aborts the episode or skips the segment.
//
// Runner ties the two together as a state machine:
//
//	Idle -> OutlineRequested -> OutlinePending -> OutlineReady
//	     -> [SegmentPending(i) -> SegmentReady(i)]* -> Complete
//
// Failed is reachable from every pending state. Each transition goes to the
// configured StateSinks (the run-history store and the log). Runs, outlines,
// and segments are traced as episode.run, episode.outline, and
// episode.segment spans.
//
// RunBatch runs independent episodes concurrently; nothing is shared between
// episodes except backends and the store.
package episode

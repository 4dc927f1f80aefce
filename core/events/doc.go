// Package events defines the observable events emitted by the voice
// pipeline: session lifecycle changes, transcript progress, and utterance
// dispatch outcomes. Events are consumed and discarded by observers; they
// are never retained by the pipeline itself.
package events

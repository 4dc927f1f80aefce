// Package triggers defines the finalize signals raced by the two
// end-of-utterance heuristics. Triggers are ephemeral: they are acted upon
// once and never stored.
package triggers

import "time"

// Trigger is a finalize signal from one of the detection heuristics.
type Trigger interface {
	Timestamp() time.Time
}

// QuietWindowTrigger fires when no committed fragment arrived for the whole
// quiet window.
type QuietWindowTrigger struct {
	BaseTrigger
}

func (t QuietWindowTrigger) String() string { return "quiet window expired" }

func NewQuietWindowTrigger() QuietWindowTrigger {
	return QuietWindowTrigger{BaseTrigger: NewBaseTrigger()}
}

// RepeatedPartialTrigger fires when the recognition service re-emitted the
// same partial transcript enough times in a row to read as silence.
type RepeatedPartialTrigger struct {
	BaseTrigger
	transcript string
}

func (t RepeatedPartialTrigger) String() string     { return t.transcript }
func (t RepeatedPartialTrigger) Transcript() string { return t.transcript }

func NewRepeatedPartialTrigger(transcript string) RepeatedPartialTrigger {
	return RepeatedPartialTrigger{BaseTrigger: NewBaseTrigger(), transcript: transcript}
}

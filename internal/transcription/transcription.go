package transcription

import (
	"context"
)

// Word is a single transcribed word with its time range in seconds.
type Word struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// Result is a full transcript plus word-level timings.
type Result struct {
	Transcript string `json:"transcript"`
	Words      []Word `json:"words"`
}

// Transcriber converts an audio source into a timestamped transcript.
// Transcription of long recordings can take tens of minutes; callers
// must pass a context with an appropriate deadline.
type Transcriber interface {
	Transcribe(ctx context.Context, sourceURI string) (*Result, error)
}

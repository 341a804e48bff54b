package transcription

import (
	"context"
)

// MockTranscriber returns a fixed transcript. Used in tests and local
// development where no speech service is available.
type MockTranscriber struct{}

func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, sourceURI string) (*Result, error) {
	words := []Word{
		{Text: "This", StartTime: 0.0, EndTime: 0.5},
		{Text: "is", StartTime: 0.5, EndTime: 1.0},
		{Text: "a", StartTime: 1.0, EndTime: 1.2},
		{Text: "mock", StartTime: 1.2, EndTime: 1.8},
		{Text: "transcription", StartTime: 1.8, EndTime: 2.5},
		{Text: "of", StartTime: 2.5, EndTime: 2.7},
		{Text: "the", StartTime: 2.7, EndTime: 3.0},
		{Text: "audio", StartTime: 3.0, EndTime: 3.5},
		{Text: "file.", StartTime: 3.5, EndTime: 4.0},
	}
	return &Result{
		Transcript: "This is a mock transcription of the audio file.",
		Words:      words,
	}, nil
}

package domain

// GenerationResult is what a Generator returns. The set of implementations is
// closed: FinalText and MessageList.
type GenerationResult interface {
	generationResult()
}

// FinalText is a bare reply string.
type FinalText struct {
	Text string
}

// MessageList is the full transcript produced by the backend, including the
// turns it appended and the tool steps it ran.
type MessageList struct {
	Turns []Turn
	Steps []Step
}

func (FinalText) generationResult()   {}
func (MessageList) generationResult() {}

package domain

// FallbackPolicy decides what happens to a message whose classification
// could not complete.
type FallbackPolicy int

const (
	// FailOpen commits the text unmasked with VerdictClassificationFailed
	// and marks it for audit.
	FailOpen FallbackPolicy = iota
	// FailClosed rejects the send.
	FailClosed
)

func (p FallbackPolicy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

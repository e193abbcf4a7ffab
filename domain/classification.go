package domain

// Classification is what a classifier says about a submitted text.
// Confidence is nil when the service did not report one.
type Classification struct {
	Verdict    Verdict
	Confidence *float64
	Label      string
}

package app

const (
	DefaultMaxBufferedCandidates = 64
	DefaultCandidateRetryLimit   = 3
)

// Policy bounds candidate buffering so a misbehaving peer cannot grow the
// buffer without limit or recycle a failing candidate forever.
type Policy struct {
	MaxBufferedCandidates int
	CandidateRetryLimit   int
}

func (p Policy) withDefaults() Policy {
	if p.MaxBufferedCandidates <= 0 {
		p.MaxBufferedCandidates = DefaultMaxBufferedCandidates
	}
	if p.CandidateRetryLimit <= 0 {
		p.CandidateRetryLimit = DefaultCandidateRetryLimit
	}
	return p
}

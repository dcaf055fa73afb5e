package compute

import "sync/atomic"

// Policy pairs the classifier and deviation analyzer in effect.
type Policy struct {
	Classifier Classifier
	Analyzer   Analyzer
}

// Live holds the current Policy and lets config reload swap it without
// locking readers. Safe for concurrent use.
type Live struct {
	cur atomic.Pointer[Policy]
}

// NewLive returns a Live starting at p.
func NewLive(p Policy) *Live {
	l := &Live{}
	l.cur.Store(&p)
	return l
}

// Load returns the policy in effect. A request should call Load once and use
// the result throughout.
func (l *Live) Load() Policy {
	return *l.cur.Load()
}

// Store replaces the policy in effect.
func (l *Live) Store(p Policy) {
	l.cur.Store(&p)
}

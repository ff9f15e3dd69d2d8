package model

import "time"

// Mode is the experiment mode in effect for one cycle or request. It is read
// once from the mode source and then passed down explicitly.
type Mode struct {
	Predictive  bool
	ActivatedAt time.Time
}

func (m Mode) String() string {
	if m.Predictive {
		return "predictive"
	}
	return "baseline"
}

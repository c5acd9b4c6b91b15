package stability

import "time"

// Outcome is the state of a stability poll.
type Outcome int

const (
	// Pending means the poll has not yet decided.
	Pending Outcome = iota
	// Stable means the required number of identical observations was seen.
	Stable
	// TimedOut means the poll budget or deadline ran out first.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Stable:
		return "stable"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Sample is one measurement taken while polling.
type Sample struct {
	ElementCount       int
	MediaPlusLinkCount int
	Timestamp          time.Time
}

// Poll decides stability from a stream of counts. It becomes Stable once
// the same count has been observed required times in a row and TimedOut
// once maxPolls observations have been made without that happening. A
// decided Poll ignores further input.
type Poll struct {
	required int
	maxPolls int

	polls  int
	streak int
	last   int
	state  Outcome
}

// NewPoll returns a Poll. maxPolls <= 0 means no poll-count ceiling.
func NewPoll(required, maxPolls int) *Poll {
	if required < 1 {
		required = 1
	}
	return &Poll{required: required, maxPolls: maxPolls}
}

// Observe records a count and returns the resulting state.
func (p *Poll) Observe(count int) Outcome {
	if p.state != Pending {
		return p.state
	}
	p.polls++
	if p.streak > 0 && count == p.last {
		p.streak++
	} else {
		p.streak = 1
		p.last = count
	}
	if p.streak >= p.required {
		p.state = Stable
		return p.state
	}
	return p.checkBudget()
}

// Miss records a poll whose measurement failed. It breaks the streak and
// still consumes budget.
func (p *Poll) Miss() Outcome {
	if p.state != Pending {
		return p.state
	}
	p.polls++
	p.streak = 0
	return p.checkBudget()
}

// Expire forces a pending poll to TimedOut.
func (p *Poll) Expire() Outcome {
	if p.state == Pending {
		p.state = TimedOut
	}
	return p.state
}

// State returns the current state.
func (p *Poll) State() Outcome { return p.state }

// Polls returns how many observations were made.
func (p *Poll) Polls() int { return p.polls }

// Last returns the most recent successfully observed count.
func (p *Poll) Last() int { return p.last }

func (p *Poll) checkBudget() Outcome {
	if p.maxPolls > 0 && p.polls >= p.maxPolls {
		p.state = TimedOut
	}
	return p.state
}

package submission

import "fmt"

// State is the last pipeline step a submission completed. States only move
// forward.
type State int

const (
	StateDraft State = iota
	StateRecordCreated
	StateRendered
	StatePersisted
	StateNotified
)

func (s State) String() string {
	switch s {
	case StateDraft:
		return "draft"
	case StateRecordCreated:
		return "record_created"
	case StateRendered:
		return "rendered"
	case StatePersisted:
		return "persisted"
	case StateNotified:
		return "notified"
	default:
		return "unknown"
	}
}

func (s *Submission) require(state State) error {
	if s.State != state {
		return fmt.Errorf("%w: expected %s, submission is %s", ErrInvalidTransition, state, s.State)
	}
	return nil
}

func (s *Submission) advance(to State) {
	if to > s.State {
		s.State = to
	}
}

package scheduling

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCanceled   Status = "CANCELED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusInProgress
}

// transitions is the single source of truth for status legality. COMPLETED
// and CANCELED are terminal. IN_PROGRESS may fall back to SCHEDULED when its
// consultation is deleted.
var transitions = map[Status]map[Status]bool{
	StatusScheduled:  {StatusInProgress: true, StatusCanceled: true},
	StatusInProgress: {StatusCompleted: true, StatusCanceled: true, StatusScheduled: true},
	StatusCompleted:  {},
	StatusCanceled:   {},
}

// CanTransition reports whether moving an appointment from one status to
// another is allowed.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

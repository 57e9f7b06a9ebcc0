package models

// Conversation states, in flow order.
const (
	StateAwaitingLanguage      = "awaiting_language"
	StateAwaitingPhone         = "awaiting_phone"
	StateAwaitingParentName    = "awaiting_parent_name"
	StateAwaitingChildrenCount = "awaiting_children_count"
	StateAwaitingChildAge      = "awaiting_child_age"
	StateAwaitingProgram       = "awaiting_program"
	StateQualified             = "qualified"
	StateAwaitingCampus        = "awaiting_campus"
	StateAwaitingDate          = "awaiting_date"
	StateAwaitingTime          = "awaiting_time"
	StateTourBooked            = "tour_booked"
)

var stateTransitions = map[string][]string{
	StateAwaitingLanguage:      {StateAwaitingPhone},
	StateAwaitingPhone:         {StateAwaitingParentName},
	StateAwaitingParentName:    {StateAwaitingChildrenCount},
	StateAwaitingChildrenCount: {StateAwaitingChildAge},
	StateAwaitingChildAge:      {StateAwaitingProgram},
	StateAwaitingProgram:       {StateQualified},
	StateQualified:             {StateAwaitingCampus},
	StateAwaitingCampus:        {StateAwaitingDate, StateQualified},
	StateAwaitingDate:          {StateAwaitingTime, StateAwaitingCampus, StateQualified},
	StateAwaitingTime:          {StateTourBooked, StateAwaitingDate, StateAwaitingCampus, StateQualified},
	StateTourBooked:            {StateAwaitingCampus, StateQualified},
}

// CanTransition reports whether the flow graph allows from -> to. Staying in
// the same state is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, s := range stateTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsKnownState reports whether s is a conversation state.
func IsKnownState(s string) bool {
	_, ok := stateTransitions[s]
	return ok
}

// IsRestingState reports states with no pending prompt, where free text is a
// note for the manager.
func IsRestingState(s string) bool {
	return s == StateQualified || s == StateTourBooked
}

// IsBookingFlowState reports states inside the tour booking flow.
func IsBookingFlowState(s string) bool {
	switch s {
	case StateAwaitingCampus, StateAwaitingDate, StateAwaitingTime:
		return true
	}
	return false
}

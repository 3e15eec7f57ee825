package auth

// Actor identifies the authenticated caller for every core operation.
// It is passed explicitly; the core never reads identity from ambient state.
type Actor struct {
	ID         string
	Role       Role
	StationIDs []string
}

// Action names an operation gated by the scoping guard.
type Action string

const (
	ActionRead            Action = "read"
	ActionCreateReading   Action = "reading.create"
	ActionDeleteReading   Action = "reading.delete"
	ActionSaveClosure     Action = "closure.save"
	ActionSubmitClosure   Action = "closure.submit"
	ActionReviewClosure   Action = "closure.review"
	ActionApplySettlement Action = "settlement.apply"
)

// minRole maps each action to the lowest role allowed to perform it.
var minRole = map[Action]Role{
	ActionRead:            RoleEmployee,
	ActionCreateReading:   RoleEmployee,
	ActionDeleteReading:   RoleEmployee,
	ActionSaveClosure:     RoleEmployee,
	ActionSubmitClosure:   RoleEmployee,
	ActionReviewClosure:   RoleManager,
	ActionApplySettlement: RoleManager,
}

// AssignedTo reports whether the actor is assigned to the station.
func (a Actor) AssignedTo(stationID string) bool {
	for _, id := range a.StationIDs {
		if id == stationID {
			return true
		}
	}
	return false
}

// Scope enforces station assignment and role rank for an action.
// Platform admins bypass station scoping. Violations return ErrForbidden,
// never a silently narrowed result; list endpoints narrow via FilterStations.
func Scope(actor Actor, stationID string, action Action) error {
	required, ok := minRole[action]
	if !ok {
		return ErrForbidden
	}
	if !RoleAtLeast(actor.Role, required) {
		return ErrForbidden
	}
	if actor.Role == RoleAdmin {
		return nil
	}
	if stationID == "" || !actor.AssignedTo(stationID) {
		return ErrForbidden
	}
	return nil
}

// FilterStations narrows requested station ids to the actor's assignments.
// An empty request means "all visible stations". Admins see everything, so
// an empty request stays empty (no filter).
func FilterStations(actor Actor, requested []string) []string {
	if actor.Role == RoleAdmin {
		return requested
	}
	if len(requested) == 0 {
		return append([]string(nil), actor.StationIDs...)
	}
	var visible []string
	for _, id := range requested {
		if actor.AssignedTo(id) {
			visible = append(visible, id)
		}
	}
	return visible
}

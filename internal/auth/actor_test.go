package auth

import (
	"errors"
	"reflect"
	"testing"
)

func TestScopeStationAssignment(t *testing.T) {
	actor := Actor{ID: "emp-1", Role: RoleEmployee, StationIDs: []string{"station-1"}}

	if err := Scope(actor, "station-1", ActionCreateReading); err != nil {
		t.Errorf("assigned station rejected: %v", err)
	}
	if err := Scope(actor, "station-2", ActionCreateReading); !errors.Is(err, ErrForbidden) {
		t.Errorf("unassigned station = %v, want forbidden", err)
	}
	if err := Scope(actor, "", ActionCreateReading); !errors.Is(err, ErrForbidden) {
		t.Errorf("empty station = %v, want forbidden", err)
	}
}

func TestScopeRoleRank(t *testing.T) {
	employee := Actor{ID: "emp-1", Role: RoleEmployee, StationIDs: []string{"station-1"}}
	manager := Actor{ID: "mgr-1", Role: RoleManager, StationIDs: []string{"station-1"}}
	owner := Actor{ID: "own-1", Role: RoleOwner, StationIDs: []string{"station-1"}}

	if err := Scope(employee, "station-1", ActionReviewClosure); !errors.Is(err, ErrForbidden) {
		t.Errorf("employee review = %v, want forbidden", err)
	}
	if err := Scope(employee, "station-1", ActionApplySettlement); !errors.Is(err, ErrForbidden) {
		t.Errorf("employee settlement = %v, want forbidden", err)
	}
	if err := Scope(manager, "station-1", ActionReviewClosure); err != nil {
		t.Errorf("manager review rejected: %v", err)
	}
	if err := Scope(owner, "station-1", ActionApplySettlement); err != nil {
		t.Errorf("owner settlement rejected: %v", err)
	}
}

func TestScopeAdminBypassesStations(t *testing.T) {
	admin := Actor{ID: "adm-1", Role: RoleAdmin}

	if err := Scope(admin, "station-77", ActionReviewClosure); err != nil {
		t.Errorf("admin scoped out of station-77: %v", err)
	}
	if err := Scope(admin, "", ActionRead); err != nil {
		t.Errorf("admin read without station rejected: %v", err)
	}
}

func TestScopeUnknownAction(t *testing.T) {
	admin := Actor{ID: "adm-1", Role: RoleAdmin}
	if err := Scope(admin, "station-1", Action("bogus")); !errors.Is(err, ErrForbidden) {
		t.Errorf("unknown action = %v, want forbidden", err)
	}
}

func TestFilterStations(t *testing.T) {
	actor := Actor{ID: "emp-1", Role: RoleEmployee, StationIDs: []string{"station-1", "station-2"}}

	got := FilterStations(actor, []string{"station-2", "station-9"})
	if !reflect.DeepEqual(got, []string{"station-2"}) {
		t.Errorf("filtered = %v, want [station-2]", got)
	}

	// Empty request expands to assignments.
	got = FilterStations(actor, nil)
	if !reflect.DeepEqual(got, []string{"station-1", "station-2"}) {
		t.Errorf("expanded = %v, want assignments", got)
	}

	// Admins pass requests through unchanged.
	admin := Actor{ID: "adm-1", Role: RoleAdmin}
	if got := FilterStations(admin, nil); got != nil {
		t.Errorf("admin empty request = %v, want nil (no filter)", got)
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleAtLeast(RoleOwner, RoleManager) {
		t.Error("owner should satisfy manager")
	}
	if RoleAtLeast(RoleEmployee, RoleManager) {
		t.Error("employee should not satisfy manager")
	}
	if RoleAtLeast(Role("bogus"), RoleEmployee) {
		t.Error("unknown role should rank below employee")
	}
}

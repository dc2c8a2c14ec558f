package contract

import "testing"

func TestAssertSingleWorkforceAssignment(t *testing.T) {
	tests := []struct {
		name    string
		teamID  string
		userID  string
		wantErr bool
	}{
		{"team only", "team-1", "", false},
		{"user only", "", "user-1", false},
		{"neither", "", "", false},
		{"both", "team-1", "user-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AssertSingleWorkforceAssignment(tt.teamID, tt.userID)
			if (err != nil) != tt.wantErr {
				t.Errorf("AssertSingleWorkforceAssignment(%q, %q) error = %v, wantErr %v",
					tt.teamID, tt.userID, err, tt.wantErr)
			}
		})
	}
}

func TestResolveAssignment(t *testing.T) {
	contractWithTeam := &Contract{AssignedTeamID: "team-default"}
	contractWithUser := &Contract{AssignedToUserID: "user-default", AssignedTeamID: ""}
	unassigned := &Contract{}

	tests := []struct {
		name     string
		override WorkforceAssignment
		contract *Contract
		want     WorkforceAssignment
	}{
		{
			name:     "explicit user clears team",
			override: WorkforceAssignment{TeamID: "team-x", UserID: "user-x"},
			contract: contractWithTeam,
			want:     WorkforceAssignment{UserID: "user-x"},
		},
		{
			name:     "explicit team applies without user",
			override: WorkforceAssignment{TeamID: "team-x"},
			contract: contractWithUser,
			want:     WorkforceAssignment{TeamID: "team-x"},
		},
		{
			name:     "contract user default",
			override: WorkforceAssignment{},
			contract: contractWithUser,
			want:     WorkforceAssignment{UserID: "user-default"},
		},
		{
			name:     "contract team default",
			override: WorkforceAssignment{},
			contract: contractWithTeam,
			want:     WorkforceAssignment{TeamID: "team-default"},
		},
		{
			name:     "nobody",
			override: WorkforceAssignment{},
			contract: unassigned,
			want:     WorkforceAssignment{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveAssignment(tt.override, tt.contract)
			if got != tt.want {
				t.Errorf("ResolveAssignment = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUserRole_CanOverrideServiceWindow(t *testing.T) {
	for _, role := range []UserRole{RoleOwner, RoleAdmin, RoleManager} {
		if !role.CanOverrideServiceWindow() {
			t.Errorf("Expected %s to allow service-window override", role)
		}
	}
	if RoleStaff.CanOverrideServiceWindow() {
		t.Error("Expected staff role to be denied service-window override")
	}
}

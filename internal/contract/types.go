// Package contract holds the CRM-side entities the scheduling engine reads:
// contracts, the facilities they service, and platform users.
package contract

import (
	"fmt"
	"time"
)

// ContractStatus represents the lifecycle state of a contract
type ContractStatus string

const (
	// StatusDraft indicates the contract has not been activated yet
	StatusDraft ContractStatus = "draft"
	// StatusActive indicates the contract is in force and serviceable
	StatusActive ContractStatus = "active"
	// StatusExpired indicates the contract's end date has passed
	StatusExpired ContractStatus = "expired"
	// StatusTerminated indicates the contract was ended early
	StatusTerminated ContractStatus = "terminated"
)

// Service frequency vocabulary. This is a fixed set, not a generic RRULE
// engine: Nx_week for N in 2..7 plus the named cadences below.
const (
	FrequencyDaily     = "daily"
	FrequencyWeekly    = "weekly"
	FrequencyBiweekly  = "biweekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
)

// Contract is a commercial-cleaning service agreement. The scheduling engine
// consumes it read-only: its frequency, raw schedule payload and facility
// drive job generation and window enforcement.
type Contract struct {
	ID             string         `json:"id"`
	ContractNumber string         `json:"contract_number"`
	AccountID      string         `json:"account_id"`
	FacilityID     string         `json:"facility_id"`
	Status         ContractStatus `json:"status"`
	// ServiceFrequency is one of the frequency vocabulary keys
	ServiceFrequency string `json:"service_frequency"`
	// ServiceSchedule is the raw stored schedule JSON; shape varies across
	// record vintages and is normalized by the schedule package
	ServiceSchedule []byte     `json:"service_schedule,omitempty"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	// AssignedTeamID and AssignedToUserID are mutually exclusive
	AssignedTeamID   string    `json:"assigned_team_id,omitempty"`
	AssignedToUserID string    `json:"assigned_to_user_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasAssignee reports whether the contract carries a team or individual assignee
func (c *Contract) HasAssignee() bool {
	return c.AssignedTeamID != "" || c.AssignedToUserID != ""
}

// Facility is a serviced location. Address is an opaque JSON payload that may
// carry the facility's IANA timezone under several legacy key spellings.
type Facility struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Address   []byte    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserRole represents a platform user's role
type UserRole string

const (
	RoleOwner   UserRole = "owner"
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleStaff   UserRole = "staff"
)

// CanOverrideServiceWindow reports whether the role may bypass service-window
// enforcement (a justification is still required alongside the role)
func (r UserRole) CanOverrideServiceWindow() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleManager
}

// User is a platform user. The auto-regeneration sweep needs at least one
// active user to attribute system-generated jobs to.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkforceAssignment selects either a team or an individual user to carry
// out work, never both
type WorkforceAssignment struct {
	TeamID string `json:"team_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// IsZero reports whether the assignment selects nobody
func (a WorkforceAssignment) IsZero() bool {
	return a.TeamID == "" && a.UserID == ""
}

// AssertSingleWorkforceAssignment rejects input specifying both a team and an
// individual user
func AssertSingleWorkforceAssignment(teamID, userID string) error {
	if teamID != "" && userID != "" {
		return fmt.Errorf("assignment cannot specify both a team and an individual user")
	}
	return nil
}

// ResolveAssignment applies the assignment precedence rules: an explicit
// individual assignee wins and clears any team; an explicit team applies only
// when no individual is given; otherwise the contract's own assignment is
// used, with the same individual-over-team rule.
func ResolveAssignment(override WorkforceAssignment, c *Contract) WorkforceAssignment {
	if override.UserID != "" {
		return WorkforceAssignment{UserID: override.UserID}
	}
	if override.TeamID != "" {
		return WorkforceAssignment{TeamID: override.TeamID}
	}
	if c.AssignedToUserID != "" {
		return WorkforceAssignment{UserID: c.AssignedToUserID}
	}
	if c.AssignedTeamID != "" {
		return WorkforceAssignment{TeamID: c.AssignedTeamID}
	}
	return WorkforceAssignment{}
}

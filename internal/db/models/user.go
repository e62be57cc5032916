package models

import (
	"gorm.io/datatypes"
)

// Role names referenced by the workflow definition.
const (
	RoleActionOfficer = "ACTION_OFFICER"
	RolePCM           = "PCM"
	RoleCoordinator   = "COORDINATOR"
	RoleSubReviewer   = "SUB_REVIEWER"
	RoleOPR           = "OPR"
	RoleOPRLeadership = "OPR_LEADERSHIP"
	RoleLeadership    = "LEADERSHIP"
	RoleLegal         = "LEGAL"
	RoleLegalReviewer = "LEGAL_REVIEWER"
	RoleAFDPO         = "AFDPO"
	RoleAdmin         = "ADMIN"
)

// WorkflowRoles is the full role catalogue seeded for a new organization.
var WorkflowRoles = []string{
	RoleActionOfficer, RolePCM, RoleCoordinator, RoleSubReviewer, RoleOPR,
	RoleOPRLeadership, RoleLeadership, RoleLegal, RoleLegalReviewer, RoleAFDPO, RoleAdmin,
}

type Organization struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"`
	Description string `json:"description,omitempty"`
}

type Role struct {
	Base
	Name           string                      `gorm:"not null;uniqueIndex:idx_role_org_name" json:"name"`
	Permissions    datatypes.JSONSlice[string] `json:"permissions"`
	OrganizationID string                      `gorm:"type:varchar(36);uniqueIndex:idx_role_org_name" json:"organizationId"`
}

type User struct {
	Base
	Email          string        `gorm:"uniqueIndex;not null" json:"email"`
	FirstName      string        `json:"firstName"`
	LastName       string        `json:"lastName"`
	RoleID         string        `gorm:"type:varchar(36);index" json:"roleId"`
	Role           *Role         `json:"role,omitempty"`
	OrganizationID string        `gorm:"type:varchar(36);index" json:"organizationId"`
	Organization   *Organization `json:"organization,omitempty"`
	Active         bool          `gorm:"not null;default:true" json:"active"`
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// RoleName is empty when the role was not preloaded.
func (u *User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

func (u *User) IsAdmin() bool {
	return u.RoleName() == RoleAdmin
}

package domain

// SubjectType differentiates token subjects.
type SubjectType string

const (
	SubjectTypeStaff     SubjectType = "STAFF"
	SubjectTypeService   SubjectType = "SERVICE"
	SubjectTypeAnonymous SubjectType = "ANONYMOUS"
)

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent    StaffRole = "AGENT"
	StaffRoleTeamLead StaffRole = "TEAM_LEAD"
	StaffRoleAdmin    StaffRole = "ADMIN"
)

package group

import (
	"time"

	"github.com/trezcool/trackit/core"
)

type Group struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Semester    string    `json:"semester" db:"semester"`
	Description string    `json:"description" db:"description"`
	JoinCode    string    `json:"join_code" db:"join_code"`
	CreatedBy   string    `json:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type Membership struct {
	GroupID      string    `json:"group_id" db:"group_id"`
	StudentEmail string    `json:"student_email" db:"student_email"`
	JoinedAt     time.Time `json:"joined_at" db:"joined_at"` // UTC
}

// Member is a Membership enriched with the student's account.
type Member struct {
	Membership
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	SAPID     string `json:"sap_id,omitempty"`
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name         string   `json:"name" validate:"required"`
	Semester     string   `json:"semester" validate:"required"`
	Description  string   `json:"description"`
	MemberEmails []string `json:"member_emails" validate:"omitempty,dive,email"`
}

func (ng *NewGroup) Clean() {
	ng.Name = core.CleanString(ng.Name)
	ng.Semester = core.CleanString(ng.Semester)
	ng.Description = core.CleanString(ng.Description)
	ng.MemberEmails = core.CleanEmails(ng.MemberEmails)
}

// UpdateGroup defines what information may be provided to modify an existing Group.
// Empty fields keep their current value.
type UpdateGroup struct {
	Name        string  `json:"name"`
	Semester    string  `json:"semester"`
	Description *string `json:"description"`
}

type AddMode string

const (
	// AddDirect inserts memberships right away.
	AddDirect AddMode = "direct"
	// AddInvite mails the join code; students redeem it themselves.
	AddInvite AddMode = "invite"
)

type AddMembers struct {
	Emails []string `json:"emails" validate:"required,min=1,dive,email"`
	Mode   AddMode  `json:"mode" validate:"omitempty,oneof=direct invite"`
}

type MemberStatus string

const (
	MemberAdded   MemberStatus = "added"
	MemberInvited MemberStatus = "invited"
)

type MemberResult struct {
	Email  string       `json:"email"`
	Status MemberStatus `json:"status"`
}

type GetFilter struct {
	ID       string
	JoinCode string
}

type QueryFilter struct {
	CreatedBy string
	IDs       []string
}

type MembershipFilter struct {
	GroupID string
	Emails  []string
}

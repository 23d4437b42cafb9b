package notice

import (
	"time"

	"github.com/trezcool/trackit/core"
)

type Type string

const (
	TypeInfo      Type = "info"
	TypeImportant Type = "important"
	TypeUrgent    Type = "urgent"
)

func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeImportant, TypeUrgent:
		return true
	}
	return false
}

// Notice is an announcement. A nil GroupID makes it global.
type Notice struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      Type      `json:"type"`
	GroupID   *string   `json:"group_id"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (n Notice) IsGlobal() bool { return n.GroupID == nil }

type NewNotice struct {
	Title   string  `json:"title" validate:"required"`
	Content string  `json:"content" validate:"required"`
	Type    Type    `json:"type" validate:"omitempty,oneof=info important urgent"`
	GroupID *string `json:"group_id"`
}

func (nn *NewNotice) Clean() {
	nn.Title = core.CleanString(nn.Title)
	nn.Content = core.CleanString(nn.Content)
	if nn.Type == "" {
		nn.Type = TypeInfo
	}
	if nn.GroupID != nil {
		if id := core.CleanString(*nn.GroupID); id != "" {
			nn.GroupID = &id
		} else {
			nn.GroupID = nil
		}
	}
}

// QueryFilter matches notices satisfying any of its criteria; an empty filter matches every notice.
type QueryFilter struct {
	Global    bool     // global notices
	GroupIDs  []string // notices of these groups
	CreatedBy string   // notices posted by this account
}

func (qf QueryFilter) IsEmpty() bool {
	return !qf.Global && len(qf.GroupIDs) == 0 && qf.CreatedBy == ""
}

// Match reports whether n satisfies qf.
func (qf QueryFilter) Match(n Notice) bool {
	if qf.IsEmpty() {
		return true
	}
	if qf.Global && n.GroupID == nil {
		return true
	}
	if qf.CreatedBy != "" && n.CreatedBy == qf.CreatedBy {
		return true
	}
	if n.GroupID != nil {
		for _, id := range qf.GroupIDs {
			if *n.GroupID == id {
				return true
			}
		}
	}
	return false
}

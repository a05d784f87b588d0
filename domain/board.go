package domain

import "time"

// Role is the access level granted to a non-owner board member.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// ValidRole reports whether r is one of the accepted member roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// CanEdit reports whether the role allows structural board mutations.
func (r Role) CanEdit() bool {
	return r == RoleEditor || r == RoleAdmin
}

// Task is a single card inside a list. Its ID is minted by whichever side
// created it and is never regenerated on read.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// List is an ordered column of tasks. Same ID contract as Task.
type List struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// Member is a role-scoped, non-owning grant on a board.
type Member struct {
	User     string    `json:"user"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Board is the shareable unit. Lists are embedded, not referenced, and are
// replaced wholesale by the mutation endpoint. Version is the optimistic
// concurrency token incremented on every lists replace.
type Board struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Workspace   string    `json:"workspaceId"`
	Owner       string    `json:"ownerId"`
	Lists       []List    `json:"lists"`
	Members     []Member  `json:"members"`
	Favorite    bool      `json:"favorite,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MemberRole returns the role granted to userID and whether such a grant
// exists. The board owner is not part of Members.
func (b *Board) MemberRole(userID string) (Role, bool) {
	for _, m := range b.Members {
		if m.User == userID {
			return m.Role, true
		}
	}
	return "", false
}

// CanView reports whether userID may read the board.
func (b *Board) CanView(userID string) bool {
	if b.Owner == userID {
		return true
	}
	_, ok := b.MemberRole(userID)
	return ok
}

// CanManage reports whether userID may change board metadata. Only the
// owner and admin members qualify.
func (b *Board) CanManage(userID string) bool {
	if b.Owner == userID {
		return true
	}
	role, ok := b.MemberRole(userID)
	return ok && role == RoleAdmin
}

// CanEditLists reports whether userID may replace the board's lists.
// Viewers hold read-only grants.
func (b *Board) CanEditLists(userID string) bool {
	if b.Owner == userID {
		return true
	}
	role, ok := b.MemberRole(userID)
	return ok && role.CanEdit()
}

// BoardSummary is the listing shape returned for workspace views.
type BoardSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Summary projects the board to its listing shape.
func (b *Board) Summary() BoardSummary {
	return BoardSummary{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		CoverImage:  b.CoverImage,
		UpdatedAt:   b.UpdatedAt,
	}
}

// NormalizeLists replaces nil task slices so lists round-trip as JSON arrays
// rather than null. IDs and ordering are left untouched.
func NormalizeLists(lists []List) []List {
	if lists == nil {
		return []List{}
	}
	for i := range lists {
		if lists[i].Tasks == nil {
			lists[i].Tasks = []Task{}
		}
	}
	return lists
}

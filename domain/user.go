package domain

import (
	"regexp"
	"sort"
	"time"
)

var emailRegexp = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return s != "" && emailRegexp.MatchString(s)
}

// Identity is the verified caller extracted from the bearer token by the
// upstream auth gate. The service never issues tokens itself.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// BoardGrant mirrors a board membership on the grantee's side. Both sides of
// a share are written together; a one-sided grant is an error state.
type BoardGrant struct {
	Board string `json:"board"`
	Role  Role   `json:"role"`
}

// User is the persisted profile document. Friendship is a denormalized
// symmetric set of emails; Boards holds owned board IDs.
type User struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Email            string       `json:"email"`
	DefaultWorkspace string       `json:"defaultWorkspaceId,omitempty"`
	Boards           []string     `json:"boards,omitempty"`
	Friends          []string     `json:"friends,omitempty"`
	SharedBoards     []BoardGrant `json:"sharedBoards,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// Profile is the public projection of a user.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Profile returns the user's public projection.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email}
}

// HasFriend reports whether email is in the user's friend set.
func (u *User) HasFriend(email string) bool {
	for _, f := range u.Friends {
		if f == email {
			return true
		}
	}
	return false
}

// AddFriend inserts email into the friend set. Idempotent.
func (u *User) AddFriend(email string) {
	if u.HasFriend(email) {
		return
	}
	u.Friends = append(u.Friends, email)
}

// RemoveFriend drops email from the friend set. No-op when absent.
func (u *User) RemoveFriend(email string) {
	for i, f := range u.Friends {
		if f == email {
			u.Friends = append(u.Friends[:i], u.Friends[i+1:]...)
			return
		}
	}
}

// HasGrant reports whether the user already mirrors a grant for boardID.
func (u *User) HasGrant(boardID string) bool {
	for _, g := range u.SharedBoards {
		if g.Board == boardID {
			return true
		}
	}
	return false
}

// AccessibleBoardIDs returns the IDs of all boards the user owns or is a
// member of, sorted so the result is independent of iteration order.
func (u *User) AccessibleBoardIDs() []string {
	seen := make(map[string]struct{}, len(u.Boards)+len(u.SharedBoards))
	ids := make([]string, 0, len(u.Boards)+len(u.SharedBoards))
	for _, id := range u.Boards {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, g := range u.SharedBoards {
		if _, ok := seen[g.Board]; ok {
			continue
		}
		seen[g.Board] = struct{}{}
		ids = append(ids, g.Board)
	}
	sort.Strings(ids)
	return ids
}

// IntersectBoardIDs computes the sorted intersection of two board ID sets.
// Symmetric in its arguments.
func IntersectBoardIDs(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	out := make([]string, 0)
	for _, id := range b {
		if _, ok := set[id]; ok {
			out = append(out, id)
			delete(set, id)
		}
	}
	sort.Strings(out)
	return out
}

// Workspace is the per-user namespace owning boards. One is lazily created
// per user on first access.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"ownerId"`
	Boards    []string  `json:"boards"`
	CreatedAt time.Time `json:"createdAt"`
}

// Friend request lifecycle states. Accepted rows are kept so the history of
// a pair survives, only pending ones block a resend.
const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
)

// FriendRequest tracks a pending or accepted invitation between two emails.
type FriendRequest struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// SharedBoard is the denormalized shape returned when listing grants for a
// user: the board summary joined with the grant role and the owner profile.
type SharedBoard struct {
	Board BoardSummary `json:"board"`
	Role  Role         `json:"role"`
	Owner Profile      `json:"owner"`
}

// ShareResult is the outcome of a completed share: the updated board plus the
// resolved grantee, so callers can notify without a second lookup.
type ShareResult struct {
	Board   Board   `json:"board"`
	Grantee Profile `json:"grantee"`
}

package entity

import "github.com/google/uuid"

// Role is the coarse permission level of a caller.
type Role string

const (
	RoleRequestor Role = "requestor"
	RoleFinance   Role = "finance"
	RoleAdmin     Role = "admin"
)

// Elevated returns true for roles that may decide approvals and remove
// drafts they do not own.
func (r Role) Elevated() bool {
	return r == RoleFinance || r == RoleAdmin
}

// Actor identifies the user an operation is performed on behalf of. It is
// passed explicitly into every mutating call; the engine holds no ambient
// session state.
type Actor struct {
	UserID uuid.UUID
	Name   string
	Role   Role
}

// CanDelete returns true if the actor may delete the given draft: its
// requestor, or any elevated role. Status is checked separately by the
// lifecycle rules.
func (a Actor) CanDelete(r *Request) bool {
	return a.UserID == r.RequestorID || a.Role.Elevated()
}

// CanDecide returns true if the actor may approve or reject a pending
// request.
func (a Actor) CanDecide() bool {
	return a.Role.Elevated()
}

// Package policy decides whether an identity may perform an action on
// notes. Decide is pure: it reads nothing but its arguments.
package policy

import (
	"fmt"

	"example.com/coursenotes/internal/identity"
)

type Action int

const (
	ReadAll Action = iota
	ReadStats
	ReadByUser
	ReadByCourse
	ReadOne
	Create
	Update
	Delete
)

func (a Action) String() string {
	switch a {
	case ReadAll:
		return "read_all"
	case ReadStats:
		return "read_stats"
	case ReadByUser:
		return "read_by_user"
	case ReadByCourse:
		return "read_by_course"
	case ReadOne:
		return "read_one"
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the outcome of a policy check. Reason is set on denial.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return "deny: " + d.Reason
}

// Decide evaluates action for who. ownerID is the target user for
// ReadByUser and the note owner for ReadOne, Update and Delete; other
// actions ignore it.
func Decide(who identity.Identity, action Action, ownerID int64) Decision {
	var admin bool
	switch who.Role {
	case identity.RoleAdmin:
		admin = true
	case identity.RoleStudent:
		admin = false
	default:
		return deny(fmt.Sprintf("unknown role %q", who.Role))
	}
	owner := who.ID == ownerID

	switch action {
	case ReadAll:
		if admin {
			return allow()
		}
		return deny("only administrators can list all notes")
	case ReadStats:
		if admin {
			return allow()
		}
		return deny("only administrators can view note statistics")
	case ReadByUser:
		if admin || owner {
			return allow()
		}
		return deny("you can only list your own notes")
	case ReadByCourse, Create:
		return allow()
	case ReadOne:
		if admin || owner {
			return allow()
		}
		return deny("you can only view your own notes")
	case Update:
		// owner only; administrators get no override here
		if owner {
			return allow()
		}
		return deny("you can only update your own notes")
	case Delete:
		if owner {
			return allow()
		}
		return deny("you can only delete your own notes")
	default:
		return deny(fmt.Sprintf("unknown action %s", action))
	}
}

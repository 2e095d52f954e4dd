package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/coursenotes/internal/identity"
)

func TestDecide_Table(t *testing.T) {
	student := identity.Identity{ID: 1, Role: identity.RoleStudent}
	other := identity.Identity{ID: 2, Role: identity.RoleStudent}
	admin := identity.Identity{ID: 99, Role: identity.RoleAdmin}

	tests := []struct {
		name    string
		who     identity.Identity
		action  Action
		owner   int64
		allowed bool
	}{
		{"admin lists all", admin, ReadAll, 0, true},
		{"student lists all", student, ReadAll, 0, false},
		{"admin stats", admin, ReadStats, 0, true},
		{"student stats", student, ReadStats, 0, false},
		{"student own user list", student, ReadByUser, 1, true},
		{"student other user list", student, ReadByUser, 2, false},
		{"admin any user list", admin, ReadByUser, 2, true},
		{"student course list", student, ReadByCourse, 0, true},
		{"admin course list", admin, ReadByCourse, 0, true},
		{"owner reads one", student, ReadOne, 1, true},
		{"stranger reads one", other, ReadOne, 1, false},
		{"admin reads one", admin, ReadOne, 1, true},
		{"student creates", student, Create, 0, true},
		{"owner updates", student, Update, 1, true},
		{"stranger updates", other, Update, 1, false},
		{"admin updates someone else", admin, Update, 1, false},
		{"owner deletes", student, Delete, 1, true},
		{"stranger deletes", other, Delete, 1, false},
		{"admin deletes someone else", admin, Delete, 1, false},
		{"unknown action", admin, Action(42), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.who, tt.action, tt.owner)
			require.Equal(t, tt.allowed, d.Allowed, d.String())
			if !tt.allowed {
				require.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestDecide_UnknownRoleDeniesEverything(t *testing.T) {
	who := identity.Identity{ID: 1, Role: identity.Role("ADMINISTRATOR")}
	for _, a := range []Action{ReadAll, ReadStats, ReadByUser, ReadByCourse, ReadOne, Create, Update, Delete} {
		d := Decide(who, a, 1)
		require.False(t, d.Allowed, a.String())
		require.Contains(t, d.Reason, "unknown role")
	}
}

func TestDecide_UsesEffectiveRoleOnly(t *testing.T) {
	demoted := identity.Identity{ID: 5, Role: identity.RoleStudent, TokenRole: identity.RoleAdmin}
	require.False(t, Decide(demoted, ReadAll, 0).Allowed)

	promoted := identity.Identity{ID: 5, Role: identity.RoleAdmin, TokenRole: identity.RoleStudent}
	require.True(t, Decide(promoted, ReadAll, 0).Allowed)
}

func TestDecisionString(t *testing.T) {
	require.Equal(t, "allow", allow().String())
	require.Equal(t, "deny: nope", deny("nope").String())
	require.Equal(t, "update", Update.String())
	require.Equal(t, "action(42)", Action(42).String())
}

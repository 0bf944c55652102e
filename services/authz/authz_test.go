package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectFromRole(t *testing.T) {
	assert.Equal(t, "role:admin", SubjectFromRole("admin:"))
	assert.Equal(t, "role:admin:owner", SubjectFromRole("admin:owner"))
	assert.Equal(t, "role:staff", SubjectFromRole(" Staff: "))
	assert.Equal(t, "role:anonymous", SubjectFromRole(""))
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{"": ModeEnforce, "ENFORCE": ModeEnforce, "shadow": ModeShadow, "disabled": ModeDisabled} {
		mode, err := ParseMode(raw)
		require.NoError(t, err)
		assert.Equal(t, want, mode)
	}
	_, err := ParseMode("lax")
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	az, err := NewAuthorizer(ModeEnforce)
	require.NoError(t, err)

	tests := []struct {
		name    string
		roles   []string
		object  string
		action  string
		allowed bool
	}{
		{"admin can do anything", []string{"admin:"}, "departments", ActionDelete, true},
		{"owner inherits admin", []string{"admin:owner"}, "users", ActionCreate, true},
		{"storekeeper manages items", []string{"storekeeper:"}, "items", ActionCreate, true},
		{"storekeeper reviews requests", []string{"storekeeper:"}, "dead-stock-requests", ActionReview, true},
		{"storekeeper reads dead stock", []string{"storekeeper:"}, "dead-stocks", ActionRead, true},
		{"storekeeper cannot declare dead stock", []string{"storekeeper:"}, "dead-stocks", ActionCreate, false},
		{"storekeeper cannot edit departments", []string{"storekeeper:"}, "departments", ActionUpdate, false},
		{"staff reads items", []string{"staff:"}, "items", ActionRead, true},
		{"staff creates stock-in requests", []string{"staff:"}, "stock-in-requests", ActionCreate, true},
		{"staff cannot review requests", []string{"staff:"}, "stock-in-requests", ActionReview, false},
		{"staff cannot issue stock", []string{"staff:"}, "stock-outs", ActionCreate, false},
		{"any role grants", []string{"staff:", "storekeeper:"}, "stock-outs", ActionCreate, true},
		{"no role", nil, "items", ActionRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, enforced, err := az.Authorize(tt.roles, tt.object, tt.action)
			require.NoError(t, err)
			assert.True(t, enforced)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestAuthorize_Modes(t *testing.T) {
	shadow, err := NewAuthorizer(ModeShadow)
	require.NoError(t, err)
	allowed, enforced, err := shadow.Authorize([]string{"staff:"}, "stock-outs", ActionCreate)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.False(t, enforced)

	disabled, err := NewAuthorizer(ModeDisabled)
	require.NoError(t, err)
	allowed, enforced, err = disabled.Authorize(nil, "users", ActionDelete)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.False(t, enforced)
}

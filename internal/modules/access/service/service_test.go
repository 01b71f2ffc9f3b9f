package service

import (
	"context"
	"errors"
	"testing"

	"chimu.app/backend/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccessRepo struct {
	roles     map[uuid.UUID]map[uuid.UUID][]string // class -> user -> roles
	teamClass map[uuid.UUID]uuid.UUID
	members   map[uuid.UUID][]uuid.UUID

	rolesErr   error
	teamErr    error
	membersErr error
}

func (f *fakeAccessRepo) RolesInClass(_ context.Context, userID, classID uuid.UUID) ([]string, error) {
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	return f.roles[classID][userID], nil
}

func (f *fakeAccessRepo) TeamClassID(_ context.Context, teamID uuid.UUID) (uuid.UUID, error) {
	if f.teamErr != nil {
		return uuid.Nil, f.teamErr
	}
	id, ok := f.teamClass[teamID]
	if !ok {
		return uuid.Nil, errors.New("record not found")
	}
	return id, nil
}

func (f *fakeAccessRepo) IsTeamMember(_ context.Context, userID, teamID uuid.UUID) (bool, error) {
	if f.membersErr != nil {
		return false, f.membersErr
	}
	for _, m := range f.members[teamID] {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

func TestIsAuthorized(t *testing.T) {
	classID := uuid.New()
	instructor, ta, student, stranger := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	repo := &fakeAccessRepo{roles: map[uuid.UUID]map[uuid.UUID][]string{
		classID: {
			instructor: {entity.RoleInstructor},
			ta:         {entity.RoleTA},
			student:    {entity.RoleStudent},
		},
	}}
	c := NewChecker(repo)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    uuid.UUID
		allowed []string
		want    bool
	}{
		{"instructor as staff", instructor, entity.StaffRoles, true},
		{"ta as staff", ta, entity.StaffRoles, true},
		{"ta as instructor only", ta, []string{entity.RoleInstructor}, false},
		{"student as staff", student, entity.StaffRoles, false},
		{"student as student", student, []string{entity.RoleStudent}, true},
		{"no role at all", stranger, []string{entity.RoleStudent, entity.RoleInstructor, entity.RoleTA}, false},
		{"empty allowed set", instructor, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsAuthorized(ctx, tt.user, classID, tt.allowed...))
		})
	}
}

func TestIsAuthorizedFailsClosed(t *testing.T) {
	c := NewChecker(&fakeAccessRepo{rolesErr: errors.New("connection reset")})

	assert.False(t, c.IsAuthorized(context.Background(), uuid.New(), uuid.New(), entity.RoleInstructor))
}

func TestIsTeamAuthorized(t *testing.T) {
	classID, teamID := uuid.New(), uuid.New()
	member, ta, otherStudent := uuid.New(), uuid.New(), uuid.New()

	repo := &fakeAccessRepo{
		roles: map[uuid.UUID]map[uuid.UUID][]string{
			classID: {
				member:       {entity.RoleStudent},
				ta:           {entity.RoleTA},
				otherStudent: {entity.RoleStudent},
			},
		},
		teamClass: map[uuid.UUID]uuid.UUID{teamID: classID},
		members:   map[uuid.UUID][]uuid.UUID{teamID: {member}},
	}
	c := NewChecker(repo)
	ctx := context.Background()

	assert.True(t, c.IsTeamAuthorized(ctx, member, teamID))
	assert.True(t, c.IsTeamAuthorized(ctx, ta, teamID))
	assert.False(t, c.IsTeamAuthorized(ctx, otherStudent, teamID))
	assert.False(t, c.IsTeamAuthorized(ctx, ta, uuid.New()), "unknown team")
}

func TestIsTeamAuthorizedFailsClosed(t *testing.T) {
	classID, teamID, ta := uuid.New(), uuid.New(), uuid.New()
	roles := map[uuid.UUID]map[uuid.UUID][]string{classID: {ta: {entity.RoleTA}}}

	t.Run("membership read error", func(t *testing.T) {
		c := NewChecker(&fakeAccessRepo{roles: roles, teamClass: map[uuid.UUID]uuid.UUID{teamID: classID}, membersErr: errors.New("timeout")})
		assert.False(t, c.IsTeamAuthorized(context.Background(), ta, teamID))
	})

	t.Run("team read error", func(t *testing.T) {
		c := NewChecker(&fakeAccessRepo{roles: roles, teamErr: errors.New("timeout")})
		assert.False(t, c.IsTeamAuthorized(context.Background(), ta, teamID))
	})
}

func TestRoles(t *testing.T) {
	classID, user := uuid.New(), uuid.New()
	c := NewChecker(&fakeAccessRepo{roles: map[uuid.UUID]map[uuid.UUID][]string{classID: {user: {entity.RoleTA, entity.RoleStudent}}}})

	roles, err := c.Roles(context.Background(), user, classID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{entity.RoleTA, entity.RoleStudent}, roles)
}

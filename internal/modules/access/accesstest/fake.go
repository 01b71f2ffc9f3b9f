// Package accesstest provides an in-memory role checker for workflow tests.
package accesstest

import (
	"context"
	"slices"
	"sync"

	"chimu.app/backend/internal/entity"
	"github.com/google/uuid"
)

type Checker struct {
	mu        sync.Mutex
	roles     map[uuid.UUID]map[uuid.UUID][]string
	teamClass map[uuid.UUID]uuid.UUID
	members   map[uuid.UUID]map[uuid.UUID]bool
}

func New() *Checker {
	return &Checker{
		roles:     map[uuid.UUID]map[uuid.UUID][]string{},
		teamClass: map[uuid.UUID]uuid.UUID{},
		members:   map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

func (c *Checker) Grant(userID, classID uuid.UUID, role string) *Checker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roles[classID] == nil {
		c.roles[classID] = map[uuid.UUID][]string{}
	}
	c.roles[classID][userID] = append(c.roles[classID][userID], role)
	return c
}

func (c *Checker) AddTeam(teamID, classID uuid.UUID, memberIDs ...uuid.UUID) *Checker {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teamClass[teamID] = classID
	if c.members[teamID] == nil {
		c.members[teamID] = map[uuid.UUID]bool{}
	}
	for _, id := range memberIDs {
		c.members[teamID][id] = true
	}
	return c
}

func (c *Checker) IsAuthorized(_ context.Context, userID, classID uuid.UUID, allowedRoles ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, role := range c.roles[classID][userID] {
		if slices.Contains(allowedRoles, role) {
			return true
		}
	}
	return false
}

func (c *Checker) IsTeamAuthorized(ctx context.Context, userID, teamID uuid.UUID) bool {
	c.mu.Lock()
	isMember := c.members[teamID][userID]
	classID, ok := c.teamClass[teamID]
	c.mu.Unlock()

	if isMember {
		return true
	}
	return ok && c.IsAuthorized(ctx, userID, classID, entity.StaffRoles...)
}

func (c *Checker) Roles(_ context.Context, userID, classID uuid.UUID) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.roles[classID][userID]), nil
}

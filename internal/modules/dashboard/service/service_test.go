package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"chimu.app/backend/internal/entity"
	"chimu.app/backend/internal/modules/dashboard/dto"
	"chimu.app/backend/pkg/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	classes     []entity.Class
	enrollments []dto.Enrollment
	surveys     map[uuid.UUID]int64
	icebreakers map[uuid.UUID]int64
	agreements  map[uuid.UUID]int64
	calls       int
}

func (f *fakeRepo) InstructorClasses(context.Context, uuid.UUID) ([]entity.Class, error) {
	f.calls++
	return f.classes, nil
}

func (f *fakeRepo) StudentEnrollments(context.Context, uuid.UUID) ([]dto.Enrollment, error) {
	f.calls++
	return f.enrollments, nil
}

func (f *fakeRepo) PendingSurveyCounts(context.Context, uuid.UUID, []uuid.UUID, time.Time) (map[uuid.UUID]int64, error) {
	return f.surveys, nil
}

func (f *fakeRepo) PendingIcebreakerCounts(context.Context, uuid.UUID, []uuid.UUID) (map[uuid.UUID]int64, error) {
	return f.icebreakers, nil
}

func (f *fakeRepo) UnsignedAgreementCounts(context.Context, uuid.UUID, []uuid.UUID) (map[uuid.UUID]int64, error) {
	return f.agreements, nil
}

// memoryCache mimics the Redis cache, including the JSON round trip.
type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func (m *memoryCache) Get(_ context.Context, key string, dest any) bool {
	raw, ok := m.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) {
	raw, _ := json.Marshal(value)
	m.data[key] = raw
}

func (m *memoryCache) Invalidate(_ context.Context, keys ...string) {
	for _, k := range keys {
		delete(m.data, k)
	}
}

func TestInstructorDashboardFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{classes: []entity.Class{
		{ID: uuid.New(), Name: "Newer", ClassCode: "AAAA1111"},
		{ID: uuid.New(), Name: "Older", ClassCode: "BBBB2222", IsArchived: true},
	}}
	views := newMemoryCache()
	svc := NewDashboardService(repo, views)
	user := uuid.New()

	tests := []struct {
		status string
		want   []string
	}{
		{"", []string{"Newer"}},
		{"active", []string{"Newer"}},
		{"archived", []string{"Older"}},
		{"all", []string{"Newer", "Older"}},
	}
	for _, tt := range tests {
		t.Run("status "+tt.status, func(t *testing.T) {
			res, err := svc.InstructorDashboard(ctx, user, tt.status)
			require.NoError(t, err)
			var names []string
			for _, c := range res.Classes {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	assert.Equal(t, 1, repo.calls, "later filters are served from the cached view")

	views.Invalidate(ctx, cache.InstructorDashboardKey(user))
	_, err := svc.InstructorDashboard(ctx, user, "all")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestStudentDashboardPendingCounts(t *testing.T) {
	ctx := context.Background()
	classA, classB, classC := uuid.New(), uuid.New(), uuid.New()
	teamA := uuid.New()
	teamName := "Alpha"
	repo := &fakeRepo{
		enrollments: []dto.Enrollment{
			{ClassID: classA, Name: "CS101", TeamID: &teamA, TeamName: &teamName},
			{ClassID: classB, Name: "CS102"},
			{ClassID: classC, Name: "CS100", IsArchived: true},
		},
		surveys:     map[uuid.UUID]int64{classA: 1, classB: 2, classC: 5},
		icebreakers: map[uuid.UUID]int64{classA: 3},
		agreements:  map[uuid.UUID]int64{teamA: 1},
	}
	svc := NewDashboardService(repo, cache.New(nil))

	res, err := svc.StudentDashboard(ctx, uuid.New(), "")
	require.NoError(t, err)
	require.Len(t, res.Classes, 2)

	assert.Equal(t, "Alpha", res.Classes[0].Team.Name)
	assert.Equal(t, int64(1), res.Classes[0].PendingAgreements)
	assert.Nil(t, res.Classes[1].Team)
	assert.Equal(t, int64(3), res.TotalPendingSurveys)
	assert.Equal(t, int64(3), res.TotalPendingIcebreakers)
	assert.Equal(t, int64(1), res.TotalPendingAgreements)

	archived, err := svc.StudentDashboard(ctx, uuid.New(), "archived")
	require.NoError(t, err)
	require.Len(t, archived.Classes, 1)
	assert.Equal(t, int64(5), archived.TotalPendingSurveys)
}

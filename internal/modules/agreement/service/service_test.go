package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"chimu.app/backend/internal/entity"
	"chimu.app/backend/internal/modules/access/accesstest"
	"chimu.app/backend/internal/modules/agreement/dto"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	mu         sync.Mutex
	teams      map[uuid.UUID]uuid.UUID
	members    map[uuid.UUID][]uuid.UUID
	agreements map[uuid.UUID]*entity.TeamAgreement
	signatures []entity.AgreementSignature
	clock      time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		teams:      map[uuid.UUID]uuid.UUID{},
		members:    map[uuid.UUID][]uuid.UUID{},
		agreements: map[uuid.UUID]*entity.TeamAgreement{},
		clock:      time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeRepo) TeamClassID(_ context.Context, teamID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.teams[teamID]; ok {
		return id, nil
	}
	return uuid.Nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) MemberIDs(_ context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.members[teamID]...), nil
}

func (f *fakeRepo) withSignatures(a *entity.TeamAgreement) *entity.TeamAgreement {
	cp := *a
	cp.Signatures = nil
	for _, sig := range f.signatures {
		if sig.AgreementID == a.ID {
			cp.Signatures = append(cp.Signatures, sig)
		}
	}
	return &cp
}

func (f *fakeRepo) Latest(_ context.Context, teamID uuid.UUID) (*entity.TeamAgreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found []*entity.TeamAgreement
	for _, a := range f.agreements {
		if a.TeamID == teamID {
			found = append(found, a)
		}
	}
	if len(found) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedDate.After(found[j].CreatedDate) })
	return f.withSignatures(found[0]), nil
}

func (f *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.TeamAgreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.agreements[id]; ok {
		return f.withSignatures(a), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreateSigned(_ context.Context, a *entity.TeamAgreement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedDate = f.tick()
	a.UpdatedAt = a.CreatedDate
	cp := *a
	f.agreements[a.ID] = &cp
	f.signatures = append(f.signatures, entity.AgreementSignature{ID: uuid.New(), AgreementID: a.ID, UserID: a.CreatedBy, SignedDate: a.CreatedDate})
	return nil
}

func (f *fakeRepo) UpdateContent(_ context.Context, id uuid.UUID, content string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agreements[id]
	if !ok || a.IsLocked {
		return false, nil
	}
	a.Content = content
	a.UpdatedAt = f.tick()
	return true, nil
}

func (f *fakeRepo) Lock(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agreements[id]
	if !ok || a.IsLocked {
		return false, nil
	}
	a.IsLocked = true
	return true, nil
}

func (f *fakeRepo) HasSigned(_ context.Context, agreementID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sig := range f.signatures {
		if sig.AgreementID == agreementID && sig.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) CreateSignature(_ context.Context, sig *entity.AgreementSignature) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.signatures {
		if existing.AgreementID == sig.AgreementID && existing.UserID == sig.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	sig.ID = uuid.New()
	sig.SignedDate = f.tick()
	f.signatures = append(f.signatures, *sig)
	return nil
}

type recordingNotifier struct {
	sent []*entity.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, ns ...*entity.Notification) {
	r.sent = append(r.sent, ns...)
}

type fixture struct {
	repo     *fakeRepo
	notifier *recordingNotifier
	svc      AgreementService
	teamID   uuid.UUID
	a, b, c  uuid.UUID
	ta       uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newFakeRepo(),
		notifier: &recordingNotifier{},
		teamID:   uuid.New(),
		a:        uuid.New(),
		b:        uuid.New(),
		c:        uuid.New(),
		ta:       uuid.New(),
	}
	classID := uuid.New()
	f.repo.teams[f.teamID] = classID
	f.repo.members[f.teamID] = []uuid.UUID{f.a, f.b, f.c}

	access := accesstest.New().
		Grant(f.a, classID, entity.RoleStudent).
		Grant(f.b, classID, entity.RoleStudent).
		Grant(f.c, classID, entity.RoleStudent).
		Grant(f.ta, classID, entity.RoleTA).
		AddTeam(f.teamID, classID, f.a, f.b, f.c)

	f.svc = NewAgreementService(f.repo, access, f.notifier, cache.New(nil))
	return f
}

const charter = "We meet every Tuesday and answer messages within a day."

func TestAgreementSignAndDoubleSign(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	created, isNew, err := f.svc.Save(ctx, f.a, f.teamID, dto.SaveAgreementRequest{Content: charter})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, created.SignedByMe, "author signs on creation")
	require.Len(t, created.Signatures, 1)

	require.Len(t, f.notifier.sent, 2)
	for _, n := range f.notifier.sent {
		assert.NotEqual(t, f.a, n.UserID)
		assert.Equal(t, entity.NotificationAgreementCreated, n.Type)
	}

	signed, err := f.svc.Sign(ctx, f.b, f.teamID, created.ID)
	require.NoError(t, err)
	assert.True(t, signed.SignedByMe)
	assert.Len(t, signed.Signatures, 2)

	_, err = f.svc.Sign(ctx, f.b, f.teamID, created.ID)
	require.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, "you have already signed this agreement", err.Error())

	_, err = f.svc.Sign(ctx, f.a, f.teamID, created.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	view, err := f.svc.Get(ctx, f.c, f.teamID)
	require.NoError(t, err)
	assert.False(t, view.SignedByMe)
	assert.False(t, view.IsLocked)
	assert.Len(t, view.Signatures, 2)
}

func TestAgreementSaveUpdatesLivingDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first, _, err := f.svc.Save(ctx, f.a, f.teamID, dto.SaveAgreementRequest{Content: charter})
	require.NoError(t, err)

	second, isNew, err := f.svc.Save(ctx, f.b, f.teamID, dto.SaveAgreementRequest{Content: charter + " Updated."})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, charter+" Updated.", second.Content)
	assert.Len(t, f.repo.agreements, 1)

	third, _, err := f.svc.Save(ctx, f.c, f.teamID, dto.SaveAgreementRequest{AgreementID: &first.ID, Content: "<p>Be kind</p><script>alert(1)</script> always."})
	require.NoError(t, err)
	assert.Equal(t, "<p>Be kind</p> always.", third.Content)
}

func TestAgreementSaveRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, _, err := f.svc.Save(ctx, uuid.New(), f.teamID, dto.SaveAgreementRequest{Content: charter})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, _, err = f.svc.Save(ctx, f.a, f.teamID, dto.SaveAgreementRequest{Content: "<script>alert('hello world')</script>"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	foreign := uuid.New()
	_, _, err = f.svc.Save(ctx, f.a, f.teamID, dto.SaveAgreementRequest{AgreementID: &foreign, Content: charter})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAgreementLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	created, _, err := f.svc.Save(ctx, f.a, f.teamID, dto.SaveAgreementRequest{Content: charter})
	require.NoError(t, err)

	_, err = f.svc.Lock(ctx, f.a, f.teamID, created.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	locked, err := f.svc.Lock(ctx, f.ta, f.teamID, created.ID)
	require.NoError(t, err)
	assert.True(t, locked.IsLocked)

	_, err = f.svc.Lock(ctx, f.ta, f.teamID, created.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, _, err = f.svc.Save(ctx, f.a, f.teamID, dto.SaveAgreementRequest{Content: charter + " More."})
	require.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, "this agreement is locked and cannot be updated", err.Error())

	signed, err := f.svc.Sign(ctx, f.c, f.teamID, created.ID)
	require.NoError(t, err, "locked agreements can still be signed")
	assert.Len(t, signed.Signatures, 2)

	_, err = f.svc.Lock(ctx, f.ta, uuid.New(), created.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAgreementGetWithoutAgreement(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Get(context.Background(), f.ta, f.teamID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Get(context.Background(), uuid.New(), f.teamID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

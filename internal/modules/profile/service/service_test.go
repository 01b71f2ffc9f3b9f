package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"chimu.app/backend/internal/entity"
	"chimu.app/backend/internal/modules/profile/dto"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeUserRepo struct {
	users   map[uuid.UUID]*entity.User
	teams   map[uuid.UUID][]uuid.UUID
	classes map[uuid.UUID][]uuid.UUID
}

func (f *fakeUserRepo) Create(_ context.Context, u *entity.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindByIDs(context.Context, []uuid.UUID) ([]entity.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) TeamIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return f.teams[userID], nil
}

func (f *fakeUserRepo) ClassIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return f.classes[userID], nil
}

func (f *fakeUserRepo) Update(_ context.Context, u *entity.User) error {
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

type fakeStorage struct {
	uploaded  []string
	deleted   []string
	uploadURL string
	deleteErr error
}

func (f *fakeStorage) Upload(_ context.Context, r io.Reader, folder, objectName string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.uploaded = append(f.uploaded, folder+"/"+objectName)
	return f.uploadURL, nil
}

func (f *fakeStorage) Delete(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return f.deleteErr
}

func strPtr(s string) *string { return &s }

func newRepo(users ...*entity.User) *fakeUserRepo {
	repo := &fakeUserRepo{
		users:   map[uuid.UUID]*entity.User{},
		teams:   map[uuid.UUID][]uuid.UUID{},
		classes: map[uuid.UUID][]uuid.UUID{},
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func TestGetCurrentProfile(t *testing.T) {
	me := &entity.User{ID: uuid.New(), Email: "me@uni.edu"}
	svc := NewProfileService(newRepo(me), nil, cache.New(nil))

	res, err := svc.GetCurrentProfile(context.Background(), me.ID)
	require.NoError(t, err)
	assert.Equal(t, "me@uni.edu", res.Name, "email stands in for a missing name")

	_, err = svc.GetCurrentProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateProfileFields(t *testing.T) {
	me := &entity.User{ID: uuid.New(), Name: "Old", Email: "me@uni.edu", Phone: strPtr("123")}
	other := &entity.User{ID: uuid.New(), Name: "Other", Email: "taken@uni.edu"}
	repo := newRepo(me, other)
	svc := NewProfileService(repo, nil, cache.New(nil))
	ctx := context.Background()

	res, err := svc.UpdateProfile(ctx, me.ID, dto.UpdateProfileInput{
		Name:     strPtr("  Ada  "),
		Email:    strPtr("ADA@uni.edu"),
		Phone:    strPtr(" "),
		Password: strPtr("correct horse"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.Name)
	assert.Equal(t, "ada@uni.edu", res.Email)
	assert.Nil(t, res.Phone)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[me.ID].PasswordHash), []byte("correct horse")))

	_, err = svc.UpdateProfile(ctx, me.ID, dto.UpdateProfileInput{Email: strPtr("Taken@uni.edu")}, nil)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = svc.UpdateProfile(ctx, me.ID, dto.UpdateProfileInput{Name: strPtr(strings.Repeat("n", 51))}, nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) Get(context.Context, string, any) bool { return false }

func (c *recordingCache) Set(context.Context, string, any, time.Duration) {}

func (c *recordingCache) Invalidate(_ context.Context, keys ...string) {
	c.invalidated = append(c.invalidated, keys...)
}

func TestUpdateProfileInvalidatesTeamAndClassViews(t *testing.T) {
	me := &entity.User{ID: uuid.New(), Name: "Old", Email: "me@uni.edu"}
	repo := newRepo(me)
	teamID, classID := uuid.New(), uuid.New()
	repo.teams[me.ID] = []uuid.UUID{teamID}
	repo.classes[me.ID] = []uuid.UUID{classID}
	views := &recordingCache{}
	svc := NewProfileService(repo, nil, views)

	_, err := svc.UpdateProfile(context.Background(), me.ID, dto.UpdateProfileInput{Name: strPtr("Ada")}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{cache.TeamKey(teamID), cache.ClassKey(classID)}, views.invalidated)

	views.invalidated = nil
	_, err = svc.UpdateProfile(context.Background(), me.ID, dto.UpdateProfileInput{Name: strPtr("")}, nil)
	require.Error(t, err)
	assert.Empty(t, views.invalidated, "failed updates leave cached views alone")
}

func TestUpdateProfileAvatar(t *testing.T) {
	ctx := context.Background()
	oldURL := "https://res.cloudinary.com/demo/image/upload/v1/profile_photos/legacy.webp"

	t.Run("replaces and deletes previous avatar", func(t *testing.T) {
		me := &entity.User{ID: uuid.New(), Name: "Ada", Email: "ada@uni.edu", AvatarURL: strPtr(oldURL)}
		store := &fakeStorage{uploadURL: "https://res.cloudinary.com/demo/image/upload/v2/profile_photos/" + me.ID.String() + ".webp"}
		svc := NewProfileService(newRepo(me), store, cache.New(nil))

		res, err := svc.UpdateProfile(ctx, me.ID, dto.UpdateProfileInput{}, &dto.AvatarFile{Reader: strings.NewReader("img"), FileName: "Me.PNG"})
		require.NoError(t, err)
		assert.Equal(t, store.uploadURL, *res.AvatarURL)
		assert.Equal(t, []string{"profile_photos/" + me.ID.String() + ".png"}, store.uploaded)
		assert.Equal(t, []string{oldURL}, store.deleted)
	})

	t.Run("same public id is not deleted", func(t *testing.T) {
		me := &entity.User{ID: uuid.New(), Name: "Ada", Email: "ada@uni.edu"}
		current := "https://res.cloudinary.com/demo/image/upload/v1/profile_photos/" + me.ID.String() + ".webp"
		me.AvatarURL = strPtr(current)
		store := &fakeStorage{uploadURL: strings.Replace(current, "/v1/", "/v9/", 1)}
		svc := NewProfileService(newRepo(me), store, cache.New(nil))

		_, err := svc.UpdateProfile(ctx, me.ID, dto.UpdateProfileInput{}, &dto.AvatarFile{Reader: strings.NewReader("img"), FileName: "me.jpg"})
		require.NoError(t, err)
		assert.Empty(t, store.deleted)
	})

	t.Run("delete failure does not fail the update", func(t *testing.T) {
		me := &entity.User{ID: uuid.New(), Name: "Ada", Email: "ada@uni.edu", AvatarURL: strPtr(oldURL)}
		store := &fakeStorage{uploadURL: "https://res.cloudinary.com/demo/image/upload/v2/profile_photos/new.webp", deleteErr: errors.New("cdn down")}
		svc := NewProfileService(newRepo(me), store, cache.New(nil))

		_, err := svc.UpdateProfile(ctx, me.ID, dto.UpdateProfileInput{}, &dto.AvatarFile{Reader: strings.NewReader("img"), FileName: "me.jpg"})
		assert.NoError(t, err)
	})

	t.Run("rejects non images", func(t *testing.T) {
		me := &entity.User{ID: uuid.New(), Email: "ada@uni.edu"}
		svc := NewProfileService(newRepo(me), &fakeStorage{}, cache.New(nil))

		_, err := svc.UpdateProfile(ctx, me.ID, dto.UpdateProfileInput{}, &dto.AvatarFile{Reader: strings.NewReader("%PDF"), FileName: "cv.pdf"})
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	})

	t.Run("storage not configured", func(t *testing.T) {
		me := &entity.User{ID: uuid.New(), Email: "ada@uni.edu"}
		svc := NewProfileService(newRepo(me), nil, cache.New(nil))

		_, err := svc.UpdateProfile(ctx, me.ID, dto.UpdateProfileInput{}, &dto.AvatarFile{Reader: strings.NewReader("img"), FileName: "me.jpg"})
		assert.ErrorIs(t, err, apperror.ErrBadRequest)
	})
}

package repository

import (
	"context"
	"testing"

	"chimu.app/backend/internal/entity"
	"chimu.app/backend/pkg/database/databasetest"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	roleLockQuery   = `SELECT .* FROM "class_roles" WHERE .* FOR UPDATE`
	teamLockQuery   = `SELECT .* FROM "teams" WHERE .* FOR UPDATE`
	membershipQuery = `FROM "team_members" JOIN teams`
	capacityQuery   = `SELECT count\(\*\) FROM "team_members"`
)

func idRow(id uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id"}).AddRow(id.String())
}

func memberRow(teamID, userID uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "team_id", "user_id"}).
		AddRow(uuid.New().String(), teamID.String(), userID.String())
}

func TestAddMemberLocksStudentBeforeTeam(t *testing.T) {
	classID, teamID, userID := uuid.New(), uuid.New(), uuid.New()
	capacity := 2

	tests := []struct {
		name    string
		expect  func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "already on another team in the class",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(membershipQuery).WillReturnRows(memberRow(uuid.New(), userID))
			},
			wantErr: ErrAlreadyOnTeam,
		},
		{
			name: "team at capacity",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(membershipQuery).WillReturnRows(sqlmock.NewRows([]string{"id"}))
				mock.ExpectQuery(capacityQuery).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
			},
			wantErr: ErrTeamFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := databasetest.New(t)
			repo := NewTeamRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery(roleLockQuery).WillReturnRows(idRow(uuid.New()))
			mock.ExpectQuery(teamLockQuery).WillReturnRows(idRow(teamID))
			tt.expect(mock)
			mock.ExpectRollback()

			err := repo.AddMember(context.Background(), classID, teamID, userID, &capacity)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateTeamAsStudentLocksRoleBeforeMembershipCheck(t *testing.T) {
	db, mock := databasetest.New(t)
	repo := NewTeamRepository(db)

	classID, userID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(roleLockQuery).WillReturnRows(idRow(uuid.New()))
	mock.ExpectQuery(membershipQuery).WillReturnRows(memberRow(uuid.New(), userID))
	mock.ExpectRollback()

	err := repo.CreateTeam(context.Background(), &entity.Team{ClassID: classID, Name: "Alpha", CreatedBy: userID}, userID, true)
	assert.ErrorIs(t, err, ErrAlreadyOnTeam)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveMemberRechecksCapacityUnderLocks(t *testing.T) {
	db, mock := databasetest.New(t)
	repo := NewTeamRepository(db)

	classID, fromID, toID, userID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	capacity := 3

	mock.ExpectBegin()
	mock.ExpectQuery(roleLockQuery).WillReturnRows(idRow(uuid.New()))
	mock.ExpectQuery(teamLockQuery).WillReturnRows(idRow(toID))
	mock.ExpectQuery(capacityQuery).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	err := repo.MoveMember(context.Background(), classID, fromID, toID, userID, &capacity)
	assert.ErrorIs(t, err, ErrTeamFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveMemberClearsRolePointer(t *testing.T) {
	db, mock := databasetest.New(t)
	repo := NewTeamRepository(db)

	classID, teamID, userID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(roleLockQuery).WillReturnRows(idRow(uuid.New()))
	mock.ExpectExec(`DELETE FROM "team_members" WHERE team_id = .* AND user_id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "class_roles" SET "team_id"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.RemoveMember(context.Background(), classID, teamID, userID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveMemberNotOnTeam(t *testing.T) {
	db, mock := databasetest.New(t)
	repo := NewTeamRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(roleLockQuery).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`DELETE FROM "team_members"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	removed, err := repo.RemoveMember(context.Background(), uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

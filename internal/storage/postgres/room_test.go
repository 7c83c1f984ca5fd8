package postgres

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/hotel-booking/internal/domain/room"
)

var roomColumnNames = []string{"id", "name", "description", "nightly_rate", "capacity", "units", "active"}

func TestRoomRepository_List(t *testing.T) {
	mock := newMock(t)
	repo := NewRoomRepository(mock)

	mock.ExpectQuery("FROM room_types WHERE active").
		WillReturnRows(pgxmock.NewRows(roomColumnNames).
			AddRow("single", "Single", "One bed", decimal.RequireFromString("80.00"), int32(1), int32(4), true).
			AddRow("double", "Double", "Two beds", decimal.RequireFromString("120.00"), int32(2), int32(3), true))

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, room.RoomType{
		ID:          "double",
		Name:        "Double",
		Description: "Two beds",
		NightlyRate: decimal.RequireFromString("120.00"),
		Capacity:    2,
		Units:       3,
		Active:      true,
	}, got[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewRoomRepository(mock)

	mock.ExpectQuery("FROM room_types WHERE id").
		WithArgs("suite").
		WillReturnRows(pgxmock.NewRows(roomColumnNames).
			AddRow("suite", "Suite", "", decimal.RequireFromString("300.00"), int32(4), int32(1), false))
	mock.ExpectQuery("FROM room_types WHERE id").
		WithArgs("attic").
		WillReturnRows(pgxmock.NewRows(roomColumnNames))
	mock.ExpectQuery("FROM room_types WHERE id").
		WithArgs("boom").
		WillReturnError(errors.New("conn reset"))

	got, err := repo.GetByID(context.Background(), "suite")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, 4, got.Capacity)

	_, err = repo.GetByID(context.Background(), "attic")
	require.ErrorIs(t, err, room.ErrNotFound)

	_, err = repo.GetByID(context.Background(), "boom")
	require.Error(t, err)
	assert.NotErrorIs(t, err, room.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepository_Upsert(t *testing.T) {
	mock := newMock(t)
	repo := NewRoomRepository(mock)

	rate := decimal.RequireFromString("95.50")
	mock.ExpectExec("INSERT INTO room_types").
		WithArgs("twin", "Twin", "", rate, int32(2), int32(6), true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO room_types").
		WithArgs("bad", "Bad", "", rate, int32(0), int32(1), true).
		WillReturnError(errors.New("check constraint"))

	require.NoError(t, repo.Upsert(context.Background(), room.RoomType{
		ID: "twin", Name: "Twin", NightlyRate: rate, Capacity: 2, Units: 6, Active: true,
	}))

	err := repo.Upsert(context.Background(), room.RoomType{ID: "bad", Name: "Bad", NightlyRate: rate, Units: 1, Active: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `upsert room type "bad"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

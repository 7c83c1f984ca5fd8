package room

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested room type does not exist.
var ErrNotFound = errors.New("room type not found")

// RoomType is a bookable category of rooms sharing a nightly rate.
type RoomType struct {
	ID          string
	Name        string
	Description string
	NightlyRate decimal.Decimal
	// Capacity is the maximum number of guests per room.
	Capacity int
	// Units is how many rooms of this type the hotel has.
	Units  int
	Active bool
}

// Repository defines read operations for the room catalog.
type Repository interface {
	List(ctx context.Context) ([]RoomType, error)
	GetByID(ctx context.Context, id string) (*RoomType, error)
}

package repository

import (
	"context"

	"parksphere/pkg/model"
)

const CollectionName = "Parking_lots"

// LotRepository is the registry of lots and their slot counters.
// DecrementAvailable and IncrementAvailable are single conditional updates
// at the store; they never read then write in application code.
type LotRepository interface {
	Create(ctx context.Context, lot *model.Lot) error
	FindByID(ctx context.Context, id string) (*model.Lot, error)
	// FindByIDForUpdate reads the lot and holds it until the surrounding
	// transaction ends, serializing admissions on the same lot.
	FindByIDForUpdate(ctx context.Context, id string) (*model.Lot, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Lot, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Lot, error)
	Count(ctx context.Context) (int64, error)

	DecrementAvailable(ctx context.Context, id string) (*model.Lot, error)
	IncrementAvailable(ctx context.Context, id string) (*model.Lot, error)
}

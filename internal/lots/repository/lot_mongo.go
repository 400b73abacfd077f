package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	lotserrors "parksphere/internal/lots/errors"
	mongodb "parksphere/pkg/db/mongo"
	"parksphere/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoLotRepository struct {
	collection   *mongo.Collection
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewMongoLotRepository(db *mongo.Database, readTimeout, writeTimeout time.Duration) LotRepository {
	return &mongoLotRepository{
		collection:   db.Collection(CollectionName),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (r *mongoLotRepository) Create(ctx context.Context, lot *model.Lot) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if _, err := r.collection.InsertOne(ctx, lot); err != nil {
		return fmt.Errorf("failed to create parking lot: %w", err)
	}
	return nil
}

func (r *mongoLotRepository) FindByID(ctx context.Context, id string) (*model.Lot, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	var lot model.Lot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&lot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", lotserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find parking lot: %w", err)
	}
	return &lot, nil
}

// FindByIDForUpdate bumps a version field so that two transactions touching
// the same lot conflict on write; the driver then retries the loser.
func (r *mongoLotRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Lot, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var lot model.Lot
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"lock_version": 1}}, opts).Decode(&lot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", lotserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to lock parking lot: %w", err)
	}
	return &lot, nil
}

func (r *mongoLotRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Lot, error) {
	result := make(map[string]*model.Lot, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to query parking lots: %w", err)
	}
	defer cursor.Close(ctx)

	var lots []*model.Lot
	if err := cursor.All(ctx, &lots); err != nil {
		return nil, fmt.Errorf("failed to decode parking lots: %w", err)
	}
	for _, lot := range lots {
		result[lot.ID] = lot
	}
	return result, nil
}

func (r *mongoLotRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Lot, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query parking lots: %w", err)
	}
	defer cursor.Close(ctx)

	lots := []*model.Lot{}
	if err := cursor.All(ctx, &lots); err != nil {
		return nil, fmt.Errorf("failed to decode parking lots: %w", err)
	}
	return lots, nil
}

func (r *mongoLotRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count parking lots: %w", err)
	}
	return count, nil
}

func (r *mongoLotRepository) DecrementAvailable(ctx context.Context, id string) (*model.Lot, error) {
	filter := bson.M{"_id": id, "available_slots": bson.M{"$gt": 0}}
	update := bson.M{"$inc": bson.M{"available_slots": -1}}

	lot, err := r.conditionalUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, lotserrors.ErrNoAvailableSlot
	}
	return lot, err
}

func (r *mongoLotRepository) IncrementAvailable(ctx context.Context, id string) (*model.Lot, error) {
	filter := bson.M{
		"_id":   id,
		"$expr": bson.M{"$lt": bson.A{"$available_slots", "$total_slots"}},
	}
	update := bson.M{"$inc": bson.M{"available_slots": 1}}

	lot, err := r.conditionalUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, lotserrors.ErrSlotsAtCapacity
	}
	return lot, err
}

func (r *mongoLotRepository) conditionalUpdate(ctx context.Context, filter, update bson.M) (*model.Lot, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var lot model.Lot
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&lot); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update parking lot slots: %w", err)
	}
	return &lot, nil
}

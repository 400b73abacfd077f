package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "parksphere/internal/bookings/errors"
	"parksphere/pkg/db"
	mongodb "parksphere/pkg/db/mongo"
	"parksphere/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoBookingRepository struct {
	collection   *mongo.Collection
	txManager    db.TransactionManager
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewMongoBookingRepository(database *mongo.Database, txManager db.TransactionManager, readTimeout, writeTimeout time.Duration) BookingRepository {
	return &mongoBookingRepository{
		collection:   database.Collection(CollectionName),
		txManager:    txManager,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	var booking model.Booking
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindByRequester(ctx context.Context, requesterID string) ([]*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"requester_id": requesterID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) CountOverlapping(ctx context.Context, lotID, date, start, end string) (int64, error) {
	return r.count(ctx, bson.M{
		"lot_id":     lotID,
		"date":       date,
		"status":     model.StatusConfirmed,
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	})
}

func (r *mongoBookingRepository) CountActiveAt(ctx context.Context, lotID, date, at string) (int64, error) {
	return r.count(ctx, bson.M{
		"lot_id":     lotID,
		"date":       date,
		"status":     model.StatusConfirmed,
		"start_time": bson.M{"$lte": at},
		"end_time":   bson.M{"$gt": at},
	})
}

func (r *mongoBookingRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": model.StatusConfirmed}
	update := bson.M{"$set": bson.M{
		"status":       model.StatusCancelled,
		"cancelled_at": at,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotCancellable
	}
	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

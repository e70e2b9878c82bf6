package databases

// go generate: mockery --name RegistrationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/donation-checkin-api/models"
)

const registrationName = "registrations"

// RegistrationDatabase contains the methods to use with the registration database
type RegistrationDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Registration, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Registration, error)
	InsertOne(ctx context.Context, registration models.Registration) (InsertOneResultHelper, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) (*models.Registration, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type registrationDatabase struct {
	db DatabaseHelper
}

// NewRegistrationDatabase initializes a new instance of registration database with the provided db connection
func NewRegistrationDatabase(db DatabaseHelper) RegistrationDatabase {
	return &registrationDatabase{
		db: db,
	}
}

func (r *registrationDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Registration, error) {
	registration := &models.Registration{}
	err := r.db.Collection(registrationName).FindOne(ctx, filter, opts...).Decode(&registration)
	if err != nil {
		return nil, err
	}
	return registration, nil
}

func (r *registrationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Registration, error) {
	var registrations []models.Registration
	cur, err := r.db.Collection(registrationName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&registrations)
	if err != nil {
		return nil, err
	}
	return registrations, nil
}

func (r *registrationDatabase) InsertOne(ctx context.Context, registration models.Registration) (InsertOneResultHelper, error) {
	return r.db.Collection(registrationName).InsertOne(ctx, registration)
}

// FindOneAndUpdate applies update to the first match and returns the document as it is after the update
func (r *registrationDatabase) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) (*models.Registration, error) {
	if len(opts) == 0 {
		opts = append(opts, options.FindOneAndUpdate().SetReturnDocument(options.After))
	}
	registration := &models.Registration{}
	err := r.db.Collection(registrationName).FindOneAndUpdate(ctx, filter, update, opts...).Decode(&registration)
	if err != nil {
		return nil, err
	}
	return registration, nil
}

func (r *registrationDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return r.db.Collection(registrationName).CountDocuments(ctx, filter)
}

// EnsureIndexes creates the unique token index the token allocator relies on
func (r *registrationDatabase) EnsureIndexes(ctx context.Context) error {
	return r.db.Collection(registrationName).CreateUniqueIndex(ctx, "token")
}

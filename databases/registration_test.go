package databases_test

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/donation-checkin-api/config"
	"github.com/linesmerrill/donation-checkin-api/databases"
	"github.com/linesmerrill/donation-checkin-api/databases/mocks"
	"github.com/linesmerrill/donation-checkin-api/models"
)

func TestNewRegistrationDatabase(t *testing.T) {
	_ = os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	_ = os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	registrationDB := databases.NewRegistrationDatabase(db)

	assert.NotEmpty(t, registrationDB)
}

func TestRegistrationDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Registration)
		(*arg).Token = "AB12CD"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "registrations").Return(collectionHelper)

	// Create new database with mocked Database interface
	registrationDba := databases.NewRegistrationDatabase(dbHelper)

	// Call method with defined filter, that in our mocked function returns
	// mocked-error
	registration, err := registrationDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, registration)
	assert.EqualError(t, err, "mocked-error")

	// Now call the same function with different filter for correct
	// result
	registration, err = registrationDba.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, &models.Registration{Token: "AB12CD"}, registration)
	assert.NoError(t, err)
}

func TestRegistrationDatabase_FindOneAndUpdate(t *testing.T) {
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperNoDocs databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperNoDocs = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperNoDocs.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(mongo.ErrNoDocuments)

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Registration)
		(*arg).Token = "AB12CD"
		(*arg).Verified = true
		(*arg).VerifiedBy = "admin1"
	})

	update := bson.M{"$set": bson.M{"verified": true}}

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOneAndUpdate", context.Background(), bson.M{"token": "ZZ9999"}, update, mock.Anything).
		Return(srHelperNoDocs)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOneAndUpdate", context.Background(), bson.M{"token": "AB12CD"}, update, mock.Anything).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "registrations").Return(collectionHelper)

	registrationDba := databases.NewRegistrationDatabase(dbHelper)

	registration, err := registrationDba.FindOneAndUpdate(context.Background(), bson.M{"token": "ZZ9999"}, update)
	assert.Nil(t, registration)
	assert.True(t, databases.IsNotFound(err))

	registration, err = registrationDba.FindOneAndUpdate(context.Background(), bson.M{"token": "AB12CD"}, update)
	assert.NoError(t, err)
	assert.True(t, registration.Verified)
	assert.Equal(t, "admin1", registration.VerifiedBy)
}

func TestRegistrationDatabase_Find(t *testing.T) {
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var cursorHelper databases.CursorHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	cursorHelper = &mocks.CursorHelper{}

	cursorHelper.(*mocks.CursorHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Registration)
		*arg = []models.Registration{{Token: "AB12CD"}, {Token: "XY34ZW"}}
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"eventId": "event-1"}).
		Return(cursorHelper, nil)

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"eventId": "broken"}).
		Return(nil, errors.New("mocked-error"))

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "registrations").Return(collectionHelper)

	registrationDba := databases.NewRegistrationDatabase(dbHelper)

	registrations, err := registrationDba.Find(context.Background(), bson.M{"eventId": "event-1"})
	assert.NoError(t, err)
	assert.Len(t, registrations, 2)

	registrations, err = registrationDba.Find(context.Background(), bson.M{"eventId": "broken"})
	assert.Nil(t, registrations)
	assert.EqualError(t, err, "mocked-error")
}

func TestRegistrationDatabase_InsertOne(t *testing.T) {
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var insertHelper databases.InsertOneResultHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	insertHelper = &mocks.InsertOneResultHelper{}

	insertHelper.(*mocks.InsertOneResultHelper).On("Decode").Return("new-id")

	registration := models.Registration{Name: "Ada", Token: "AB12CD"}
	collectionHelper.(*mocks.CollectionHelper).
		On("InsertOne", context.Background(), registration).
		Return(insertHelper, nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "registrations").Return(collectionHelper)

	registrationDba := databases.NewRegistrationDatabase(dbHelper)

	res, err := registrationDba.InsertOne(context.Background(), registration)
	assert.NoError(t, err)
	assert.Equal(t, "new-id", res.Decode())
}

func TestRegistrationDatabase_EnsureIndexes(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("CreateUniqueIndex", context.Background(), "token").Return(nil)
	dbHelper.On("Collection", "registrations").Return(collectionHelper)

	registrationDba := databases.NewRegistrationDatabase(dbHelper)

	assert.NoError(t, registrationDba.EnsureIndexes(context.Background()))
	collectionHelper.AssertExpectations(t)
}

func TestPaginatedOpts(t *testing.T) {
	opts := databases.PaginatedOpts(25, 3)
	assert.Equal(t, int64(25), *opts.Limit)
	assert.Equal(t, int64(50), *opts.Skip)

	opts = databases.PaginatedOpts(0, 0)
	assert.Equal(t, int64(databases.MaxPageSize), *opts.Limit)
	assert.Equal(t, int64(0), *opts.Skip)

	opts = databases.PaginatedOpts(databases.MaxPageSize, math.MaxInt)
	assert.Equal(t, int64(databases.MaxPage-1)*databases.MaxPageSize, *opts.Skip)
}

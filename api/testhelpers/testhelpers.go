package testhelpers

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/donation-checkin-api/databases"
	"github.com/linesmerrill/donation-checkin-api/models"
)

// RegistrationStore is an in-memory databases.RegistrationDatabase. It understands
// the filter and update shapes the verification engine and handlers build, and
// applies FindOneAndUpdate under a single lock like mongo's document level atomicity.
type RegistrationStore struct {
	mu            sync.Mutex
	registrations []models.Registration
	calls         map[string]int
}

// NewRegistrationStore seeds a store with the given registrations
func NewRegistrationStore(seed ...models.Registration) *RegistrationStore {
	s := &RegistrationStore{calls: map[string]int{}}
	for _, r := range seed {
		if r.ID.IsZero() {
			r.ID = primitive.NewObjectID()
		}
		s.registrations = append(s.registrations, r)
	}
	return s
}

// Calls returns how many times the named method ran
func (s *RegistrationStore) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls returns the number of store calls of any kind
func (s *RegistrationStore) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Get returns a copy of the registration with the given token
func (s *RegistrationStore) Get(token string) (models.Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.registrations {
		if r.Token == token {
			return r, true
		}
	}
	return models.Registration{}, false
}

// FindOne returns the first registration matching filter
func (s *RegistrationStore) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindOne"]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, r := range s.registrations {
		if matches(r, filter) {
			found := r
			return &found, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

// Find returns every registration matching filter, ignoring pagination
func (s *RegistrationStore) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Find"]++
	var out []models.Registration
	for _, r := range s.registrations {
		if matches(r, filter) {
			out = append(out, r)
		}
	}
	return out, nil
}

// InsertOne appends registration, rejecting duplicate tokens like the unique index
func (s *RegistrationStore) InsertOne(ctx context.Context, registration models.Registration) (databases.InsertOneResultHelper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["InsertOne"]++
	for _, r := range s.registrations {
		if r.Token == registration.Token {
			return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
		}
	}
	if registration.ID.IsZero() {
		registration.ID = primitive.NewObjectID()
	}
	s.registrations = append(s.registrations, registration)
	return insertResult{id: registration.ID}, nil
}

// FindOneAndUpdate applies a $set to the first match and returns the updated copy
func (s *RegistrationStore) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindOneAndUpdate"]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i := range s.registrations {
		if matches(s.registrations[i], filter) {
			apply(&s.registrations[i], update)
			updated := s.registrations[i]
			return &updated, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

// CountDocuments counts matches of filter
func (s *RegistrationStore) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CountDocuments"]++
	var n int64
	for _, r := range s.registrations {
		if matches(r, filter) {
			n++
		}
	}
	return n, nil
}

// EnsureIndexes is a no-op, InsertOne already enforces token uniqueness
func (s *RegistrationStore) EnsureIndexes(ctx context.Context) error {
	return nil
}

type insertResult struct {
	id primitive.ObjectID
}

func (i insertResult) Decode() interface{} {
	return i.id
}

func matches(r models.Registration, filter interface{}) bool {
	f, ok := filter.(bson.M)
	if !ok {
		return false
	}
	for key, want := range f {
		switch key {
		case "_id":
			if id, ok := want.(primitive.ObjectID); !ok || id != r.ID {
				return false
			}
		case "token":
			if want != r.Token {
				return false
			}
		case "verified":
			if want != r.Verified {
				return false
			}
		case "eventId":
			if !matchString(r.EventID, want) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func matchString(have string, want interface{}) bool {
	switch w := want.(type) {
	case string:
		return w == have
	case bson.M:
		in, ok := w["$in"].([]string)
		if !ok {
			return false
		}
		for _, v := range in {
			if v == have {
				return true
			}
		}
	}
	return false
}

func apply(r *models.Registration, update interface{}) {
	u, ok := update.(bson.M)
	if !ok {
		return
	}
	set, ok := u["$set"].(bson.M)
	if !ok {
		return
	}
	for key, v := range set {
		switch key {
		case "verified":
			r.Verified = v.(bool)
		case "verifiedAt":
			at := v.(time.Time)
			r.VerifiedAt = &at
		case "verifiedBy":
			r.VerifiedBy = v.(string)
		}
	}
}

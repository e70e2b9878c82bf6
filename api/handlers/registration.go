package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/donation-checkin-api/api"
	"github.com/linesmerrill/donation-checkin-api/config"
	"github.com/linesmerrill/donation-checkin-api/databases"
	"github.com/linesmerrill/donation-checkin-api/models"
	"github.com/linesmerrill/donation-checkin-api/tokens"
)

// DefaultPageSize is the list size when no limit is given
const DefaultPageSize = 50

// Registration exported for testing purposes
type Registration struct {
	DB        databases.RegistrationDatabase
	Allocator *tokens.Allocator
}

// RegistrationListResponse is one page of an event's registrations
type RegistrationListResponse struct {
	Registrations []models.Registration `json:"registrations"`
	Total         int64                 `json:"total"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
}

// CreateRegistrationHandler signs an attendee up for an event and issues its token
func (reg Registration) CreateRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.CodeValidation, "failed to decode request")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, models.CodeValidation, validationMessage(err))
		return
	}

	registration := models.Registration{
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     req.Phone,
		EventID:   req.EventID,
		TimeSlot:  req.TimeSlot,
		Category:  req.Category,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err := reg.allocator().Allocate(ctx, func(ctx context.Context, token string) error {
		registration.ID = primitive.NewObjectID()
		registration.Token = token
		_, err := reg.DB.InsertOne(ctx, registration)
		if databases.IsDuplicateKeyError(err) {
			return tokens.ErrTokenTaken
		}
		return err
	})
	if err != nil {
		if errors.Is(err, tokens.ErrTokenAllocationFailed) {
			writeError(w, http.StatusServiceUnavailable, models.CodeTokenAllocationFailed, err.Error())
			return
		}
		config.ErrorStatus("failed to create registration", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("registration created",
		"registrationId", registration.ID.Hex(),
		"eventId", registration.EventID,
		"timeSlot", registration.TimeSlot)
	writeJSON(w, http.StatusCreated, registration)
}

// RegistrationByIDHandler returns a registration by ID
func (reg Registration) RegistrationByIDHandler(w http.ResponseWriter, r *http.Request) {
	registration, ok := reg.findByID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, registration)
}

// RegistrationQRHandler returns the registration badge as a PNG
func (reg Registration) RegistrationQRHandler(w http.ResponseWriter, r *http.Request) {
	registration, ok := reg.findByID(w, r)
	if !ok {
		return
	}

	size := tokens.BadgeSize
	if s := queryInt(r, "size", tokens.BadgeSize); s >= 64 && s <= 1024 {
		size = s
	}
	png, err := tokens.RenderBadge(registration.Token, size)
	if err != nil {
		config.ErrorStatus("failed to render badge", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// EventRegistrationsHandler lists an event's registrations, optionally filtered by verified state
func (reg Registration) EventRegistrationsHandler(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["event_id"]
	if op, ok := api.OperatorFromContext(r.Context()); ok && !canManage(op.Events, eventID) {
		writeError(w, http.StatusForbidden, models.CodeUnauthorized, "operator cannot manage this event")
		return
	}

	filter := bson.M{"eventId": eventID}
	switch r.URL.Query().Get("verified") {
	case "true":
		filter["verified"] = true
	case "false":
		filter["verified"] = false
	}

	limit := queryInt(r, "limit", DefaultPageSize)
	if limit > databases.MaxPageSize {
		limit = databases.MaxPageSize
	}
	page := queryInt(r, "page", 1)
	if page > databases.MaxPage {
		page = databases.MaxPage
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := reg.DB.Find(ctx, filter, databases.PaginatedOpts(limit, page))
	if err != nil {
		config.ErrorStatus("failed to get registrations", http.StatusInternalServerError, w, err)
		return
	}
	total, err := reg.DB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count registrations", http.StatusInternalServerError, w, err)
		return
	}
	// the admin UI expects an array, never null
	if len(dbResp) == 0 {
		dbResp = []models.Registration{}
	}
	writeJSON(w, http.StatusOK, RegistrationListResponse{
		Registrations: dbResp,
		Total:         total,
		Page:          page,
		Limit:         limit,
	})
}

func (reg Registration) findByID(w http.ResponseWriter, r *http.Request) (*models.Registration, bool) {
	registrationID := mux.Vars(r)["registration_id"]

	zap.S().Debugf("registration_id: %v", registrationID)

	rID, err := primitive.ObjectIDFromHex(registrationID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return nil, false
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := reg.DB.FindOne(ctx, bson.M{"_id": rID})
	if err != nil {
		if databases.IsNotFound(err) {
			config.ErrorStatus("failed to get registration by ID", http.StatusNotFound, w, err)
			return nil, false
		}
		config.ErrorStatus("failed to get registration by ID", http.StatusInternalServerError, w, err)
		return nil, false
	}
	if op, ok := api.OperatorFromContext(r.Context()); ok && !canManage(op.Events, dbResp.EventID) {
		config.ErrorStatus("failed to get registration by ID", http.StatusNotFound, w, databases.ErrNotFound)
		return nil, false
	}
	return dbResp, true
}

func (reg Registration) allocator() *tokens.Allocator {
	if reg.Allocator == nil {
		return tokens.NewAllocator()
	}
	return reg.Allocator
}

// canManage reports whether an operator scope covers eventID
func canManage(scope []string, eventID string) bool {
	for _, e := range scope {
		if e == models.AllEvents || e == eventID {
			return true
		}
	}
	return false
}

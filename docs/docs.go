// Package docs Donation Check-in API.
//
// Documentation of the Donation Check-in API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//     Host: https://donation-checkin-api.herokuapp.com
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - basic
//     - bearer
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/donation-checkin-api/api/handlers"
	"github.com/linesmerrill/donation-checkin-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. database is false when the store ping fails.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route POST /api/v1/registrations registration createRegistration
// Registers an attendee for an event time slot and issues a check-in token.
// responses:
//   201: registrationResponse
//   400: errorResponse
//   503: errorResponse

// swagger:route GET /api/v1/registrations/{registration_id} registration registrationByID
// Gets a single registration by ID.
// responses:
//   200: registrationResponse
//   404: errorResponse

// Shows a single registration
// swagger:response registrationResponse
type registrationResponseWrapper struct {
	// in:body
	Body models.Registration
}

// swagger:route GET /api/v1/events/{event_id}/registrations registration eventRegistrations
// Lists the registrations of an event. Supports limit, page and verified query params.
// responses:
//   200: registrationListResponse

// Shows a page of registrations
// swagger:response registrationListResponse
type registrationListResponseWrapper struct {
	// in:body
	Body handlers.RegistrationListResponse
}

// swagger:route POST /api/v1/verify verify verifyToken
// Checks in the registration holding the token. Repeat scans return already_verified.
// responses:
//   200: verificationResponse
//   400: errorResponse
//   404: errorResponse
//   429: errorResponse
//   503: errorResponse

// swagger:route GET /api/v1/verify/{token} verify lookupToken
// Previews the registration holding the token without checking it in.
// responses:
//   200: registrationResponse
//   404: errorResponse

// Shows the outcome of a verification
// swagger:response verificationResponse
type verificationResponseWrapper struct {
	// in:body
	Body models.VerificationResult
}

// Shows why a request failed. retryable is true when the same request may succeed later.
// swagger:response errorResponse
type errorResponseWrapper struct {
	// in:body
	Body models.ErrorResponse
}

// swagger:parameters verifyToken
type verifyRequestWrapper struct {
	// in:body
	Body models.VerifyRequest
}

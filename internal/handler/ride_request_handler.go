package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/suntan-superman/rydeiqweb-sub004/internal/errors"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/models"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/service"
	"github.com/suntan-superman/rydeiqweb-sub004/pkg/utils"
)

type RideRequestHandler struct {
	lifecycle service.LifecycleService
	bidding   service.BiddingService
	repricing service.RepricingService
	validate  *validator.Validate
}

func NewRideRequestHandler(
	lifecycle service.LifecycleService,
	bidding service.BiddingService,
	repricing service.RepricingService,
) *RideRequestHandler {
	return &RideRequestHandler{
		lifecycle: lifecycle,
		bidding:   bidding,
		repricing: repricing,
		validate:  validator.New(),
	}
}

func (h *RideRequestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/ride-requests", h.CreateRideRequest)
	r.Get("/ride-requests/{id}", h.GetRideRequest)
	r.Post("/ride-requests/{id}/bids", h.SubmitBid)
	r.Post("/ride-requests/{id}/select-bid", h.SelectBid)
	r.Post("/ride-requests/{id}/accept-default", h.AcceptDefaultOffer)
	r.Post("/ride-requests/{id}/start", h.StartRide)
	r.Post("/ride-requests/{id}/complete", h.CompleteRide)
	r.Post("/ride-requests/{id}/cancel", h.CancelRide)
	r.Post("/ride-requests/{id}/stop-delta", h.CalculateStopDelta)
	r.Post("/ride-requests/{id}/stops", h.AddStop)
}

// POST /v1/ride-requests
func (h *RideRequestHandler) CreateRideRequest(w http.ResponseWriter, r *http.Request) {
	var in models.CreateRideRequestInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		utils.Error(w, apperrors.ValidationFailed(err.Error()))
		return
	}

	req, err := h.lifecycle.CreateRideRequest(r.Context(), &in)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Created(w, req)
}

// GET /v1/ride-requests/{id}
func (h *RideRequestHandler) GetRideRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "ride request id is required")
		return
	}

	req, err := h.lifecycle.GetRideRequest(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, req)
}

// POST /v1/ride-requests/{id}/bids
func (h *RideRequestHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in models.SubmitBidInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		utils.Error(w, apperrors.ValidationFailed(err.Error()))
		return
	}

	req, err := h.bidding.SubmitBid(r.Context(), id, &in)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, req)
}

// POST /v1/ride-requests/{id}/select-bid
func (h *RideRequestHandler) SelectBid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in models.SelectBidInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		utils.Error(w, apperrors.ValidationFailed(err.Error()))
		return
	}

	req, err := h.bidding.SelectBid(r.Context(), id, in.DriverID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, req)
}

// POST /v1/ride-requests/{id}/accept-default
func (h *RideRequestHandler) AcceptDefaultOffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.bidding.AcceptDefaultOffer(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, req)
}

// POST /v1/ride-requests/{id}/start
func (h *RideRequestHandler) StartRide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.lifecycle.StartRide(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, req)
}

// POST /v1/ride-requests/{id}/complete
func (h *RideRequestHandler) CompleteRide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	in := models.CompleteRideInput{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.BadRequest(w, "invalid request body")
			return
		}
		if err := h.validate.Struct(in); err != nil {
			utils.Error(w, apperrors.ValidationFailed(err.Error()))
			return
		}
	}

	req, err := h.lifecycle.CompleteRide(r.Context(), id, &in)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, req)
}

// POST /v1/ride-requests/{id}/cancel
func (h *RideRequestHandler) CancelRide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in models.CancelRideInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		utils.Error(w, apperrors.ValidationFailed(err.Error()))
		return
	}

	req, err := h.lifecycle.CancelRide(r.Context(), id, &in)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, req)
}

// POST /v1/ride-requests/{id}/stop-delta
func (h *RideRequestHandler) CalculateStopDelta(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var stop models.Location
	if err := json.NewDecoder(r.Body).Decode(&stop); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(stop); err != nil {
		utils.Error(w, apperrors.ValidationFailed(err.Error()))
		return
	}

	delta, err := h.repricing.CalculateStopDelta(r.Context(), id, stop)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, delta)
}

// POST /v1/ride-requests/{id}/stops
func (h *RideRequestHandler) AddStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in models.AddStopInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		utils.Error(w, apperrors.ValidationFailed(err.Error()))
		return
	}

	result, err := h.repricing.AddStopToRide(r.Context(), id, &in)
	if err != nil {
		handleError(w, err)
		return
	}

	// A guardrail hold is an expected outcome: surface the computed
	// delta so the client can prompt for approval or a new bid round.
	if !result.Applied {
		utils.Error(w, apperrors.RepricingBlocked(result, result.RequiresNewBid))
		return
	}

	utils.Success(w, http.StatusOK, result)
}

func handleError(w http.ResponseWriter, err error) {
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		utils.Error(w, apiErr)
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		utils.NotFound(w, "resource")
	case errors.Is(err, apperrors.ErrBiddingClosed):
		utils.Error(w, apperrors.BiddingClosed())
	case errors.Is(err, apperrors.ErrVersionConflict):
		utils.Error(w, apperrors.ConcurrentModification())
	default:
		utils.InternalError(w, "internal server error")
	}
}

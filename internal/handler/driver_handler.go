package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/cache"
	apperrors "github.com/suntan-superman/rydeiqweb-sub004/internal/errors"
	"github.com/suntan-superman/rydeiqweb-sub004/pkg/utils"
)

// DriverHandler feeds the driver geo directory that new-request
// broadcasts consult. Driver profiles and auth live elsewhere.
type DriverHandler struct {
	directory cache.DriverDirectory
	validate  *validator.Validate
}

func NewDriverHandler(directory cache.DriverDirectory) *DriverHandler {
	return &DriverHandler{
		directory: directory,
		validate:  validator.New(),
	}
}

func (h *DriverHandler) RegisterRoutes(r chi.Router) {
	r.Post("/drivers/{id}/location", h.UpdateLocation)
	r.Delete("/drivers/{id}/location", h.RemoveLocation)
}

// Range-validated only; 0.0 is a valid coordinate on either axis.
type updateLocationInput struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// POST /v1/drivers/{id}/location
func (h *DriverHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "id")
	if !utils.IsValidID(driverID) {
		utils.BadRequest(w, "driver id must be a valid UUID")
		return
	}

	var in updateLocationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		utils.Error(w, apperrors.ValidationFailed(err.Error()))
		return
	}

	if err := h.directory.UpdateLocation(r.Context(), driverID, in.Lat, in.Lng); err != nil {
		utils.InternalError(w, "failed to update driver location")
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DELETE /v1/drivers/{id}/location
func (h *DriverHandler) RemoveLocation(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "id")
	if !utils.IsValidID(driverID) {
		utils.BadRequest(w, "driver id must be a valid UUID")
		return
	}

	if err := h.directory.Remove(r.Context(), driverID); err != nil {
		utils.InternalError(w, "failed to remove driver location")
		return
	}

	utils.NoContent(w)
}

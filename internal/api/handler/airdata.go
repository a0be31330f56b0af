// Package handler provides HTTP handlers for the WeatherWeS API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/weatherwes/weatherwes/internal/airdata"
	"github.com/weatherwes/weatherwes/internal/api/models"
	"github.com/weatherwes/weatherwes/internal/api/response"
)

// AirDataHandler handles the air quality data endpoints.
type AirDataHandler struct {
	svc *airdata.Service
}

// NewAirDataHandler creates a new AirDataHandler.
func NewAirDataHandler(svc *airdata.Service) *AirDataHandler {
	return &AirDataHandler{svc: svc}
}

// GetLocationsByCity handles GET /v1/locations/{city}.
func (h *AirDataHandler) GetLocationsByCity(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	if city == "" {
		response.BadRequest(w, r, "city is required", nil)
		return
	}

	locations, err := h.svc.FetchLocations(r.Context(), city, boolParam(r, "force_refresh"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, locations)
}

// SearchLocations handles GET /v1/locations.
func (h *AirDataHandler) SearchLocations(w http.ResponseWriter, r *http.Request) {
	q := airdata.SearchQuery{
		City:           r.URL.Query().Get("city"),
		Country:        r.URL.Query().Get("country"),
		ExcludeUnknown: boolParam(r, "exclude_unknown"),
		ForceRefresh:   boolParam(r, "force_refresh"),
	}

	var fieldErrors []models.FieldError
	q.Latitude = floatParam(r, "latitude", &fieldErrors)
	q.Longitude = floatParam(r, "longitude", &fieldErrors)
	q.MinLat = floatParam(r, "min_lat", &fieldErrors)
	q.MinLon = floatParam(r, "min_lon", &fieldErrors)
	q.MaxLat = floatParam(r, "max_lat", &fieldErrors)
	q.MaxLon = floatParam(r, "max_lon", &fieldErrors)

	if radius := floatParam(r, "radius", &fieldErrors); radius != nil {
		q.RadiusKM = *radius
	}
	if limit := intParam(r, "limit", &fieldErrors); limit != nil {
		q.Limit = *limit
	}
	if page := intParam(r, "page", &fieldErrors); page != nil {
		q.Page = *page
	}
	if params := r.URL.Query().Get("parameters"); params != "" {
		for _, p := range strings.Split(params, ",") {
			if p = strings.TrimSpace(p); p != "" {
				q.Parameters = append(q.Parameters, p)
			}
		}
	}

	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	locations, err := h.svc.SearchLocations(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, locations)
}

// GetMeasurements handles GET /v1/measurements/{locationId}.
func (h *AirDataHandler) GetMeasurements(w http.ResponseWriter, r *http.Request) {
	ident := chi.URLParam(r, "locationId")
	if ident == "" {
		response.BadRequest(w, r, "location identifier is required", nil)
		return
	}

	detail, err := h.svc.FetchMeasurements(r.Context(), ident, boolParam(r, "force_refresh"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, detail)
}

// GetStoredLocations handles GET /v1/stored-locations.
func (h *AirDataHandler) GetStoredLocations(w http.ResponseWriter, r *http.Request) {
	var fieldErrors []models.FieldError
	page, size := 1, 10
	if p := intParam(r, "page", &fieldErrors); p != nil {
		page = *p
	}
	if s := intParam(r, "size", &fieldErrors); s != nil {
		size = *s
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	stored, err := h.svc.StoredLocations(r.Context(), page, size)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, stored)
}

// GetStoredMeasurements handles GET /v1/stored-measurements/{locationName}.
func (h *AirDataHandler) GetStoredMeasurements(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "locationName")
	if name == "" {
		response.BadRequest(w, r, "location name is required", nil)
		return
	}

	var fieldErrors []models.FieldError
	start := timeParam(r, "start", &fieldErrors)
	end := timeParam(r, "end", &fieldErrors)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	ms, err := h.svc.StoredMeasurements(r.Context(), name, r.URL.Query().Get("parameter"), start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, ms)
}

// SuggestCities handles GET /v1/cities/suggest.
func (h *AirDataHandler) SuggestCities(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < 2 {
		response.BadRequest(w, r, "query must be at least 2 characters", []models.FieldError{
			{Field: "q", Message: "must be at least 2 characters", Code: "too_short"},
		})
		return
	}

	cities, err := h.svc.SuggestCities(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, cities)
}

// writeServiceError maps domain errors onto problem+json responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, airdata.ErrNoLocations),
		errors.Is(err, airdata.ErrLocationNotFound),
		errors.Is(err, airdata.ErrStationGone),
		errors.Is(err, airdata.ErrNoMeasurements):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, airdata.ErrUpstreamUnavailable):
		response.ServiceUnavailable(w, r, "air quality provider is unavailable")
	case airdata.IsClientError(err):
		response.BadRequest(w, r, "upstream rejected the request: "+err.Error(), nil)
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

func floatParam(r *http.Request, name string, fieldErrors *[]models.FieldError) *float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*fieldErrors = append(*fieldErrors, models.FieldError{
			Field: name, Message: "must be a number", Code: "invalid",
		})
		return nil
	}
	return &v
}

func intParam(r *http.Request, name string, fieldErrors *[]models.FieldError) *int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*fieldErrors = append(*fieldErrors, models.FieldError{
			Field: name, Message: "must be an integer", Code: "invalid",
		})
		return nil
	}
	return &v
}

func timeParam(r *http.Request, name string, fieldErrors *[]models.FieldError) *time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		*fieldErrors = append(*fieldErrors, models.FieldError{
			Field: name, Message: "must be an RFC3339 timestamp", Code: "invalid",
		})
		return nil
	}
	return &t
}

package openaq_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherwes/weatherwes/internal/airdata"
	"github.com/weatherwes/weatherwes/internal/airdata/openaq"
)

func TestClient_FetchLocationsByCity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/locations", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Amsterdam", q.Get("city"))
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "desc", q.Get("sort"))
		assert.Equal(t, "lastUpdated", q.Get("order_by"))
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		response := map[string]interface{}{
			"results": []map[string]interface{}{
				{
					"id":   2178,
					"name": "Amsterdam-Vondelpark",
					"city": "Amsterdam",
					"country": map[string]interface{}{
						"id":   94,
						"code": "NL",
						"name": "Netherlands",
					},
					"coordinates": map[string]float64{
						"latitude":  52.3597,
						"longitude": 4.8661,
					},
					"lastUpdated": "2026-03-01T11:00:00Z",
					"parameters": []interface{}{
						"pm25",
						map[string]interface{}{"parameter": "no2"},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := openaq.NewClient(openaq.ClientConfig{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		HTTPClient: http.DefaultClient,
	})

	locations, err := client.FetchLocationsByCity(context.Background(), "Amsterdam")
	require.NoError(t, err)
	require.Len(t, locations, 1)

	loc := locations[0]
	assert.Equal(t, 2178, loc.ID)
	assert.Equal(t, "Amsterdam-Vondelpark", loc.Name)
	require.NotNil(t, loc.City)
	assert.Equal(t, "Amsterdam", *loc.City)
	assert.Equal(t, "NL", loc.Country.Code)
	assert.Equal(t, "Netherlands", loc.Country.Name)
	require.NotNil(t, loc.Coordinates)
	assert.Equal(t, 52.3597, loc.Coordinates.Latitude)
	require.NotNil(t, loc.LastUpdated)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), loc.LastUpdated.UTC())

	// Parameter list tolerates both string and object shapes.
	assert.Equal(t, []string{"pm25", "no2"}, loc.Parameters)
	assert.True(t, loc.IsActive)
}

func TestClient_FetchLocationsByCity_CountryAsString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"results": []map[string]interface{}{
				{"id": 1, "name": "Station", "country": "NL"},
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := openaq.NewClient(openaq.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	locations, err := client.FetchLocationsByCity(context.Background(), "Amsterdam")
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "NL", locations[0].Country.Code)
	assert.Nil(t, locations[0].Coordinates)
}

func TestClient_LocationExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("limit"))

		var results []map[string]interface{}
		if q.Get("id") == "2178" {
			results = append(results, map[string]interface{}{"id": 2178, "name": "Known"})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
	}))
	defer server.Close()

	client := openaq.NewClient(openaq.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	exists, err := client.LocationExists(context.Background(), 2178)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.LocationExists(context.Background(), 9999)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClient_FindLocationByName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var results []map[string]interface{}
		if r.URL.Query().Get("name") == "Vondelpark" {
			results = append(results,
				map[string]interface{}{"id": 2178, "name": "Amsterdam-Vondelpark"},
				map[string]interface{}{"id": 2179, "name": "Vondelpark-Zuid"},
			)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
	}))
	defer server.Close()

	client := openaq.NewClient(openaq.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	// First hit wins.
	loc, err := client.FindLocationByName(context.Background(), "Vondelpark")
	require.NoError(t, err)
	assert.Equal(t, 2178, loc.ID)

	_, err = client.FindLocationByName(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, airdata.ErrLocationNotFound)
}

func TestClient_FetchMeasurements_VariantProbing(t *testing.T) {
	var variantsSeen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/measurements", r.URL.Path)
		q := r.URL.Query()

		// The "id" variant is the first one this deployment answers with data.
		var results []map[string]interface{}
		for _, variant := range []string{"locations", "location", "id", "entity"} {
			if q.Get(variant) != "" {
				variantsSeen = append(variantsSeen, variant)
				if variant == "id" {
					results = append(results, map[string]interface{}{
						"location":   "Amsterdam-Vondelpark",
						"locationId": 2178,
						"parameter":  map[string]interface{}{"parameter": "pm25"},
						"value":      12.5,
						"unit":       "µg/m³",
						"date": map[string]interface{}{
							"utc":   "2026-03-01T11:00:00Z",
							"local": "2026-03-01T12:00:00+01:00",
						},
					})
				}
				break
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
	}))
	defer server.Close()

	client := openaq.NewClient(openaq.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	measurements, err := client.FetchMeasurements(context.Background(), 2178)
	require.NoError(t, err)

	// Probed in order, stopping at the first variant with data.
	assert.Equal(t, []string{"locations", "location", "id"}, variantsSeen)

	require.Len(t, measurements, 1)
	m := measurements[0]
	assert.Equal(t, "Amsterdam-Vondelpark", m.LocationName)
	assert.Equal(t, "2178", m.LocationKey)
	assert.Equal(t, "pm25", m.Parameter)
	assert.Equal(t, 12.5, m.Value)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), m.MeasuredAt.UTC())
}

func TestClient_FetchMeasurements_AllVariantsEmpty(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer server.Close()

	client := openaq.NewClient(openaq.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	measurements, err := client.FetchMeasurements(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, measurements)
	assert.Equal(t, 4, requests)
}

func TestClient_FetchMeasurements_AllVariantsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := openaq.NewClient(openaq.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	_, err := client.FetchMeasurements(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, airdata.IsClientError(err))
}

func TestClient_FetchLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/measurements", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2178", q.Get("location_id"))
		assert.Equal(t, "5", q.Get("limit"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{
					"location":   "Amsterdam-Vondelpark",
					"locationId": 2178,
					"parameter":  "no2",
					"value":      31.2,
					"unit":       "µg/m³",
					"date":       "2026-03-01T10:00:00Z",
				},
			},
		})
	}))
	defer server.Close()

	client := openaq.NewClient(openaq.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	latest, err := client.FetchLatest(context.Background(), 2178)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "no2", latest[0].Parameter)
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := openaq.NewClient(openaq.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	_, err := client.FetchLocationsByCity(context.Background(), "Amsterdam")
	require.Error(t, err)
	assert.False(t, airdata.IsClientError(err))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	// No HTTPClient override, so the resilient transport is in play.
	client := openaq.NewClient(openaq.ClientConfig{BaseURL: server.URL})

	_, err := client.FetchLocationsByCity(context.Background(), "Amsterdam")
	require.Error(t, err)
	assert.False(t, airdata.IsClientError(err))

	// Initial attempt plus three retries.
	assert.Equal(t, int32(4), requests.Load())
}

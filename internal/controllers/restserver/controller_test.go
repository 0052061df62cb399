package restserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/tempoaqi/internal/earthdata"
	"github.com/chrissnell/tempoaqi/internal/metrics"
	"github.com/chrissnell/tempoaqi/internal/query"
	"github.com/chrissnell/tempoaqi/internal/types"
	"github.com/chrissnell/tempoaqi/pkg/aqi"
	"github.com/chrissnell/tempoaqi/pkg/config"
)

type fakeQuerier struct {
	mu   sync.Mutex
	got  []query.Request
	resp func(req query.Request) (*query.Response, error)
}

func (f *fakeQuerier) Query(ctx context.Context, req query.Request) (*query.Response, error) {
	f.mu.Lock()
	f.got = append(f.got, req)
	f.mu.Unlock()
	return f.resp(req)
}

// echoResponse returns one scored point at the center.
func echoResponse(req query.Request) (*query.Response, error) {
	v := 100
	set := types.PollutantSet{
		types.NO2: {Troposphere: 3e15, Stratosphere: types.Float(3e15), QualityFlag: types.Float(0)},
	}
	idx := types.IndexResult{Value: &v, Category: aqi.Category(&v, aqi.Spanish), Color: aqi.Color(&v)}
	return &query.Response{
		Center:         req.Center,
		RadiusMeters:   10000,
		TotalPoints:    1,
		PointsWithData: 1,
		Results:        []types.QueryResult{types.NewQueryResult(req.Center, set, idx)},
	}, nil
}

func newTestHandler(t *testing.T, q Querier) http.Handler {
	t.Helper()
	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, config.ServerData{AllowedOrigins: []string{"*"}}, q, metrics.New(), nil)
	require.NoError(t, err)
	return ctrl.Handler()
}

func post(h http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQueryTempo(t *testing.T) {
	q := &fakeQuerier{resp: echoResponse}
	h := newTestHandler(t, q)

	for _, path := range []string{"/", "/api/tempo"} {
		t.Run(path, func(t *testing.T) {
			rec := post(h, path, `{"lat": 19.43, "lon": -99.13}`)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

			var got map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, map[string]any{"lat": 19.43, "lon": -99.13}, got["coordenada_central"])
			assert.Equal(t, 10000.0, got["radio_metros"])
			assert.Equal(t, 1.0, got["total_puntos"])
			assert.Equal(t, 1.0, got["puntos_con_datos"])

			results := got["resultados"].([]any)
			require.Len(t, results, 1)
			r := results[0].(map[string]any)
			assert.Equal(t, true, r["tiene_datos"])
			assert.Equal(t, 100.0, r["aqi_satelital"])
			assert.Equal(t, "Moderado", r["categoria"])
			assert.Equal(t, "#FFFF00", r["color"])

			no2 := r["contaminantes"].(map[string]any)["NO2"].(map[string]any)
			assert.Equal(t, 3e15, no2["troposphere"])
			assert.NotContains(t, no2, "uncertainty", "absent quantities are omitted")
		})
	}

	require.Len(t, q.got, 2)
	assert.Equal(t, types.SamplePoint{Lat: 19.43, Lon: -99.13}, q.got[0].Center)
}

func TestQueryTempoPassesOptions(t *testing.T) {
	q := &fakeQuerier{resp: echoResponse}
	rec := post(newTestHandler(t, q), "/api/tempo", `{"lat": 0, "lon": 0, "num_coordenadas": 5, "radio": 2500}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, q.got, 1)
	assert.Equal(t, query.Request{Center: types.SamplePoint{}, Points: 5, RadiusMeters: 2500}, q.got[0])
}

func TestQueryTempoNoData(t *testing.T) {
	q := &fakeQuerier{resp: func(req query.Request) (*query.Response, error) {
		idx := types.IndexResult{Category: aqi.Category(nil, aqi.Spanish), Color: aqi.NoDataColor}
		return &query.Response{
			Center:      req.Center,
			TotalPoints: 1,
			Results:     []types.QueryResult{types.NewQueryResult(req.Center, nil, idx)},
		}, nil
	}}

	rec := post(newTestHandler(t, q), "/", `{"lat": 1, "lon": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"coordenada_central": {"lat": 1, "lon": 2},
		"radio_metros": 0,
		"total_puntos": 1,
		"puntos_con_datos": 0,
		"resultados": [{
			"lat": 1, "lon": 2,
			"tiene_datos": false,
			"contaminantes": {},
			"aqi_satelital": null,
			"categoria": "Sin datos",
			"color": "#808080"
		}]
	}`, rec.Body.String())
}

func TestQueryTempoBadRequest(t *testing.T) {
	q := &fakeQuerier{resp: func(req query.Request) (*query.Response, error) {
		return nil, fmt.Errorf("%w: out of range", query.ErrInvalidCoordinates)
	}}
	h := newTestHandler(t, q)

	tests := []struct {
		name string
		body string
	}{
		{"missing lon", `{"lat": 19.43}`},
		{"missing both", `{}`},
		{"null lat", `{"lat": null, "lon": 1}`},
		{"not json", `lat=1&lon=2`},
		{"string coordinate", `{"lat": "19.4", "lon": 1}`},
		{"out of range", `{"lat": 95, "lon": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(h, "/api/tempo", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Coordenadas requeridas"}`, rec.Body.String())
		})
	}

	assert.Len(t, q.got, 1, "only the well-formed request reaches the service")
}

func TestQueryTempoInternalError(t *testing.T) {
	q := &fakeQuerier{resp: func(req query.Request) (*query.Response, error) {
		return nil, fmt.Errorf("error authenticating: %w", earthdata.ErrAuthenticationFailed)
	}}

	rec := post(newTestHandler(t, q), "/", `{"lat": 1, "lon": 2}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "authenticating", "internal details are not leaked")
}

func TestQueryTempoMsgPack(t *testing.T) {
	h := newTestHandler(t, &fakeQuerier{resp: echoResponse})

	rec := post(h, "/api/tempo?format=msgpack", `{"lat": 19.43, "lon": -99.13}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))

	var got TempoResponse
	dec := msgpack.NewDecoder(bytes.NewReader(rec.Body.Bytes()))
	dec.SetCustomStructTag("json")
	require.NoError(t, dec.Decode(&got))
	assert.Equal(t, 1, got.PointsWithData)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "Moderado", got.Results[0].Category)
}

func TestPreflight(t *testing.T) {
	h := newTestHandler(t, &fakeQuerier{resp: func(query.Request) (*query.Response, error) {
		return nil, errors.New("must not be called")
	}})

	req := httptest.NewRequest(http.MethodOptions, "/api/tempo", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, rec.Body.String())

	// A bare OPTIONS is answered with an empty 200 as well.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCORSOnPost(t *testing.T) {
	h := newTestHandler(t, &fakeQuerier{resp: echoResponse})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lat": 1, "lon": 2}`))
	req.Header.Set("Origin", "https://aqi.example.org")
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"), "client request ids are echoed")
}

func TestMethodsAndRoutes(t *testing.T) {
	h := newTestHandler(t, &fakeQuerier{resp: echoResponse})

	tests := []struct {
		name   string
		method string
		target string
		status int
	}{
		{"get on query route", http.MethodGet, "/api/tempo", http.StatusMethodNotAllowed},
		{"unknown route", http.MethodPost, "/api/other", http.StatusNotFound},
		{"health", http.MethodGet, "/healthz", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t, &fakeQuerier{resp: echoResponse}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var got HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "tempoaqi", got.Service)
}

func TestNewControllerDefaults(t *testing.T) {
	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, config.ServerData{}, &fakeQuerier{resp: echoResponse}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:5000", ctrl.Server.Addr)

	_, err = NewController(context.Background(), &sync.WaitGroup{}, config.ServerData{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestStartControllerShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	ctrl, err := NewController(ctx, &wg, config.ServerData{ListenAddr: "127.0.0.1", Port: 0}, &fakeQuerier{resp: echoResponse}, nil, nil)
	require.NoError(t, err)
	ctrl.Server.Addr = "127.0.0.1:0"

	require.NoError(t, ctrl.StartController())
	cancel()
	wg.Wait()
}

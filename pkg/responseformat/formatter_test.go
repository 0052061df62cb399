package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Name  string   `json:"nombre"`
	Value *int     `json:"valor"`
	Tags  []string `json:"tags,omitempty"`
}

func TestWriteResponse(t *testing.T) {
	v := 7
	data := payload{Name: "x", Value: &v}

	tests := []struct {
		name        string
		target      string
		accept      string
		contentType string
	}{
		{"default json", "/", "", ContentTypeJSON},
		{"unknown format falls back to json", "/?format=xml", "", ContentTypeJSON},
		{"msgpack query", "/?format=msgpack", "", ContentTypeMsgPack},
		{"msgpack accept header", "/", ContentTypeMsgPack, ContentTypeMsgPack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()

			require.NoError(t, NewFormatter().WriteResponse(rec, req, http.StatusCreated, data))
			assert.Equal(t, http.StatusCreated, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))

			var got map[string]any
			if tt.contentType == ContentTypeMsgPack {
				require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &got))
			} else {
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			}
			assert.Equal(t, "x", got["nombre"], "json tags name the fields in both formats")
			assert.NotContains(t, got, "tags")
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	require.NoError(t, NewFormatter().WriteError(rec, req, http.StatusBadRequest, "Coordenadas requeridas"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Coordenadas requeridas"}`, rec.Body.String())
}

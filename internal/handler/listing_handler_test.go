package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/estate/internal/pkg/errcode"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type listingData struct {
	ID     string `json:"id"`
	City   string `json:"city"`
	Status string `json:"status"`
	Images []struct {
		URL     string `json:"url"`
		FileKey string `json:"file_key"`
	} `json:"images"`
}

func TestListingRoles(t *testing.T) {
	srv := setupRouter(t)
	buyer := srv.register(t, uuid.NewString()+"@example.com", "buyer")

	body := map[string]interface{}{"title": "x", "listing_type": "sale", "property_type": "house", "price": 1}
	env := srv.do(t, http.MethodPost, "/api/v1/listings", buyer, body)
	require.Equal(t, errcode.ErrForbidden, env.Code)
	env = srv.do(t, http.MethodPost, "/api/v1/listings", "", body)
	require.Equal(t, errcode.ErrUnauthorized, env.Code)
}

func TestListingLifecycle(t *testing.T) {
	srv := setupRouter(t)
	agent := srv.register(t, uuid.NewString()+"@example.com", "agent")
	other := srv.register(t, uuid.NewString()+"@example.com", "agent")
	city := "Town-" + uuid.NewString()

	env := srv.do(t, http.MethodPost, "/api/v1/listings", agent, map[string]interface{}{
		"title":         "Harbour view",
		"listing_type":  "rent",
		"property_type": "apartment",
		"price":         2500,
		"bedrooms":      2,
		"city":          city,
		"latitude":      -33.8568,
		"longitude":     151.2153,
	})
	require.Equal(t, 0, env.Code, env.Msg)
	var created listingData
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)

	env = srv.do(t, http.MethodGet, "/api/v1/listings?city="+city, "", nil)
	require.Equal(t, 0, env.Code)
	var page struct {
		Items []listingData `json:"items"`
		Total int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.EqualValues(t, 1, page.Total)

	env = srv.do(t, http.MethodGet, "/api/v1/listings/nearby?lat=-33.86&lng=151.21&radius_km=2", "", nil)
	require.Equal(t, 0, env.Code)
	require.Contains(t, string(env.Data), created.ID)
	env = srv.do(t, http.MethodGet, "/api/v1/listings/nearby?lat=-33.86", "", nil)
	require.Equal(t, errcode.ErrInvalid, env.Code)

	env = srv.do(t, http.MethodPut, "/api/v1/listings/"+created.ID+"/status", other, map[string]string{"status": "rented"})
	require.Equal(t, errcode.ErrForbidden, env.Code)
	env = srv.do(t, http.MethodPut, "/api/v1/listings/"+created.ID+"/status", agent, map[string]string{"status": "rented"})
	require.Equal(t, 0, env.Code)

	key := uploadImage(t, srv, agent, created.ID)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/"+key, nil)
	resp := httptest.NewRecorder()
	srv.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "image/png", resp.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(resp.Body.Bytes(), pngHeader))

	env = srv.do(t, http.MethodGet, "/api/v1/listings/"+created.ID, "", nil)
	require.Equal(t, 0, env.Code)
	var got listingData
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, "rented", got.Status)
	require.Len(t, got.Images, 1)

	env = srv.do(t, http.MethodDelete, "/api/v1/listings/"+created.ID, agent, nil)
	require.Equal(t, 0, env.Code)
	env = srv.do(t, http.MethodGet, "/api/v1/listings/"+created.ID, "", nil)
	require.Equal(t, errcode.ErrNotFound, env.Code)
}

func TestUploadRejectedAtImageCapLeavesNoFile(t *testing.T) {
	srv := setupRouter(t)
	agent := srv.register(t, uuid.NewString()+"@example.com", "agent")
	env := srv.do(t, http.MethodPost, "/api/v1/listings", agent, map[string]interface{}{
		"title": "Loft", "listing_type": "sale", "property_type": "apartment", "price": 1,
	})
	require.Equal(t, 0, env.Code, env.Msg)
	var created listingData
	require.NoError(t, json.Unmarshal(env.Data, &created))

	for i := 0; i < 20; i++ {
		uploadImage(t, srv, agent, created.ID)
	}
	env = postImage(t, srv, agent, created.ID)
	require.Equal(t, errcode.ErrTooMany, env.Code)

	stored, err := filepath.Glob(filepath.Join(srv.fileDir, created.ID+"_*"))
	require.NoError(t, err)
	require.Len(t, stored, 20)
}

func TestGeocodeWithoutProviders(t *testing.T) {
	srv := setupRouter(t)
	token := srv.register(t, uuid.NewString()+"@example.com", "buyer")
	env := srv.do(t, http.MethodGet, "/api/v1/geocode?address=Paris", token, nil)
	require.Equal(t, errcode.ErrGeocodeUnavailable, env.Code)
}

func uploadImage(t *testing.T, srv *testServer, token, listingID string) string {
	t.Helper()
	env := postImage(t, srv, token, listingID)
	require.Equal(t, 0, env.Code, env.Msg)
	var img struct {
		FileKey string `json:"file_key"`
		URL     string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &img))
	require.Contains(t, img.URL, "/api/v1/files/"+img.FileKey)
	return img.FileKey
}

func postImage(t *testing.T, srv *testServer, token, listingID string) envelope {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write(append(append([]byte{}, pngHeader...), make([]byte, 64)...))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/"+listingID+"/images", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return srv.serve(t, req)
}

package apid

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/vaultbox/emts/internal/models"
)

var testSecret = []byte("test-bearer-secret")

type fakeStore struct {
	queryResult   models.Page
	getResult     models.Message
	getOK         bool
	markReadOK    bool
	deleteOK      bool
	lastFilter    models.Filter
	lastID        string
	lastRecipient string
}

func (f *fakeStore) Query(filter models.Filter, page, pageSize int, sortBy models.SortField, sortOrder models.SortOrder) models.Page {
	f.lastFilter = filter
	return f.queryResult
}

func (f *fakeStore) Get(id string, recipientFilter string) (models.Message, bool) {
	f.lastID = id
	f.lastRecipient = recipientFilter
	return f.getResult, f.getOK
}

func (f *fakeStore) MarkRead(id string, recipientFilter string, read bool) bool {
	f.lastID = id
	return f.markReadOK
}

func (f *fakeStore) Delete(id string, recipientFilter string) bool {
	f.lastID = id
	return f.deleteOK
}

func validToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
		"iss": "emts-apid",
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	router := NewRouter(&fakeStore{}, testSecret, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMessagesRequiresBearerToken(t *testing.T) {
	router := NewRouter(&fakeStore{}, testSecret, nil)
	req := httptest.NewRequest(http.MethodGet, "/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMessagesRejectsInvalidToken(t *testing.T) {
	router := NewRouter(&fakeStore{}, testSecret, nil)
	req := httptest.NewRequest(http.MethodGet, "/messages", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListMessagesWithValidToken(t *testing.T) {
	store := &fakeStore{queryResult: models.Page{
		Items:      []models.ListItem{{ID: "msg1"}},
		TotalItems: 1,
		TotalPages: 1,
	}}
	router := NewRouter(store, testSecret, nil)

	req := httptest.NewRequest(http.MethodGet, "/messages?search=budget&page=2&page_size=10", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "budget", store.lastFilter.Search)

	var page models.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.TotalItems)
}

func TestListMessagesRejectsInvalidSortBy(t *testing.T) {
	router := NewRouter(&fakeStore{}, testSecret, nil)
	req := httptest.NewRequest(http.MethodGet, "/messages?sort_by=not_a_column", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessageNotFound(t *testing.T) {
	store := &fakeStore{getOK: false}
	router := NewRouter(store, testSecret, nil)

	req := httptest.NewRequest(http.MethodGet, "/messages/missing-id", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "missing-id", store.lastID)
}

func TestGetMessageFound(t *testing.T) {
	store := &fakeStore{getOK: true, getResult: models.Message{ID: "found-id", Sender: "a@example.com"}}
	router := NewRouter(store, testSecret, nil)

	req := httptest.NewRequest(http.MethodGet, "/messages/found-id", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var msg models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	require.Equal(t, "found-id", msg.ID)
}

func TestMarkReadSuccessReturnsNoContent(t *testing.T) {
	store := &fakeStore{markReadOK: true}
	router := NewRouter(store, testSecret, nil)

	body := strings.NewReader(`{"is_read":true}`)
	req := httptest.NewRequest(http.MethodPatch, "/messages/msg1/read", body)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMarkReadInvalidJSONBody(t *testing.T) {
	store := &fakeStore{markReadOK: true}
	router := NewRouter(store, testSecret, nil)

	req := httptest.NewRequest(http.MethodPatch, "/messages/msg1/read", strings.NewReader(`not json`))
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteMessageNotFound(t *testing.T) {
	store := &fakeStore{deleteOK: false}
	router := NewRouter(store, testSecret, nil)

	req := httptest.NewRequest(http.MethodDelete, "/messages/msg1", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMessageSuccess(t *testing.T) {
	store := &fakeStore{deleteOK: true}
	router := NewRouter(store, testSecret, nil)

	req := httptest.NewRequest(http.MethodDelete, "/messages/msg1", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

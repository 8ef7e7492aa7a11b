package listing

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newListingRouter(svc *Service) *gin.Engine {
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), NewHandler(svc))
	return r
}

func getImages(r http.Handler, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/images"+query, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerListImages(t *testing.T) {
	r := newListingRouter(setupListing(t, 4))

	rec := getImages(r, "?limit=2&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var page Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "img-02", page.Items[0].ID)
	assert.Equal(t, "img-01", page.Items[1].ID)
}

func TestHandlerListImagesDefaultsAndShape(t *testing.T) {
	r := newListingRouter(setupListing(t, 0))

	rec := getImages(r, "?limit=oops&offset=-9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":0,"limit":20,"offset":0,"items":[]}`, rec.Body.String())
}

func TestHandlerListImagesStoreFailure(t *testing.T) {
	store := new(MockImageStore)
	store.On("List", mock.Anything, 20, 0).Return(nil, int64(0), errors.New("boom"))
	r := newListingRouter(NewService(testConfig(), store, nil))

	rec := getImages(r, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to list images"}`, rec.Body.String())
}

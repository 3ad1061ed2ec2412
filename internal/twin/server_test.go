package twin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/remote"
)

func setupTwin(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s := New(opts)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func doJSON(t *testing.T, method, url string, body any, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestProfile_PatchThenGet(t *testing.T) {
	_, srv := setupTwin(t, Options{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/profiles/user-7", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/profiles/user-7", map[string]any{"coins": 40, "id": "evil"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/profiles/user-7", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "user-7", doc["id"])
	assert.Equal(t, float64(40), doc["coins"])
	assert.Equal(t, []any{}, doc["favorites"])
}

func TestFavorites_JoinRowsReflectedInProfile(t *testing.T) {
	s, srv := setupTwin(t, Options{})

	doJSON(t, http.MethodPut, srv.URL+"/profiles/u1/favorites/p1", nil, "")
	doJSON(t, http.MethodPut, srv.URL+"/profiles/u1/favorites/p2", nil, "")
	doJSON(t, http.MethodPut, srv.URL+"/profiles/u1/favorites/p1", nil, "")
	doJSON(t, http.MethodDelete, srv.URL+"/profiles/u1/favorites/p1", nil, "")

	assert.Equal(t, []string{"p2"}, s.Memory.Favorites("u1"))
	doc, ok := s.Memory.Profile("u1")
	require.True(t, ok)
	assert.Equal(t, []any{"p2"}, doc["favorites"])
}

func TestMissions_UpsertByCompositeKey(t *testing.T) {
	s, srv := setupTwin(t, Options{})

	resp := doJSON(t, http.MethodPut, srv.URL+"/profiles/u1/missions/first_step",
		model.MissionProgress{Progress: 1, Completed: true}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doJSON(t, http.MethodPut, srv.URL+"/profiles/u1/missions/first_step",
		model.MissionProgress{Progress: 1, Completed: true, Claimed: true}, "")

	rows := s.Memory.Missions("u1")
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Claimed)

	resp = doJSON(t, http.MethodPut, srv.URL+"/profiles/u1/missions/x",
		model.MissionProgress{Claimed: true}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestReviews_ValidationAndInsert(t *testing.T) {
	s, srv := setupTwin(t, Options{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/reviews", model.Review{ProductID: "p1", Rating: 6, Comment: "x"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/reviews", model.Review{ProductID: "p1", Rating: 4, Comment: "  "}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/reviews", model.Review{ProductID: "p1", Rating: 4, Comment: "solid"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reviews := s.Memory.Reviews()
	require.Len(t, reviews, 1)
	assert.NotEmpty(t, reviews[0].ID)
	assert.False(t, reviews[0].CreatedAt.IsZero())
}

func TestAuth_IssueVerifyAndOwnerOnly(t *testing.T) {
	s, srv := setupTwin(t, Options{TokenSecret: "test-secret", RequireAuth: true})

	pair, err := s.Tokens.Issue("user-7", "ada@example.com", nil)
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, srv.URL+"/auth/verify", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "user-7", body["user_id"])

	resp = doJSON(t, http.MethodGet, srv.URL+"/auth/verify", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/profiles/user-7", map[string]any{"coins": 1}, pair.AccessToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/profiles/user-8", map[string]any{"coins": 1}, pair.AccessToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/profiles/user-7", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTokens_RejectOtherSecret(t *testing.T) {
	a := NewTokens("a", 0)
	b := NewTokens("b", 0)
	pair, err := a.Issue("u1", "", nil)
	require.NoError(t, err)

	_, err = b.Verify(pair.AccessToken)
	assert.Error(t, err)

	sub, err := a.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", sub)

	_, err = a.Issue("", "", nil)
	assert.Error(t, err)
}

func TestOrders_OwnerAndTotals(t *testing.T) {
	s, srv := setupTwin(t, Options{TokenSecret: "k", Seed: &Seed{
		Products: []model.Product{{ID: "p1", PriceCents: 1000, Stock: 5}},
	}})
	pair, err := s.Tokens.Issue("user-7", "", nil)
	require.NoError(t, err)

	lines := []model.CartLine{{ProductID: "p1", Quantity: 2, PriceSnapshot: 1000}}

	bad := remote.Order{UserID: "user-7", Lines: lines, SubtotalCents: 2000, TotalCents: 2000, DiscountPercent: 10}
	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", bad, pair.AccessToken)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	wrongOwner := remote.Order{UserID: "user-8", Lines: lines, SubtotalCents: 2000, TotalCents: 2000}
	resp = doJSON(t, http.MethodPost, srv.URL+"/orders", wrongOwner, pair.AccessToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	good := remote.Order{UserID: "user-7", Lines: lines, SubtotalCents: 2000, TotalCents: 1800, DiscountPercent: 10}
	resp = doJSON(t, http.MethodPost, srv.URL+"/orders", good, pair.AccessToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Len(t, s.Memory.Orders(), 1)
	assert.Equal(t, 3, s.Memory.Products()[0].Stock)
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(`
products:
  - id: p1
    name: Mug
    price_cents: 1200
    stock: 4
    category: kitchen
reviews:
  - id: r1
    product_id: p1
    rating: 4
    comment: nice
    author_name: Ada
    created_at: 2026-01-02T03:04:05Z
profiles:
  user-7:
    coins: 25
    cart:
      - product_id: p1
        quantity: 1
        price_cents: 1200
favorites:
  user-7: [p1]
missions:
  user-7:
    - mission_id: first_step
      progress: 1
      completed: true
`))
	require.NoError(t, err)

	m := NewMemory()
	seed.Apply(m)

	require.Len(t, m.Products(), 1)
	assert.Equal(t, int64(1200), m.Products()[0].PriceCents)
	require.Len(t, m.Reviews(), 1)
	assert.Equal(t, 2026, m.Reviews()[0].CreatedAt.Year())

	doc, ok := m.Profile("user-7")
	require.True(t, ok)
	pd := model.DecodeProfile(doc)
	require.NotNil(t, pd.Coins)
	assert.Equal(t, int64(25), *pd.Coins)
	assert.True(t, pd.CartPresent)
	assert.Equal(t, []string{"p1"}, pd.Favorites)
	assert.Len(t, m.Missions("user-7"), 1)
}

func TestParseSeed_RejectsUnknownFields(t *testing.T) {
	_, err := ParseSeed([]byte("prodcts: []\n"))
	assert.Error(t, err)

	seed, err := ParseSeed(nil)
	require.NoError(t, err)
	assert.Empty(t, seed.Products)
}

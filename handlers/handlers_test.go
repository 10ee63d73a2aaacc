package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"duel-engine/middleware"
	"duel-engine/models"
	"duel-engine/services"
	"duel-engine/testhelpers"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "gateway-secret"

type stubCatalog struct {
	down bool
}

func (c stubCatalog) ResolveProblem(_ context.Context, contestID int, index string) (*services.ProblemInfo, error) {
	if c.down {
		return nil, errors.New("judge unavailable")
	}
	if contestID == 1000 && index == "A" {
		return &services.ProblemInfo{ContestID: 1000, Index: "A", Name: "Easy Sum", Rating: 1200}, nil
	}
	return nil, nil
}

func setupApp(t *testing.T, catalog services.ProblemCatalog) *fiber.App {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	handles := services.NewGormHandleStore(db)
	challenges := services.NewChallengeService(db, handles, nil, nil, services.DefaultChallengeConfig(), zap.NewNop())
	tournaments := services.NewTournamentService(db, challenges, handles, nil, catalog, nil, services.DefaultTournamentConfig(), zap.NewNop())
	challenges.SetCompletionListener(tournaments)

	app := fiber.New()
	SetupHealthRoutes(app, db)
	app.Use(middleware.GatewayAuthMiddleware(testToken, zap.NewNop()))
	secured := app.Group("/", middleware.UserContextMiddleware())
	SetupChallengeRoutes(secured, challenges, catalog, handles)
	SetupTournamentRoutes(secured, tournaments)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, user string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func TestGatewayAndUserContext(t *testing.T) {
	app := setupApp(t, stubCatalog{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/challenges/recent", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/challenges/recent", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	status, body := call(t, app, http.MethodGet, "/challenges/recent", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["error"], "X-User-ID")

	status, _ = call(t, app, http.MethodGet, "/challenges/recent", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestChallengeRoutes(t *testing.T) {
	app := setupApp(t, stubCatalog{})

	for _, u := range []string{"alice", "bob"} {
		status, body := call(t, app, http.MethodPost, "/handles", u, map[string]string{"scope_id": "g", "handle": " cf_" + u + " "})
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "cf_"+u, body["handle"])
	}

	create := map[string]interface{}{"scope_id": "g", "contest_id": 1000, "index": "A", "length_minutes": 40, "participant_ids": []string{"alice", "bob"}}
	status, body := call(t, app, http.MethodPost, "/challenges", "alice", create)
	require.Equal(t, http.StatusCreated, status)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "Easy Sum", body["problem_name"])
	assert.Equal(t, "alice", body["host_id"])

	status, body = call(t, app, http.MethodPost, "/challenges", "alice", create)
	assert.Equal(t, http.StatusBadRequest, status, "both users already enrolled")
	assert.Equal(t, string(services.CodeInvalidSpec), body["code"])

	unknown := map[string]interface{}{"scope_id": "g", "contest_id": 5, "index": "Z", "length_minutes": 40, "participant_ids": []string{"alice"}}
	status, _ = call(t, app, http.MethodPost, "/challenges", "alice", unknown)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, app, http.MethodGet, "/challenges/active?user_ids=alice,carol", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	active, _ := body["active"].(map[string]interface{})
	assert.Contains(t, active, "alice")
	assert.NotContains(t, active, "carol")

	status, _ = call(t, app, http.MethodGet, "/challenges/active", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, app, http.MethodGet, "/users/bob/challenges/active", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["challenges"], 1)

	status, _ = call(t, app, http.MethodPost, "/challenges/"+id+"/cancel", "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, app, http.MethodPost, "/challenges/missing/cancel", "alice", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, body = call(t, app, http.MethodPost, "/challenges/"+id+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.ChallengeStatusCancelled, body["status"])
}

func TestChallengeRoutes_CatalogDown(t *testing.T) {
	app := setupApp(t, stubCatalog{down: true})
	create := map[string]interface{}{"scope_id": "g", "contest_id": 1000, "index": "A", "length_minutes": 40, "participant_ids": []string{"alice"}}
	status, body := call(t, app, http.MethodPost, "/challenges", "alice", create)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, string(services.CodeExternal), body["code"])
}

func TestTournamentRoutes(t *testing.T) {
	app := setupApp(t, stubCatalog{})
	for _, u := range []string{"alice", "bob", "carol"} {
		status, _ := call(t, app, http.MethodPost, "/handles", u, map[string]string{"scope_id": "g", "handle": "cf_" + u})
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := call(t, app, http.MethodPost, "/tournaments", "host", map[string]interface{}{
		"scope_id": "g", "name": "Cup", "format": "swiss", "length_minutes": 40, "round_count": 2,
		"participant_ids": []string{"alice", "bob", "carol"},
	})
	require.Equal(t, http.StatusCreated, status)
	id := body["id"].(string)
	assert.Equal(t, "host", body["host_id"])

	status, body = call(t, app, http.MethodPost, "/tournaments/"+id+"/rounds", "host", map[string]interface{}{
		"contest_id": 1000, "index": "A",
		"pairings": []map[string]string{{"player1_id": "alice", "player2_id": "bob"}, {"player1_id": "carol"}},
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(1), body["number"])

	status, body = call(t, app, http.MethodGet, "/tournaments/"+id+"/standings", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	standings := body["standings"].([]interface{})
	require.Len(t, standings, 3)
	assert.Equal(t, "carol", standings[0].(map[string]interface{})["user_id"])

	status, body = call(t, app, http.MethodGet, "/tournaments/"+id+"/rounds/1/matches", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["matches"], 2)

	status, _ = call(t, app, http.MethodGet, "/tournaments/"+id+"/rounds/9", "alice", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = call(t, app, http.MethodGet, "/tournaments/history?scope_id=g", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total_items"])

	status, body = call(t, app, http.MethodGet, "/tournaments/"+id+"/recap", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Swiss", body["format"])

	status, _ = call(t, app, http.MethodPost, "/tournaments/"+id+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, app, http.MethodPost, "/tournaments/"+id+"/cancel", "host", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, app, http.MethodGet, "/tournaments/missing/standings", "alice", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusConflict, statusFor(services.CodeConflict))
	assert.Equal(t, fiber.StatusInternalServerError, statusFor(services.CodeDatabase))
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"huntparty/live"
	"huntparty/middleware"
	"huntparty/models"
	"huntparty/services"
	"huntparty/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// region Fixture

type testServer struct {
	app *fiber.App
	st  *store.MemoryStore
	hub *live.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	middleware.InitAuth("handlers-test-secret-at-least-32-chars", time.Hour)

	st := store.NewMemoryStore()
	hub := live.NewHub()
	notifier := live.NewNotifier(hub, st, time.Second)
	eng := services.NewEngine(st, services.EngineOptions{Publisher: notifier, Timeout: time.Second})
	parties := services.NewPartyService(st, hub, notifier)

	Init(Deps{Store: st, Engine: eng, Parties: parties, Hub: hub, Timeout: time.Second})

	app := fiber.New()
	RegisterRoutes(app, nil)
	return &testServer{app: app, st: st, hub: hub}
}

type response struct {
	Status int
	Body   map[string]interface{}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}

// register signs a user up and returns their token and id.
func (s *testServer) register(t *testing.T, username string) (string, uint) {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username": username,
		"password": "correct horse battery",
	})
	require.Equal(t, 201, resp.Status, resp.Body)
	user := resp.Body["user"].(map[string]interface{})
	return resp.Body["token"].(string), uint(user["id"].(float64))
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	admin := &models.User{Username: "root", IsAdmin: true}
	require.NoError(t, s.st.CreateUser(context.Background(), admin))
	token, err := middleware.GenerateToken(admin)
	require.NoError(t, err)
	return token
}

func nested(body map[string]interface{}, keys ...string) map[string]interface{} {
	cur := body
	for _, k := range keys {
		next, _ := cur[k].(map[string]interface{})
		cur = next
	}
	return cur
}

// endregion

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token, id := s.register(t, "ada")

	me := s.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, 200, me.Status)
	assert.Equal(t, float64(id), nested(me.Body, "user")["id"])
	assert.Equal(t, float64(0), nested(me.Body, "user")["total_points"])

	dup := s.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{"username": "ada", "password": "another password"})
	assert.Equal(t, 409, dup.Status)

	short := s.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{"username": "bob", "password": "short"})
	assert.Equal(t, 400, short.Status)

	bad := s.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"username": "ada", "password": "wrong password"})
	assert.Equal(t, 401, bad.Status)
	assert.Equal(t, false, bad.Body["success"])

	ok := s.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"username": "ada", "password": "correct horse battery"})
	require.Equal(t, 200, ok.Status)
	assert.NotEmpty(t, ok.Body["token"])

	assert.Equal(t, 401, s.do(t, http.MethodGet, "/api/users/me", "", nil).Status)
}

func TestPartyCompetitionFlow(t *testing.T) {
	s := newTestServer(t)
	alice, aliceID := s.register(t, "alice")
	bob, bobID := s.register(t, "bob")
	carol, _ := s.register(t, "carol")

	created := s.do(t, http.MethodPost, "/api/parties", alice, fiber.Map{"name": "Hunters"})
	require.Equal(t, 201, created.Status, created.Body)
	party := nested(created.Body, "party")
	partyID := uint(party["id"].(float64))
	code := party["invite_code"].(string)

	joined := s.do(t, http.MethodPost, "/api/parties/join", bob, fiber.Map{"invite_code": strings.ToLower(code)})
	require.Equal(t, 200, joined.Status, joined.Body)

	logged := s.do(t, http.MethodPost, "/api/applications", bob, fiber.Map{"company": "Initech", "role": "SRE"})
	require.Equal(t, 201, logged.Status, logged.Body)
	assert.Equal(t, float64(1), nested(logged.Body, "outcome")["total_points"])

	base := fmt.Sprintf("/api/parties/%d", partyID)

	board := s.do(t, http.MethodGet, base+"/leaderboard", alice, nil)
	require.Equal(t, 200, board.Status)
	entries := board.Body["leaderboard"].([]interface{})
	require.Len(t, entries, 2)
	assert.Equal(t, float64(bobID), entries[0].(map[string]interface{})["user_id"])
	assert.Equal(t, float64(aliceID), entries[1].(map[string]interface{})["user_id"])

	rivalry := s.do(t, http.MethodGet, base+"/rivalry", alice, nil)
	require.Equal(t, 200, rivalry.Status)
	ahead := nested(rivalry.Body, "rivalry", "user_ahead")
	assert.Equal(t, float64(bobID), ahead["user_id"])
	assert.Equal(t, float64(1), ahead["gap"])
	assert.Nil(t, nested(rivalry.Body, "rivalry")["user_behind"])

	activity := s.do(t, http.MethodGet, base+"/activity?limit=5", alice, nil)
	require.Equal(t, 200, activity.Status)
	events := nested(activity.Body, "activity")["events"].([]interface{})
	require.Len(t, events, 1)
	assert.Equal(t, string(models.EventApplicationLogged), events[0].(map[string]interface{})["type"])

	assert.Equal(t, 403, s.do(t, http.MethodGet, base+"/leaderboard", carol, nil).Status)
	assert.Equal(t, 400, s.do(t, http.MethodGet, "/api/parties/abc/leaderboard", alice, nil).Status)
	assert.Equal(t, 400, s.do(t, http.MethodGet, base+"/activity?before=x", alice, nil).Status)

	snapshot := s.do(t, http.MethodGet, "/api/parties/current/snapshot", bob, nil)
	require.Equal(t, 200, snapshot.Status)
	assert.Equal(t, float64(1), nested(snapshot.Body, "snapshot", "rivalry")["rank"])
	assert.Equal(t, 404, s.do(t, http.MethodGet, "/api/parties/current/snapshot", carol, nil).Status)

	left := s.do(t, http.MethodPost, "/api/parties/leave", bob, nil)
	require.Equal(t, 200, left.Status)
	assert.Equal(t, 403, s.do(t, http.MethodGet, base+"/leaderboard", bob, nil).Status)
}

func TestApplicationStatusFlow(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "dana")
	other, _ := s.register(t, "eve")

	logged := s.do(t, http.MethodPost, "/api/applications", token, fiber.Map{"company": "Globex"})
	require.Equal(t, 201, logged.Status)
	appID := uint(nested(logged.Body, "outcome", "application")["id"].(float64))
	path := fmt.Sprintf("/api/applications/%d/status", appID)

	updated := s.do(t, http.MethodPut, path, token, fiber.Map{"status": "interview", "interview_round": 1})
	require.Equal(t, 200, updated.Status, updated.Body)
	assert.Equal(t, float64(6), nested(updated.Body, "outcome")["total_points"])

	assert.Equal(t, 400, s.do(t, http.MethodPut, path, token, fiber.Map{"status": "ghosted"}).Status)
	assert.Equal(t, 400, s.do(t, http.MethodPut, path, token, fiber.Map{"status": "interview", "interview_round": 1}).Status)
	assert.Equal(t, 404, s.do(t, http.MethodPut, path, other, fiber.Map{"status": "offer"}).Status)
	assert.Equal(t, 400, s.do(t, http.MethodPost, "/api/applications", token, fiber.Map{"company": "  "}).Status)

	list := s.do(t, http.MethodGet, "/api/applications", token, nil)
	require.Equal(t, 200, list.Status)
	apps := list.Body["applications"].([]interface{})
	require.Len(t, apps, 1)
	assert.Equal(t, "interview", apps[0].(map[string]interface{})["status"])

	empty := s.do(t, http.MethodGet, "/api/applications", other, nil)
	assert.Equal(t, []interface{}{}, empty.Body["applications"])
}

func TestAdminAdjustPoints(t *testing.T) {
	s := newTestServer(t)
	member, memberID := s.register(t, "fay")
	admin := s.adminToken(t)
	path := fmt.Sprintf("/api/admin/users/%d/points", memberID)

	assert.Equal(t, 403, s.do(t, http.MethodPost, path, member, fiber.Map{"delta": 10, "reason": "bonus"}).Status)
	assert.Equal(t, 400, s.do(t, http.MethodPost, path, admin, fiber.Map{"delta": 0, "reason": "noop"}).Status)
	assert.Equal(t, 400, s.do(t, http.MethodPost, path, admin, fiber.Map{"delta": 5}).Status)
	assert.Equal(t, 404, s.do(t, http.MethodPost, "/api/admin/users/999/points", admin, fiber.Map{"delta": 5, "reason": "x"}).Status)

	ok := s.do(t, http.MethodPost, path, admin, fiber.Map{"delta": 10, "reason": "bonus"})
	require.Equal(t, 200, ok.Status, ok.Body)
	assert.Equal(t, float64(10), nested(ok.Body, "outcome")["total_points"])

	user := s.do(t, http.MethodGet, fmt.Sprintf("/api/admin/users/%d", memberID), admin, nil)
	require.Equal(t, 200, user.Status)
	assert.Equal(t, float64(10), nested(user.Body, "user")["total_points"])
	assert.Equal(t, float64(0), nested(user.Body, "user")["current_streak"], "corrections do not extend streaks")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "healthy", resp.Body["status"])
	assert.Equal(t, float64(0), resp.Body["connections"])
}

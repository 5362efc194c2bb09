package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/infrastructure/backup"
	"github.com/classquest/classroom-hub/internal/infrastructure/messaging"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *ResponseMeta   `json:"meta"`
}

type api struct {
	t       *testing.T
	handler http.Handler
	headers map[string]string
}

func newAPI(t *testing.T, mutate func(*Config)) *api {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: zap.NewNop()})
	t.Cleanup(func() { _ = bus.Close() })

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := NewServer(cfg, NewDependencies(Wiring{
		Store:     store,
		Publisher: bus,
		Rules:     progression.DefaultRules(),
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &api{t: t, handler: srv.Handler(), headers: map[string]string{}}
}

func (a *api) do(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Code != http.StatusNoContent && rec.Header().Get("Content-Disposition") == "" {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type idDTO struct {
	ID string `json:"id"`
}

func (a *api) createClass(name string) string {
	rec, env := a.do(http.MethodPost, "/api/v1/classes", map[string]any{"name": name})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[struct {
		Class idDTO `json:"class"`
	}](a.t, env).Class.ID
}

func (a *api) createStudent(classID, name string) string {
	rec, env := a.do(http.MethodPost, "/api/v1/classes/"+classID+"/students", map[string]any{"name": name})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[idDTO](a.t, env).ID
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestAPI_Health(t *testing.T) {
	a := newAPI(t, nil)

	for _, path := range []string{"/health", "/ready", "/live", "/"} {
		rec, env := a.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.True(t, env.Success, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestAPI_RewardAndLeaderboard(t *testing.T) {
	a := newAPI(t, nil)
	classID := a.createClass("5-A")
	ann := a.createStudent(classID, "Ann")
	bob := a.createStudent(classID, "Bob")

	rec, env := a.do(http.MethodPost, "/api/v1/students/"+ann+"/rewards", map[string]any{
		"exp": 150, "note": "science fair", "abilities": map[string]bool{"creativity": true},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	award := decodeData[awardResponse](t, env)
	assert.Equal(t, 1, award.Outcome.LevelBefore)
	assert.Equal(t, 2, award.Outcome.LevelAfter)
	assert.Equal(t, 50, award.Student.Points)

	rec, env = a.do(http.MethodGet, "/api/v1/classes/"+classID+"/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decodeData[struct {
		Entries []struct {
			StudentID string `json:"student_id"`
			Rank      int    `json:"rank"`
			Exp       int    `json:"exp"`
		} `json:"entries"`
		TotalCount int    `json:"total_count"`
		Source     string `json:"source"`
	}](t, env)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, ann, board.Entries[0].StudentID)
	assert.Equal(t, bob, board.Entries[1].StudentID)
	assert.Equal(t, 2, board.TotalCount)
	assert.Equal(t, "store", board.Source)

	rec, env = a.do(http.MethodGet, "/api/v1/students/"+ann+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.Meta.TotalCount)

	rec, _ = a.do(http.MethodGet, "/api/v1/students/"+ann, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_ErrorMapping(t *testing.T) {
	a := newAPI(t, nil)
	classID := a.createClass("5-A")
	ann := a.createStudent(classID, "Ann")

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
		field    string
	}{
		{name: "missing name", method: http.MethodPost, path: "/api/v1/classes", body: map[string]any{}, wantCode: 400, wantErr: "validation_error", field: "name"},
		{name: "negative exp", method: http.MethodPost, path: "/api/v1/students/" + ann + "/rewards", body: map[string]any{"exp": -5}, wantCode: 400, wantErr: "validation_error", field: "exp"},
		{name: "exp above the grant limit", method: http.MethodPost, path: "/api/v1/students/" + ann + "/rewards", body: map[string]any{"exp": int64(9223372036854775807)}, wantCode: 400, wantErr: "validation_error", field: "exp"},
		{name: "gold above the grant limit", method: http.MethodPost, path: "/api/v1/students/" + ann + "/rewards", body: map[string]any{"gold": 1000001}, wantCode: 400, wantErr: "validation_error", field: "gold"},
		{name: "unknown field", method: http.MethodPost, path: "/api/v1/students/" + ann + "/rewards", body: `{"xp": 10}`, wantCode: 400, wantErr: "validation_error", field: "body"},
		{name: "empty manual grant", method: http.MethodPost, path: "/api/v1/students/" + ann + "/rewards", body: map[string]any{}, wantCode: 400, wantErr: "validation_error"},
		{name: "bad slot", method: http.MethodPost, path: "/api/v1/classes/" + classID + "/shop/items", body: map[string]any{"name": "Cape", "slot": "cape"}, wantCode: 400, wantErr: "validation_error", field: "slot"},
		{name: "unknown class", method: http.MethodGet, path: "/api/v1/classes/nope/students", wantCode: 404, wantErr: "not_found"},
		{name: "unknown student", method: http.MethodGet, path: "/api/v1/students/nope", wantCode: 404, wantErr: "not_found"},
		{name: "bad step index", method: http.MethodPost, path: "/api/v1/roadmaps/r/steps/x/completions", body: map[string]any{"student_ids": []string{ann}}, wantCode: 400, wantErr: "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := a.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
			if tt.field != "" {
				assert.Contains(t, env.Error.Fields, tt.field)
			}
		})
	}
}

func TestAPI_ShopPurchase(t *testing.T) {
	a := newAPI(t, nil)
	classID := a.createClass("5-A")
	ann := a.createStudent(classID, "Ann")

	rec, env := a.do(http.MethodPost, "/api/v1/classes/"+classID+"/shop/items", map[string]any{
		"name": "Wizard hat", "price": 100, "slot": "hat", "stock": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	itemID := decodeData[idDTO](t, env).ID

	rec, env = a.do(http.MethodPost, "/api/v1/shop/items/"+itemID+"/purchases", map[string]any{"student_id": ann})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", env.Error.Code)

	rec, _ = a.do(http.MethodPost, "/api/v1/students/"+ann+"/rewards", map[string]any{"gold": 120})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = a.do(http.MethodPost, "/api/v1/shop/items/"+itemID+"/purchases", map[string]any{"student_id": ann, "equip": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bought := decodeData[struct {
		Equipped bool `json:"equipped"`
		Student  struct {
			Points int `json:"points"`
		} `json:"student"`
	}](t, env)
	assert.True(t, bought.Equipped)
	assert.Equal(t, 20, bought.Student.Points)

	rec, env = a.do(http.MethodGet, "/api/v1/classes/"+classID+"/purchases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.Meta.TotalCount)

	rec, _ = a.do(http.MethodPut, "/api/v1/students/"+ann+"/avatar/hat", map[string]any{"item_id": ""})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_MissionsAndRoadmaps(t *testing.T) {
	a := newAPI(t, nil)
	classID := a.createClass("5-A")
	ann := a.createStudent(classID, "Ann")

	rec, env := a.do(http.MethodPost, "/api/v1/classes/"+classID+"/missions", map[string]any{
		"name": "Read a book", "exp_reward": 30, "gold_reward": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	missionID := decodeData[idDTO](t, env).ID

	path := "/api/v1/missions/" + missionID + "/achievements"
	rec, _ = a.do(http.MethodPost, path, map[string]any{"student_ids": []string{ann}})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec, env = a.do(http.MethodPost, path, map[string]any{"student_ids": []string{ann}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", env.Error.Code)

	rec, _ = a.do(http.MethodDelete, path+"/"+ann, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = a.do(http.MethodPost, "/api/v1/classes/"+classID+"/roadmaps", map[string]any{
		"name": "Reading", "goals": []string{"one book", "two books"}, "reward_title": "Bookworm",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	roadmapID := decodeData[idDTO](t, env).ID

	steps := "/api/v1/roadmaps/" + roadmapID + "/steps/"
	rec, env = a.do(http.MethodPost, steps+"1/completions", map[string]any{"student_ids": []string{ann}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", env.Error.Code)

	rec, _ = a.do(http.MethodPost, steps+"0/completions", map[string]any{"student_ids": []string{ann}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = a.do(http.MethodGet, "/api/v1/roadmaps/"+roadmapID+"/board", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decodeData[struct {
		Steps []struct {
			Students []idDTO `json:"students"`
		} `json:"steps"`
	}](t, env)
	require.Len(t, board.Steps, 2)
	require.Len(t, board.Steps[0].Students, 1)
	assert.Equal(t, ann, board.Steps[0].Students[0].ID)

	rec, env = a.do(http.MethodDelete, steps+"0/completions/"+ann, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeData[struct {
		Removed int `json:"removed"`
	}](t, env).Removed)
}

func TestAPI_CardsAndDelete(t *testing.T) {
	a := newAPI(t, nil)
	classID := a.createClass("5-A")
	ann := a.createStudent(classID, "Ann")
	bob := a.createStudent(classID, "Bob")

	rec, env := a.do(http.MethodPost, "/api/v1/classes/"+classID+"/cards", map[string]any{
		"name": "Helper", "exp_reward": 10, "gold_reward": 5, "abilities": map[string]bool{"personality": true},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cardID := decodeData[idDTO](t, env).ID

	rec, env = a.do(http.MethodPost, "/api/v1/cards/"+cardID+"/awards", map[string]any{"student_ids": []string{ann, bob}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	awarded := decodeData[struct {
		Awards []awardResponse `json:"awards"`
	}](t, env)
	assert.Len(t, awarded.Awards, 2)

	rec, _ = a.do(http.MethodDelete, "/api/v1/students/"+bob, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = a.do(http.MethodGet, "/api/v1/classes/"+classID+"/students", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.Meta.TotalCount)

	rec, _ = a.do(http.MethodDelete, "/api/v1/classes/"+classID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = a.do(http.MethodGet, "/api/v1/classes/"+classID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Backup(t *testing.T) {
	a := newAPI(t, nil)
	classID := a.createClass("5-A")
	a.createStudent(classID, "Ann")

	rec, _ := a.do(http.MethodGet, "/api/v1/backup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "backup-")

	var snap backup.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Classes, 1)
	assert.Len(t, snap.Students, 1)
}

func TestAPI_Auth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("staff-room-key"), bcrypt.MinCost)
	require.NoError(t, err)

	a := newAPI(t, func(c *Config) { c.APIKeyHashes = []string{string(hash)} })

	rec, _ := a.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := a.do(http.MethodGet, "/api/v1/classes", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_api_key", env.Error.Code)

	a.headers["X-API-Key"] = "staff-room-key"
	rec, _ = a.do(http.MethodGet, "/api/v1/classes", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_RateLimit(t *testing.T) {
	a := newAPI(t, func(c *Config) { c.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		rec, _ := a.do(http.MethodGet, "/live", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := a.do(http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)
}

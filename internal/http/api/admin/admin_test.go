package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/apexgirl/reportanalyzer/internal/db"
	"github.com/apexgirl/reportanalyzer/internal/store"
	"github.com/gin-gonic/gin"
)

const adminKey = "ra_fedcba9876543210fedcba9876543210"

func newEngine(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "admin.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if errSeed := db.EnsureDefaultTiers(conn); errSeed != nil {
		t.Fatalf("seed tiers: %v", errSeed)
	}
	if errKey := db.EnsureDevAPIKey(conn, adminKey); errKey != nil {
		t.Fatalf("seed key: %v", errKey)
	}
	s := store.New(conn)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r, s)
	return r, s
}

func call(t *testing.T, r *gin.Engine, method, path, key string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestUsersLifecycle(t *testing.T) {
	r, s := newEngine(t)

	rec, body := call(t, r, http.MethodPost, "/api/admin/users", adminKey, map[string]string{"discordId": "1001", "username": "lyra"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["tier"] != "Free" {
		t.Fatalf("expected default Free tier, got %v", body["tier"])
	}
	id, _ := body["id"].(string)

	if rec, _ := call(t, r, http.MethodPost, "/api/admin/users", adminKey, map[string]string{"discordId": "1001"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", rec.Code)
	}
	if rec, _ := call(t, r, http.MethodPost, "/api/admin/users", adminKey, map[string]string{"discordId": "1002", "tier": "Platinum"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on unknown tier, got %d", rec.Code)
	}
	if rec, body := call(t, r, http.MethodPost, "/api/admin/users", adminKey, map[string]string{"discordId": "1003", "tier": "Pro"}); rec.Code != http.StatusCreated || body["tier"] != "Pro" {
		t.Fatalf("expected Pro user, got %d %v", rec.Code, body)
	}

	if rec, _ := call(t, r, http.MethodDelete, "/api/admin/users/"+id, adminKey, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, errFind := s.ActiveUser(context.Background(), id); errFind == nil {
		t.Fatalf("deleted user still visible")
	}
	if rec, _ := call(t, r, http.MethodDelete, "/api/admin/users/"+id, adminKey, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestGroupsLifecycle(t *testing.T) {
	r, s := newEngine(t)

	rec, body := call(t, r, http.MethodPost, "/api/admin/groups", adminKey, map[string]string{"externalId": "srv-9", "name": "Stage Nine"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["tier"] != "" {
		t.Fatalf("expected untiered group, got %v", body["tier"])
	}
	id, _ := body["id"].(string)
	group, err := s.ActiveGroup(context.Background(), id)
	if err != nil || group.TierID != nil {
		t.Fatalf("unexpected group %+v err %v", group, err)
	}

	if rec, body := call(t, r, http.MethodPost, "/api/admin/groups", adminKey, map[string]string{"externalId": "srv-10", "tier": "Plus"}); rec.Code != http.StatusCreated || body["tier"] != "Plus" {
		t.Fatalf("expected Plus group, got %d %v", rec.Code, body)
	}
	if rec, _ := call(t, r, http.MethodDelete, "/api/admin/groups/"+id, adminKey, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestAPIKeysRequireAdminScope(t *testing.T) {
	r, _ := newEngine(t)

	if rec, _ := call(t, r, http.MethodGet, "/api/admin/api-keys", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	rec, body := call(t, r, http.MethodPost, "/api/admin/api-keys", adminKey, map[string]any{"name": "bot"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	clientKey, _ := body["token"].(string)
	if clientKey == "" || body["scope"] != "client" {
		t.Fatalf("unexpected create body %v", body)
	}

	if rec, _ := call(t, r, http.MethodGet, "/api/admin/api-keys", clientKey, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client key, got %d", rec.Code)
	}

	rec, body = call(t, r, http.MethodGet, "/api/admin/api-keys", adminKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	keys, _ := body["api_keys"].([]any)
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	var clientID float64
	for _, k := range keys {
		row := k.(map[string]any)
		if _, leaked := row["key_hash"]; leaked {
			t.Fatalf("hash leaked in listing")
		}
		if row["name"] == "bot" {
			clientID = row["id"].(float64)
		}
	}

	path := "/api/admin/api-keys/" + jsonNumber(clientID)
	if rec, _ := call(t, r, http.MethodDelete, path, adminKey, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec, _ := call(t, r, http.MethodDelete, path, adminKey, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second revoke, got %d", rec.Code)
	}
	if rec, _ := call(t, r, http.MethodGet, "/api/admin/api-keys", clientKey, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked key, got %d", rec.Code)
	}
}

func jsonNumber(v float64) string {
	b, _ := json.Marshal(int64(v))
	return string(b)
}

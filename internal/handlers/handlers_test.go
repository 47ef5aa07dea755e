package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adjuface/facegate/internal/account"
	"github.com/adjuface/facegate/internal/catalog"
	"github.com/adjuface/facegate/internal/config"
	"github.com/adjuface/facegate/internal/infrastructure/inference"
	"github.com/adjuface/facegate/internal/services/draw"
	"github.com/adjuface/facegate/internal/services/swap"
	"github.com/gorilla/websocket"
)

type swapperFunc func(ctx context.Context, req inference.SwapRequest) ([]byte, error)

func (f swapperFunc) Swap(ctx context.Context, req inference.SwapRequest) ([]byte, error) {
	return f(ctx, req)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()

	for _, name := range []string{"mona.png", "pearl.png", "art.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("png"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	doc := `{
		"categories": {
			"art": [
				{"mode": "art_1", "name": "Mona Lisa", "filepath": "mona.png"},
				{"mode": "art_2", "name": "Girl with a Pearl Earring", "filepath": "pearl.png"}
			]
		},
		"collages": {"art": "art.png"}
	}`
	path := filepath.Join(dir, "targets.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	c, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

// newTestServer wires a full server against the in-memory store and the
// given fake inference backend.
func newTestServer(t *testing.T, swapper swap.Swapper) (*httptest.Server, account.Store) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ADAPTER_SECRET", "adapter-secret")
	t.Setenv("TARGET_UPLOAD_DIR", t.TempDir())

	quotaCfg := config.QuotaConfig{
		FreeStarter:         3,
		PremiumBonusQuota:   100,
		PremiumBonusTargets: 10,
		ReservationTTL:      time.Minute,
		SubmitInterval:      time.Millisecond,
	}

	store := account.NewMemoryStore(quotaCfg)
	t.Cleanup(func() { store.Close() })

	cat := testCatalog(t)
	swaps := swap.NewService(store, cat, swapper, 2)
	h := New(store, cat, swaps, draw.NewService(nil), quotaCfg)

	server := httptest.NewServer(h.Router())
	t.Cleanup(server.Close)
	return server, store
}

func fetchToken(t *testing.T, server *httptest.Server, userID string, admin bool) string {
	t.Helper()
	body, _ := json.Marshal(tokenRequest{
		AdapterSecret: "adapter-secret",
		UserID:        userID,
		Admin:         admin,
	})
	resp, err := http.Post(server.URL+"/v1/token", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token request: status %d", resp.StatusCode)
	}
	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	return tok.AccessToken
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func selectCategory(t *testing.T, server *httptest.Server, token, category string) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, server.URL+"/v1/categories/select", token, selectRequest{Category: category})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select category: status %d", resp.StatusCode)
	}
}

func postPhoto(t *testing.T, server *httptest.Server, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, server.URL+"/v1/swaps", strings.NewReader("photo-bytes"))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post photo: %v", err)
	}
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestTokenEndpoint(t *testing.T) {
	server, _ := newTestServer(t, swapperFunc(func(ctx context.Context, req inference.SwapRequest) ([]byte, error) {
		return []byte("result"), nil
	}))

	t.Run("wrong adapter secret is rejected", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/v1/token", "application/json",
			strings.NewReader(`{"adapter_secret": "wrong", "user_id": "u1"}`))
		if err != nil {
			t.Fatalf("token request: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, resp.StatusCode)
		}
	})

	t.Run("missing user id is rejected", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/v1/token", "application/json",
			strings.NewReader(`{"adapter_secret": "adapter-secret"}`))
		if err != nil {
			t.Fatalf("token request: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
		}
	})

	t.Run("valid request issues a bearer token", func(t *testing.T) {
		token := fetchToken(t, server, "u1", false)
		if token == "" {
			t.Fatal("expected non-empty token")
		}
	})

	t.Run("protected endpoint rejects missing token", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, server.URL+"/v1/account", "", nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, resp.StatusCode)
		}
	})
}

func TestSwapEndpoint(t *testing.T) {
	server, _ := newTestServer(t, swapperFunc(func(ctx context.Context, req inference.SwapRequest) ([]byte, error) {
		if req.Mode != "art_1" {
			return nil, inference.ErrNoFaceDetected
		}
		return []byte("swapped"), nil
	}))

	t.Run("swap without a category fails fast", func(t *testing.T) {
		token := fetchToken(t, server, "fresh", false)
		resp := postPhoto(t, server, token)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
		}
		if code := errorCode(t, resp); code != "no_category_selected" {
			t.Errorf("expected no_category_selected, got %q", code)
		}
	})

	t.Run("successful swap returns the image and remaining quota", func(t *testing.T) {
		token := fetchToken(t, server, "happy", false)
		selectCategory(t, server, token, "art")

		resp := postPhoto(t, server, token)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "swapped" {
			t.Errorf("expected swapped image bytes, got %q", body)
		}
		if got := resp.Header.Get("X-Quota-Remaining"); got != "2" {
			t.Errorf("expected quota header 2, got %q", got)
		}
	})

	t.Run("no face detected does not charge", func(t *testing.T) {
		server, _ := newTestServer(t, swapperFunc(func(ctx context.Context, req inference.SwapRequest) ([]byte, error) {
			return nil, inference.ErrNoFaceDetected
		}))
		token := fetchToken(t, server, "noface", false)
		selectCategory(t, server, token, "art")

		resp := postPhoto(t, server, token)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, resp.StatusCode)
		}
		if code := errorCode(t, resp); code != "no_face_detected" {
			t.Errorf("expected no_face_detected, got %q", code)
		}

		status := doJSON(t, http.MethodGet, server.URL+"/v1/account", token, nil)
		defer status.Body.Close()
		var acct statusResponse
		if err := json.NewDecoder(status.Body).Decode(&acct); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if acct.QuotaRemaining != 3 {
			t.Errorf("expected untouched quota 3, got %d", acct.QuotaRemaining)
		}
	})

	t.Run("exhausted quota maps to payment required", func(t *testing.T) {
		server, _ := newTestServer(t, swapperFunc(func(ctx context.Context, req inference.SwapRequest) ([]byte, error) {
			return []byte("swapped"), nil
		}))
		token := fetchToken(t, server, "spender", false)
		selectCategory(t, server, token, "art")

		for i := 0; i < 3; i++ {
			resp := postPhoto(t, server, token)
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("swap %d: expected status %d, got %d", i, http.StatusOK, resp.StatusCode)
			}
			time.Sleep(5 * time.Millisecond)
		}

		resp := postPhoto(t, server, token)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusPaymentRequired {
			t.Fatalf("expected status %d, got %d", http.StatusPaymentRequired, resp.StatusCode)
		}
		if code := errorCode(t, resp); code != "quota_exceeded" {
			t.Errorf("expected quota_exceeded, got %q", code)
		}
	})
}

func TestCatalogEndpoints(t *testing.T) {
	server, _ := newTestServer(t, swapperFunc(func(ctx context.Context, req inference.SwapRequest) ([]byte, error) {
		return []byte("swapped"), nil
	}))
	token := fetchToken(t, server, "browser", false)

	t.Run("list categories", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, server.URL+"/v1/categories", token, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
		}
		var summaries []catalog.Summary
		if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
			t.Fatalf("decode summaries: %v", err)
		}
		if len(summaries) != 1 || summaries[0].Name != "art" || summaries[0].Targets != 2 {
			t.Errorf("unexpected summaries: %+v", summaries)
		}
	})

	t.Run("select unknown category", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, server.URL+"/v1/categories/select", token, selectRequest{Category: "nope"})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
		}
		if code := errorCode(t, resp); code != "unknown_category" {
			t.Errorf("expected unknown_category, got %q", code)
		}
	})

	t.Run("select unknown mode", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, server.URL+"/v1/categories/select", token,
			selectRequest{Category: "art", Mode: "art_99"})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
		}
		if code := errorCode(t, resp); code != "target_not_found" {
			t.Errorf("expected target_not_found, got %q", code)
		}
	})
}

func TestAccountEndpoints(t *testing.T) {
	server, _ := newTestServer(t, swapperFunc(func(ctx context.Context, req inference.SwapRequest) ([]byte, error) {
		return []byte("swapped"), nil
	}))

	t.Run("premium upgrade is additive", func(t *testing.T) {
		token := fetchToken(t, server, "payer", false)

		resp := doJSON(t, http.MethodPost, server.URL+"/v1/account/premium", token, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
		}
		var acct statusResponse
		if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if acct.Tier != "premium" {
			t.Errorf("expected premium tier, got %q", acct.Tier)
		}
		if acct.QuotaRemaining != 103 {
			t.Errorf("expected quota 103, got %d", acct.QuotaRemaining)
		}
		if acct.TargetSlots != 10 {
			t.Errorf("expected 10 target slots, got %d", acct.TargetSlots)
		}
	})

	t.Run("free user cannot upload a custom target", func(t *testing.T) {
		token := fetchToken(t, server, "freeloader", false)

		req, _ := http.NewRequest(http.MethodPost, server.URL+"/v1/account/target", strings.NewReader("target-bytes"))
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("upload target: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected status %d, got %d", http.StatusForbidden, resp.StatusCode)
		}
		if code := errorCode(t, resp); code != "not_premium" {
			t.Errorf("expected not_premium, got %q", code)
		}
	})

	t.Run("premium user uploads and clears a custom target", func(t *testing.T) {
		token := fetchToken(t, server, "collector", false)
		doJSON(t, http.MethodPost, server.URL+"/v1/account/premium", token, nil).Body.Close()

		req, _ := http.NewRequest(http.MethodPost, server.URL+"/v1/account/target", strings.NewReader("target-bytes"))
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("upload target: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
		}

		status := doJSON(t, http.MethodGet, server.URL+"/v1/account", token, nil)
		var acct statusResponse
		if err := json.NewDecoder(status.Body).Decode(&acct); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		status.Body.Close()
		if !acct.CustomTargetSet {
			t.Error("expected custom target to be set")
		}
		if acct.TargetSlots != 9 {
			t.Errorf("expected 9 slots left, got %d", acct.TargetSlots)
		}

		del := doJSON(t, http.MethodDelete, server.URL+"/v1/account/target", token, nil)
		del.Body.Close()
		if del.StatusCode != http.StatusOK {
			t.Fatalf("clear target: status %d", del.StatusCode)
		}
	})

	t.Run("draw is unavailable without a configured backend", func(t *testing.T) {
		token := fetchToken(t, server, "artist", false)
		doJSON(t, http.MethodPost, server.URL+"/v1/account/premium", token, nil).Body.Close()

		resp := doJSON(t, http.MethodPost, server.URL+"/v1/draws", token, map[string]string{"prompt": "a fox"})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotImplemented {
			t.Errorf("expected status %d, got %d", http.StatusNotImplemented, resp.StatusCode)
		}
	})
}

func TestAdminEndpoints(t *testing.T) {
	server, store := newTestServer(t, swapperFunc(func(ctx context.Context, req inference.SwapRequest) ([]byte, error) {
		return []byte("swapped"), nil
	}))

	userToken := fetchToken(t, server, "mortal", false)
	adminToken := fetchToken(t, server, "operator", true)

	t.Run("non-admin token is forbidden", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, server.URL+"/v1/admin/accounts", userToken, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected status %d, got %d", http.StatusForbidden, resp.StatusCode)
		}
	})

	t.Run("admin resets an account", func(t *testing.T) {
		token := fetchToken(t, server, "burned", false)
		doJSON(t, http.MethodPost, server.URL+"/v1/account/premium", token, nil).Body.Close()

		resp := doJSON(t, http.MethodPost, server.URL+"/v1/admin/accounts/burned/reset", adminToken, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
		}

		acct, err := store.GetOrCreate(context.Background(), "burned")
		if err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
		if acct.Tier != account.TierFree || acct.QuotaRemaining != 3 {
			t.Errorf("expected reset free account with quota 3, got %+v", acct)
		}
	})

	t.Run("admin lists accounts", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, server.URL+"/v1/admin/accounts", adminToken, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
		}
		var accounts []account.Account
		if err := json.NewDecoder(resp.Body).Decode(&accounts); err != nil {
			t.Fatalf("decode accounts: %v", err)
		}
		if len(accounts) == 0 {
			t.Error("expected at least one account")
		}
	})
}

func TestWebSocketChannel(t *testing.T) {
	server, _ := newTestServer(t, swapperFunc(func(ctx context.Context, req inference.SwapRequest) ([]byte, error) {
		return []byte("swapped"), nil
	}))
	token := fetchToken(t, server, "chatter", false)

	dial := func(t *testing.T, token string) *websocket.Conn {
		t.Helper()
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
		ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial websocket: %v", err)
		}
		t.Cleanup(func() { ws.Close() })

		var hello wsEvent
		if err := ws.ReadJSON(&hello); err != nil {
			t.Fatalf("read hello: %v", err)
		}
		if hello.Type != "connected" {
			t.Fatalf("expected connected event, got %q", hello.Type)
		}
		return ws
	}

	t.Run("rejects missing token", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			t.Fatal("expected dial to fail")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected status %d response", http.StatusUnauthorized)
		}
	})

	t.Run("status command reports the account", func(t *testing.T) {
		ws := dial(t, token)
		if err := ws.WriteJSON(wsCommand{Command: "status"}); err != nil {
			t.Fatalf("write command: %v", err)
		}
		var event wsEvent
		if err := ws.ReadJSON(&event); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if event.Type != "status" {
			t.Errorf("expected status event, got %q", event.Type)
		}
	})

	t.Run("photo frame runs a swap", func(t *testing.T) {
		ws := dial(t, token)
		if err := ws.WriteJSON(wsCommand{Command: "select", Category: "art"}); err != nil {
			t.Fatalf("write select: %v", err)
		}
		var selected wsEvent
		if err := ws.ReadJSON(&selected); err != nil {
			t.Fatalf("read select reply: %v", err)
		}
		if selected.Type != "selected" {
			t.Fatalf("expected selected event, got %q", selected.Type)
		}

		if err := ws.WriteMessage(websocket.BinaryMessage, []byte("photo")); err != nil {
			t.Fatalf("write photo: %v", err)
		}
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read result: %v", err)
		}
		if messageType != websocket.BinaryMessage || string(message) != "swapped" {
			t.Fatalf("expected binary swapped frame, got type %d payload %q", messageType, message)
		}

		var doneEvent wsEvent
		if err := ws.ReadJSON(&doneEvent); err != nil {
			t.Fatalf("read done event: %v", err)
		}
		if doneEvent.Type != "swap_done" {
			t.Errorf("expected swap_done event, got %q", doneEvent.Type)
		}
	})

	t.Run("unknown command yields an error event", func(t *testing.T) {
		ws := dial(t, token)
		if err := ws.WriteJSON(wsCommand{Command: "frobnicate"}); err != nil {
			t.Fatalf("write command: %v", err)
		}
		var event wsEvent
		if err := ws.ReadJSON(&event); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if event.Type != "error" || event.Error != "unknown_command" {
			t.Errorf("expected unknown_command error, got %+v", event)
		}
	})
}

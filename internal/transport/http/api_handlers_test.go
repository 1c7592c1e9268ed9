package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"
)

func doRequest(t *testing.T, env *testEnv, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)
	return resp
}

func loginToken(t *testing.T, env *testEnv, username, password string) string {
	t.Helper()
	resp := doRequest(t, env, http.MethodPost, "/api/login", `{"username":"`+username+`","password":"`+password+`"}`, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var auth AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &auth); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if auth.Token == "" {
		t.Fatalf("empty token")
	}
	return auth.Token
}

func TestAPILogin(t *testing.T) {
	env := startTestServer(t, 50)
	env.register(t, "alice", "secret", true)

	loginToken(t, env, "alice", "secret")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"username":"alice","password":"nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"username":"ghost","password":"secret"}`, http.StatusUnauthorized},
		{"missing password", `{"username":"alice"}`, http.StatusBadRequest},
		{"blank username", `{"username":"   ","password":"secret"}`, http.StatusBadRequest},
		{"blank password", `{"username":"alice","password":" \t"}`, http.StatusBadRequest},
		{"not json", `username=alice`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, env, http.MethodPost, "/api/login", tc.body, "")
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestAPIPresenceRequiresToken(t *testing.T) {
	env := startTestServer(t, 50)
	env.register(t, "alice", "secret", false)

	if resp := doRequest(t, env, http.MethodGet, "/api/presence", "", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
	if resp := doRequest(t, env, http.MethodGet, "/api/presence", "", "garbage"); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env.login(ctx, t, "alice", "secret")

	token := loginToken(t, env, "alice", "secret")
	resp := doRequest(t, env, http.MethodGet, "/api/presence", "", token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var presence PresenceResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &presence); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if !slices.Equal(presence.Members, []string{"alice"}) {
		t.Fatalf("unexpected members %v", presence.Members)
	}
}

func TestAPIMessagesPagination(t *testing.T) {
	env := startTestServer(t, 2)
	env.register(t, "alice", "secret", false)

	for range 3 {
		if _, err := env.store.AppendMessage(context.Background(), "alice", `{"text":"x"}`); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	token := loginToken(t, env, "alice", "secret")

	resp := doRequest(t, env, http.MethodGet, "/api/messages", "", token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var page MessagesResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := messageIDs(page.Messages); !slices.Equal(got, []int64{3, 2}) || !page.HasMore {
		t.Fatalf("unexpected first page %v hasMore=%v", got, page.HasMore)
	}

	resp = doRequest(t, env, http.MethodGet, "/api/messages?before=2", "", token)
	page = MessagesResponse{}
	if err := json.Unmarshal(resp.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := messageIDs(page.Messages); !slices.Equal(got, []int64{1}) || page.HasMore {
		t.Fatalf("unexpected second page %v hasMore=%v", got, page.HasMore)
	}

	for _, bad := range []string{"abc", "-1"} {
		resp = doRequest(t, env, http.MethodGet, "/api/messages?before="+bad, "", token)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("cursor %q: expected 400, got %d", bad, resp.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := startTestServer(t, 50)

	resp := doRequest(t, env, http.MethodGet, "/metrics", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "roomchat_connections_active") {
		t.Fatalf("expected roomchat metrics in output")
	}
}

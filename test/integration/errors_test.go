package integration

import (
	"bytes"
	"net/http"
	"net/url"
	"testing"

	"github.com/rhuss/weiche/pkg/api"
)

// expectError asserts the status and the error envelope of resp.
func expectError(t *testing.T, resp *http.Response, status int, typ api.ErrorType, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Errorf("status = %d, want %d", resp.StatusCode, status)
	}

	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)
	if errResp.Error == nil {
		t.Fatal("error object is nil")
	}
	if errResp.Error.Type != typ {
		t.Errorf("error.type = %q, want %q", errResp.Error.Type, typ)
	}
	if code != "" && errResp.Error.Code != code {
		t.Errorf("error.code = %q, want %q", errResp.Error.Code, code)
	}
	if errResp.Error.Message == "" {
		t.Error("error.message is empty")
	}
}

func TestInvalidJSON(t *testing.T) {
	resp, err := http.Post(testEnv.BaseURL()+"/v1/responses", "application/json", bytes.NewReader([]byte(`{invalid json`)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	expectError(t, resp, http.StatusBadRequest, api.ErrorTypeInvalidRequest, "")
}

func TestMissingModel(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/responses", userRequest("", "Hello", false))
	expectError(t, resp, http.StatusBadRequest, api.ErrorTypeInvalidRequest, "")
}

func TestUnknownModel(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/responses", userRequest("no-such-route", "Hello", false))
	expectError(t, resp, http.StatusNotFound, api.ErrorTypeInvalidRequest, api.CodeModelNotFound)
}

func TestMissingCredentials(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/responses", userRequest("unconfigured", "Hello", false))
	expectError(t, resp, http.StatusInternalServerError, api.ErrorTypeProxy, api.CodeAllProvidersFailed)
}

func TestMethodNotAllowed(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/responses")
	expectError(t, resp, http.StatusMethodNotAllowed, api.ErrorTypeProxy, api.CodeMethodNotAllowed)
}

func TestUnsupportedContentType(t *testing.T) {
	resp, err := http.Post(testEnv.BaseURL()+"/v1/responses", "application/x-www-form-urlencoded", bytes.NewReader([]byte(`model=test`)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	expectError(t, resp, http.StatusUnsupportedMediaType, api.ErrorTypeInvalidRequest, "")
}

func TestInvalidResponseID(t *testing.T) {
	resp := deleteURL(t, testEnv.BaseURL()+"/v1/responses/not-a-valid-id")
	expectError(t, resp, http.StatusBadRequest, api.ErrorTypeInvalidRequest, "")
}

func TestCancelNotFound(t *testing.T) {
	resp := deleteURL(t, testEnv.BaseURL()+"/v1/responses/resp_bbbbbbbbbbbbbbbbbbbbbbbb")
	expectError(t, resp, http.StatusNotFound, api.ErrorTypeInvalidRequest, "")
}

func TestToolsNotConfigured(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/tools")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRelay(t *testing.T) {
	testEnv.backend.seen()

	target := testEnv.MockBackend.URL + "/v1/chat/completions"
	body := []byte(`{"model":"m","messages":[{"role":"user","content":"hello"}]}`)
	req, _ := http.NewRequest(http.MethodPost, testEnv.BaseURL()+"/relay?url="+url.QueryEscape(target), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer fail-500")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	resp.Body.Close()

	// The caller's Authorization header is not forwarded.
	if got := testEnv.backend.seen(); len(got) != 1 || got[0] != "" {
		t.Errorf("credentials seen by target = %q, want one empty credential", got)
	}
}

func TestRelayRejected(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing", "", http.StatusBadRequest},
		{"bad scheme", "ftp://example.com/file", http.StatusBadRequest},
		{"host not allowed", "https://example.com/v1/models", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := getURL(t, testEnv.BaseURL()+"/relay?url="+url.QueryEscape(tt.target))
			expectError(t, resp, tt.status, api.ErrorTypeProxy, api.CodeRelayRejected)
		})
	}
}

func TestErrorResponseFormat(t *testing.T) {
	// Any error response should follow the ErrorResponse schema.
	resp := deleteURL(t, testEnv.BaseURL()+"/v1/responses/not-valid")

	var raw map[string]any
	decodeJSON(t, resp, &raw)

	errObj, ok := raw["error"]
	if !ok {
		t.Fatal("response missing 'error' key")
	}
	errMap, ok := errObj.(map[string]any)
	if !ok {
		t.Fatal("'error' is not an object")
	}
	if _, ok := errMap["type"]; !ok {
		t.Error("error object missing 'type'")
	}
	if _, ok := errMap["message"]; !ok {
		t.Error("error object missing 'message'")
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]interface{}
}

func stubServer(t *testing.T, status int, response string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := capturedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Auth: r.Header.Get("Authorization")}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &entry.Body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
		}
		captured = append(captured, entry)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func runCLI(t *testing.T, endpoint string, args ...string) (int, string, string) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	base := []string{"--profile", filepath.Join(t.TempDir(), "missing.toml"), "--endpoint", endpoint}
	code := run(append(base, args...), stdout, stderr)
	return code, stdout.String(), stderr.String()
}

func TestRateSetSendsAuthenticatedPut(t *testing.T) {
	srv, captured := stubServer(t, http.StatusOK, `{"from":"native","to":"0xAa","rate_from":"1","rate_to":"2"}`)
	code, stdout, stderr := runCLI(t, srv.URL, "--token", "jwt-value", "rate", "set", "--rate-from", "1", "--rate-to", "2", "native", "TKA")
	if code != 0 {
		t.Fatalf("unexpected exit code %d: %s", code, stderr)
	}
	if len(*captured) != 1 {
		t.Fatalf("expected one request, got %d", len(*captured))
	}
	req := (*captured)[0]
	if req.Method != http.MethodPut || req.Path != "/v1/rates/native/TKA" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	if req.Auth != "Bearer jwt-value" {
		t.Fatalf("unexpected authorization %q", req.Auth)
	}
	if req.Body["rate_from"] != "1" || req.Body["rate_to"] != "2" {
		t.Fatalf("unexpected body %v", req.Body)
	}
	if !strings.Contains(stdout, `"rate_to": "2"`) {
		t.Fatalf("expected pretty output, got %q", stdout)
	}
}

func TestMutatingCommandRequiresToken(t *testing.T) {
	srv, captured := stubServer(t, http.StatusOK, `{}`)
	t.Setenv("SWAPCTL_TOKEN", "")
	code, _, stderr := runCLI(t, srv.URL, "fee", "set", "5")
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(stderr, "bearer token is required") {
		t.Fatalf("unexpected stderr %q", stderr)
	}
	if len(*captured) != 0 {
		t.Fatalf("no request should be sent without a token")
	}
}

func TestFeeSetRejectsOutOfRange(t *testing.T) {
	srv, captured := stubServer(t, http.StatusOK, `{}`)
	code, _, stderr := runCLI(t, srv.URL, "--token", "t", "fee", "set", "100")
	if code != 1 || !strings.Contains(stderr, "fee must be below 100") {
		t.Fatalf("unexpected result %d %q", code, stderr)
	}
	if len(*captured) != 0 {
		t.Fatalf("unexpected request sent")
	}
}

func TestSwapScalesDecimalAmount(t *testing.T) {
	srv, captured := stubServer(t, http.StatusOK, `{"receipt_id":"abc"}`)
	code, _, stderr := runCLI(t, srv.URL, "--token", "t", "swap", "--from", "native", "--to", "TKA", "--amount", "1.5", "--decimals", "18", "--value", "1501000000000000000")
	if code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr)
	}
	body := (*captured)[0].Body
	if body["amount"] != "1500000000000000000" {
		t.Fatalf("unexpected amount %v", body["amount"])
	}
	if body["attached_value"] != "1501000000000000000" {
		t.Fatalf("unexpected attached value %v", body["attached_value"])
	}
}

func TestAPIErrorIsReported(t *testing.T) {
	srv, _ := stubServer(t, http.StatusNotFound, `{"error":"unknown_pair","message":"no rate"}`)
	code, stdout, stderr := runCLI(t, srv.URL, "quote", "--from", "TKA", "--to", "native", "--amount", "1")
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if stdout != "" {
		t.Fatalf("expected empty stdout, got %q", stdout)
	}
	want := "Error: unknown_pair: no rate (HTTP 404)\n"
	if stderr != want {
		t.Fatalf("unexpected stderr: got %q, want %q", stderr, want)
	}
}

func TestHistoryBuildsQuery(t *testing.T) {
	srv, captured := stubServer(t, http.StatusOK, `{"swaps":[]}`)
	code, _, stderr := runCLI(t, srv.URL, "history", "--account", "0x00000000000000000000000000000000000000b1", "--limit", "5")
	if code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr)
	}
	req := (*captured)[0]
	if req.Path != "/v1/swaps" || req.Query != "account=0x00000000000000000000000000000000000000b1&limit=5" {
		t.Fatalf("unexpected request %s?%s", req.Path, req.Query)
	}
}

func TestHistoryByReceiptID(t *testing.T) {
	srv, captured := stubServer(t, http.StatusOK, `{"id":"abc-123"}`)
	code, stdout, stderr := runCLI(t, srv.URL, "history", "--id", "abc-123")
	if code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr)
	}
	req := (*captured)[0]
	if req.Method != http.MethodGet || req.Path != "/v1/swaps/abc-123" || req.Query != "" {
		t.Fatalf("unexpected request %s %s?%s", req.Method, req.Path, req.Query)
	}
	if !strings.Contains(stdout, `"abc-123"`) {
		t.Fatalf("unexpected output %q", stdout)
	}
}

func TestNormalize(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := run([]string{"normalize", "--from-decimals", "18", "--to-decimals", "6", "1", "2.5"}, stdout, stderr)
	if code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr.String())
	}
	want := "rate_from: 1000000000000000000\nrate_to: 2500000\n"
	if stdout.String() != want {
		t.Fatalf("unexpected stdout: got %q, want %q", stdout.String(), want)
	}

	stdout.Reset()
	stderr.Reset()
	if code := run([]string{"normalize", "--to-decimals", "2", "1", "0.001"}, stdout, stderr); code != 1 {
		t.Fatalf("expected precision failure, got %d", code)
	}
}

func TestProfileFile(t *testing.T) {
	srv, captured := stubServer(t, http.StatusOK, `{"fee_mille":3}`)
	path := filepath.Join(t.TempDir(), "profile.toml")
	content := "endpoint = \"" + srv.URL + "/\"\ntoken = \"from-file\"\ntimeout = \"5s\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if code := run([]string{"--profile", path, "fee", "set", "3"}, stdout, stderr); code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr.String())
	}
	req := (*captured)[0]
	if req.Auth != "Bearer from-file" || req.Path != "/v1/fee" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestUnknownCommand(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if code := run([]string{"bogus"}, stdout, stderr); code != 1 {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(stderr.String(), `Unknown command "bogus"`) {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestRateSetHumanNormalizes(t *testing.T) {
	srv, captured := stubServer(t, http.StatusOK, `{}`)
	code, _, stderr := runCLI(t, srv.URL, "--token", "t", "rate", "set", "--human", "--to-decimals", "6", "--rate-from", "1", "--rate-to", "3", "TKA", "TKB")
	if code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr)
	}
	body := (*captured)[0].Body
	if body["rate_from"] != "1000000000000000000" || body["rate_to"] != "3000000" {
		t.Fatalf("unexpected body %v", body)
	}
}

package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testServiceAccount(t *testing.T, tokenURI string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	b, _ := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   "cli-project",
		"private_key":  string(keyPEM),
		"client_email": "cli@cli-project.iam.gserviceaccount.com",
		"token_uri":    tokenURI,
	})
	return string(b)
}

// flakyGoogle answers 503 to the first n sends, then succeeds.
func flakyGoogle(failures int64) (*httptest.Server, *atomic.Int64) {
	var sends atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"cli-token","expires_in":3600}`)
	})
	mux.HandleFunc("/v1/projects/cli-project/messages:send", func(w http.ResponseWriter, r *http.Request) {
		if sends.Add(1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"status":"UNAVAILABLE"}}`)
			return
		}
		fmt.Fprint(w, `{"name":"projects/cli-project/messages/1"}`)
	})
	return httptest.NewServer(mux), &sends
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	srv, sends := flakyGoogle(1)
	defer srv.Close()

	t.Setenv("PUSH_RELAY_CREDENTIALS_JSON", testServiceAccount(t, srv.URL+"/token"))
	t.Setenv("PUSH_RELAY_FCM_ENDPOINT", srv.URL)

	var out bytes.Buffer
	res, err := execute(context.Background(), options{
		target:   "device-1",
		title:    "Hi",
		body:     "There",
		data:     `{"n":1}`,
		attempts: 3,
	}, &out)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Expected success after retry, got %s", res.ErrorMessage)
	}
	if sends.Load() != 2 {
		t.Errorf("Expected 2 provider calls, got %d", sends.Load())
	}

	var printed map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &printed); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if printed["success"] != true {
		t.Errorf("Expected printed success, got %v", printed)
	}
}

func TestExecuteEmptyTokenNotRetried(t *testing.T) {
	srv, sends := flakyGoogle(0)
	defer srv.Close()

	t.Setenv("PUSH_RELAY_CREDENTIALS_JSON", testServiceAccount(t, srv.URL+"/token"))
	t.Setenv("PUSH_RELAY_FCM_ENDPOINT", srv.URL)

	res, err := execute(context.Background(), options{attempts: 5}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.Success {
		t.Fatal("Expected failure for empty token")
	}
	if sends.Load() != 0 {
		t.Errorf("Expected no provider calls, got %d", sends.Load())
	}
}

func TestExecuteInvalidData(t *testing.T) {
	srv, _ := flakyGoogle(0)
	defer srv.Close()

	t.Setenv("PUSH_RELAY_CREDENTIALS_JSON", testServiceAccount(t, srv.URL+"/token"))

	if _, err := execute(context.Background(), options{target: "x", data: "not-json", attempts: 1}, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for invalid -data")
	}
}

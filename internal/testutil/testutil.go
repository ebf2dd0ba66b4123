// Package testutil provides common test helpers for NutriPipe HTTP and store tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/BTreeMap/NutriPipe/internal/store"
)

// AssertHTTPStatus fails the test if actual does not match expected.
func AssertHTTPStatus(t testing.TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeAPIResponse decodes the JSON envelope and checks its status field.
// The result is left as raw JSON for the caller to decode.
func DecodeAPIResponse(t testing.TB, rr *httptest.ResponseRecorder, expected models.APIStatus) (models.APIResponse, json.RawMessage) {
	t.Helper()
	var envelope struct {
		models.APIResponse
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if envelope.Status != expected {
		t.Errorf("expected status %q, got %q (message %q)", expected, envelope.Status, envelope.Message)
	}
	return envelope.APIResponse, envelope.Result
}

// NewJSONRequest builds a request whose body is body marshaled as JSON, or
// empty when body is nil.
func NewJSONRequest(t testing.TB, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// Profile returns a complete profile for identity.
func Profile(identity, name string) models.UserProfile {
	return models.UserProfile{
		Identity:  identity,
		Name:      name,
		Age:       30,
		Weight:    70,
		Height:    170,
		Activity:  models.ActivityModerate,
		Goal:      models.GoalMaintenance,
		Diseases:  models.NoneValue,
		Allergies: models.NoneValue,
		CreatedAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

// SeedProfiles registers one profile per identity.
func SeedProfiles(t testing.TB, st store.ProfileStore, identities ...string) {
	t.Helper()
	for _, id := range identities {
		if err := st.CreateProfile(context.Background(), Profile(id, "User "+id)); err != nil {
			t.Fatalf("failed to seed profile %s: %v", id, err)
		}
	}
}

package berghain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{})

	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("default base URL: expected %s, got %s", DefaultBaseURL, c.BaseURL())
	}
	if c.http.Timeout == 0 {
		t.Error("expected a default HTTP timeout")
	}
}

func TestNewGame(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/new-game" {
			t.Errorf("expected /new-game, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("scenario") != "1" {
			t.Errorf("scenario param: expected 1, got %s", r.URL.Query().Get("scenario"))
		}
		if r.URL.Query().Get("playerId") != "player-1" {
			t.Errorf("playerId param: expected player-1, got %s", r.URL.Query().Get("playerId"))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"gameId": "game-abc",
			"constraints": []map[string]any{
				{"attribute": "techno_lover", "minCount": 650},
				{"attribute": "berlin_local", "minCount": 750},
			},
			"attributeStatistics": map[string]any{
				"relativeFrequencies": map[string]any{
					"techno_lover": 0.627,
					"berlin_local": 0.398,
				},
				"correlations": map[string]any{
					"techno_lover": map[string]any{"techno_lover": 1.0, "berlin_local": -0.655},
					"berlin_local": map[string]any{"techno_lover": -0.655, "berlin_local": 1.0},
				},
			},
		})
	}))
	defer server.Close()

	c := NewClient(Config{
		BaseURL:    server.Listener.Addr().String(),
		HTTPClient: server.Client(),
	})

	game, err := c.NewGame(context.Background(), 1, "player-1")
	if err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}

	if game.GameID != "game-abc" {
		t.Errorf("game id: expected game-abc, got %s", game.GameID)
	}
	if len(game.Constraints) != 2 {
		t.Fatalf("expected 2 constraints, got %d", len(game.Constraints))
	}
	if game.Constraints[0].Attribute != "techno_lover" || game.Constraints[0].MinCount != 650 {
		t.Errorf("unexpected first constraint: %+v", game.Constraints[0])
	}
	if got := game.AttributeStatistics.RelativeFrequencies["berlin_local"]; got != 0.398 {
		t.Errorf("berlin_local frequency: expected 0.398, got %f", got)
	}
	if got := game.AttributeStatistics.Correlations["techno_lover"]["berlin_local"]; got != -0.655 {
		t.Errorf("correlation: expected -0.655, got %f", got)
	}
}

func TestNewGameRequiresPlayerID(t *testing.T) {
	c := NewClient(Config{})
	if _, err := c.NewGame(context.Background(), 1, ""); err == nil {
		t.Fatal("expected an error for a missing player id")
	}
}

func TestNewGameMissingGameID(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"constraints": []any{}})
	}))
	defer server.Close()

	c := NewClient(Config{
		BaseURL:    server.Listener.Addr().String(),
		HTTPClient: server.Client(),
	})

	if _, err := c.NewGame(context.Background(), 1, "player-1"); err == nil {
		t.Fatal("expected an error for a response without gameId")
	}
}

func TestDecideAndNextFirstPerson(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/decide-and-next" {
			t.Errorf("expected /decide-and-next, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("gameId") != "game-abc" || q.Get("personIndex") != "0" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Has("accept") {
			t.Error("accept should be omitted on the first fetch")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"status":        "running",
			"admittedCount": 0,
			"rejectedCount": 0,
			"nextPerson": map[string]any{
				"personIndex": 0,
				"attributes":  map[string]any{"techno_lover": true, "berlin_local": false},
			},
		})
	}))
	defer server.Close()

	c := NewClient(Config{
		BaseURL:    server.Listener.Addr().String(),
		HTTPClient: server.Client(),
	})

	state, err := c.DecideAndNext(context.Background(), "game-abc", 0, nil)
	if err != nil {
		t.Fatalf("DecideAndNext failed: %v", err)
	}
	if state.Status != StatusRunning {
		t.Errorf("status: expected running, got %s", state.Status)
	}
	if state.NextPerson == nil {
		t.Fatal("expected a next person")
	}
	if !state.NextPerson.Attributes["techno_lover"] {
		t.Error("expected techno_lover attribute")
	}
}

func TestDecideAndNextSendsDecision(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("accept"); got != "true" {
			t.Errorf("accept param: expected true, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":        "completed",
			"admittedCount": 1000,
			"rejectedCount": 4213,
			"nextPerson":    nil,
		})
	}))
	defer server.Close()

	c := NewClient(Config{
		BaseURL:    server.Listener.Addr().String(),
		HTTPClient: server.Client(),
	})

	accept := true
	state, err := c.DecideAndNext(context.Background(), "game-abc", 5213, &accept)
	if err != nil {
		t.Fatalf("DecideAndNext failed: %v", err)
	}
	if state.Status != StatusCompleted {
		t.Errorf("status: expected completed, got %s", state.Status)
	}
	if state.NextPerson != nil {
		t.Error("expected no next person after completion")
	}
	if state.AdmittedCount != 1000 || state.RejectedCount != 4213 {
		t.Errorf("unexpected counts: %d/%d", state.AdmittedCount, state.RejectedCount)
	}
}

func TestDecideAndNextRequiresAccept(t *testing.T) {
	c := NewClient(Config{})
	if _, err := c.DecideAndNext(context.Background(), "game-abc", 3, nil); err == nil {
		t.Fatal("expected an error when accept is omitted past the first person")
	}
}

func TestHTTPError(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte("game not found"))
	}))
	defer server.Close()

	c := NewClient(Config{
		BaseURL:    server.Listener.Addr().String(),
		HTTPClient: server.Client(),
	})

	_, err := c.DecideAndNext(context.Background(), "nope", 0, nil)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}

	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("expected *HTTPError, got %T: %v", err, err)
	}
	if !httpErr.IsNotFound() {
		t.Errorf("expected a not-found status, got %d", httpErr.StatusCode)
	}
	if httpErr.Body != "game not found" {
		t.Errorf("unexpected body: %q", httpErr.Body)
	}
}

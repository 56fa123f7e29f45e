// Package registry reads and writes the per-scenario game registry file
// (game_info.json): a JSON object mapping game id to game metadata.
//
// The registry's notion of "most recent" is an insertion-order assumption
// on the writer, not something the JSON format guarantees. Entries written
// by this tool therefore carry an explicit createdAt timestamp, and the
// newest-entry selection prefers it; the last key in document order is
// kept only as the documented fallback for externally written files.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// FileName is the registry file name inside a scenario directory.
const FileName = "game_info.json"

// ErrEmpty is returned when the registry parses cleanly but holds no games.
var ErrEmpty = errors.New("registry: no games recorded")

// ErrNotObject is returned when the file is valid JSON but not an object.
var ErrNotObject = errors.New("registry: document is not a JSON object")

// Entry is one registry record in document order. The metadata is kept
// opaque; only createdAt is probed out of it.
type Entry struct {
	GameID    string
	CreatedAt time.Time       // zero when the writer did not stamp one
	Raw       json.RawMessage // metadata exactly as written
}

// Load parses the registry file preserving document key order.
//
// The legacy layout (a single game object with a top-level "gameId" string
// field) is returned as a one-entry registry keyed by that id.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return parse(data)
}

// LatestGameID returns the identifier of the newest game in the registry:
// the entry with the greatest createdAt when any entry carries one, the
// last entry in document order otherwise.
func LatestGameID(path string) (string, error) {
	entries, err := Load(path)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrEmpty
	}

	latest := entries[len(entries)-1]
	var best time.Time
	for _, e := range entries {
		if !e.CreatedAt.IsZero() && !e.CreatedAt.Before(best) {
			best = e.CreatedAt
			latest = e
		}
	}
	return latest.GameID, nil
}

// Find returns the entry for gameID, or false when it is not recorded.
func Find(path, gameID string) (Entry, bool, error) {
	entries, err := Load(path)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.GameID == gameID {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Append records a game under its id, preserving every existing entry and
// their order. A missing or empty file starts a fresh registry; an entry
// with the same id is replaced in place.
func Append(path, gameID string, record any) error {
	if gameID == "" {
		return fmt.Errorf("registry: game id is required")
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("registry: encode game %s: %w", gameID, err)
	}

	var entries []Entry
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		entries, err = parse(data)
		if err != nil {
			return err
		}
	case os.IsNotExist(err):
		// First game for this scenario.
	default:
		return fmt.Errorf("registry: read %s: %w", path, err)
	}

	entry := Entry{GameID: gameID, CreatedAt: probeCreatedAt(raw), Raw: raw}
	replaced := false
	for i := range entries {
		if entries[i].GameID == gameID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	out, err := marshalOrdered(entries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("registry: write %s: %w", path, err)
	}
	return nil
}

// parse walks the document token by token so key order survives, which a
// plain map unmarshal would destroy.
func parse(data []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("registry: invalid JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotObject
	}

	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("registry: invalid JSON: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("registry: unexpected key token %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("registry: invalid value for %q: %w", key, err)
		}
		entries = append(entries, Entry{GameID: key, CreatedAt: probeCreatedAt(raw), Raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("registry: invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("registry: trailing data after document")
	}

	if legacy, ok := legacyEntry(entries, data); ok {
		return []Entry{legacy}, nil
	}
	return entries, nil
}

// legacyEntry detects the original single-game layout, where the document
// itself is the metadata and "gameId" is a top-level string field.
func legacyEntry(entries []Entry, doc []byte) (Entry, bool) {
	for _, e := range entries {
		if e.GameID != "gameId" {
			continue
		}
		var id string
		if err := json.Unmarshal(e.Raw, &id); err != nil || id == "" {
			return Entry{}, false
		}
		return Entry{GameID: id, CreatedAt: probeCreatedAt(doc), Raw: append(json.RawMessage(nil), doc...)}, true
	}
	return Entry{}, false
}

// probeCreatedAt extracts the optional createdAt stamp from metadata.
func probeCreatedAt(raw json.RawMessage) time.Time {
	var probe struct {
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return time.Time{}
	}
	return probe.CreatedAt
}

// marshalOrdered renders the registry with two-space indentation, keys in
// entry order.
func marshalOrdered(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, e := range entries {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		key, err := json.Marshal(e.GameID)
		if err != nil {
			return nil, fmt.Errorf("registry: encode key %q: %w", e.GameID, err)
		}
		buf.Write(key)
		buf.WriteString(": ")
		var val bytes.Buffer
		if err := json.Indent(&val, e.Raw, "  ", "  "); err != nil {
			return nil, fmt.Errorf("registry: indent entry %q: %w", e.GameID, err)
		}
		buf.Write(val.Bytes())
	}
	buf.WriteString("\n}")
	return buf.Bytes(), nil
}

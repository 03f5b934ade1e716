package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/scanner"
)

// ErrNoSession is returned when no scan session has been saved.
var ErrNoSession = errors.New("no saved scan session")

// Session is a saved scan result. It lets a later `clean --id` invocation
// resolve item ids from an earlier `scan`.
type Session struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Result    *scanner.Result `json:"result"`
}

// Find resolves an item id against the saved result.
func (s *Session) Find(id string) (scanner.Item, bool) {
	if s == nil || s.Result == nil {
		return scanner.Item{}, false
	}
	return s.Result.Find(id)
}

// SessionManager manages session persistence
type SessionManager struct {
	sessionsDir string
	now         func() time.Time
}

// NewSessionManager creates a session manager under the app state dir.
func NewSessionManager() (*SessionManager, error) {
	stateDir, err := platform.AppStateDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get state directory: %w", err)
	}
	return NewSessionManagerAt(filepath.Join(stateDir, "sessions"))
}

// NewSessionManagerAt creates a session manager rooted at dir.
func NewSessionManagerAt(dir string) (*SessionManager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &SessionManager{sessionsDir: dir, now: time.Now}, nil
}

// Save writes a session for res and returns it.
func (sm *SessionManager) Save(res *scanner.Result) (*Session, error) {
	now := sm.now()
	session := &Session{
		ID:        fmt.Sprintf("session_%d", now.UnixNano()),
		Timestamp: now,
		Result:    res,
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	filename := filepath.Join(sm.sessionsDir, session.ID+".json")
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write session file: %w", err)
	}
	return session, nil
}

// Load loads a session from disk by ID
func (sm *SessionManager) Load(id string) (*Session, error) {
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("invalid session id %q", id)
	}
	data, err := os.ReadFile(filepath.Join(sm.sessionsDir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// List returns all saved sessions, newest first. Unreadable files are skipped.
func (sm *SessionManager) List() ([]*Session, error) {
	entries, err := os.ReadDir(sm.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		session, err := sm.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.After(sessions[j].Timestamp)
	})
	return sessions, nil
}

// Delete deletes a session by ID
func (sm *SessionManager) Delete(id string) error {
	if err := os.Remove(filepath.Join(sm.sessionsDir, id+".json")); err != nil {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// GetLatest returns the most recent session
func (sm *SessionManager) GetLatest() (*Session, error) {
	sessions, err := sm.List()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNoSession
	}
	return sessions[0], nil
}

// CleanOldSessions removes sessions older than maxAge, always keeping the
// newest.
func (sm *SessionManager) CleanOldSessions(maxAge time.Duration) (int, error) {
	sessions, err := sm.List()
	if err != nil {
		return 0, err
	}

	cutoff := sm.now().Add(-maxAge)
	removed := 0
	for i, session := range sessions {
		if i == 0 || !session.Timestamp.Before(cutoff) {
			continue
		}
		if err := sm.Delete(session.ID); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Dir returns the sessions directory path
func (sm *SessionManager) Dir() string {
	return sm.sessionsDir
}

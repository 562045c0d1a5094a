package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maltedev/life-quote-scraper/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is a resumable quote page collected for one risk profile.
type Session struct {
	Fields      []models.Field `json:"fields"`
	URL         string         `json:"url"`
	CollectedAt time.Time      `json:"collected_at"`
}

func (s Session) Profile() models.Combination {
	return models.NewCombination(s.Fields...)
}

// SessionStore persists session URLs keyed by profile so a later run can skip
// the collection phase.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	filename string
	now      func() time.Time
}

func NewSessionStore(filename string) (*SessionStore, error) {
	ss := &SessionStore{
		sessions: make(map[string]*Session),
		filename: filename,
		now:      time.Now,
	}

	if err := ss.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	return ss, nil
}

func (ss *SessionStore) Put(profile models.Combination, url string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if url == "" {
		return fmt.Errorf("session url is required for %s", profile)
	}

	ss.sessions[profile.Key()] = &Session{
		Fields:      profile.Fields(),
		URL:         url,
		CollectedAt: ss.now(),
	}
	return ss.save()
}

func (ss *SessionStore) Get(profile models.Combination) (Session, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	s, ok := ss.sessions[profile.Key()]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, profile)
	}
	return *s, nil
}

// Missing returns the profiles without a stored session, in input order.
func (ss *SessionStore) Missing(profiles []models.Combination) []models.Combination {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var missing []models.Combination
	for _, p := range profiles {
		if _, ok := ss.sessions[p.Key()]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

func (ss *SessionStore) save() error {
	data, err := json.MarshalIndent(ss.sessions, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(ss.filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmpFile := ss.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, ss.filename)
}

func (ss *SessionStore) Load() error {
	data, err := os.ReadFile(ss.filename)
	if err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	return json.Unmarshal(data, &ss.sessions)
}

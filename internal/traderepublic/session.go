package traderepublic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// SessionState is the saved brokerage web session.
type SessionState struct {
	SavedAt time.Time       `json:"saved_at"`
	Phone   string          `json:"phone"` // Masked, for identification only
	Cookies []SessionCookie `json:"cookies"`
}

// SessionCookie is one persisted session cookie.
type SessionCookie struct {
	Expires time.Time `json:"expires,omitempty"`
	Name    string    `json:"name"`
	Value   string    `json:"value"`
}

func newSessionState(phone string, cookies []*http.Cookie) *SessionState {
	state := &SessionState{
		SavedAt: time.Now(),
		Phone:   maskPhone(phone),
	}
	for _, c := range cookies {
		state.Cookies = append(state.Cookies, SessionCookie{
			Name:    c.Name,
			Value:   c.Value,
			Expires: c.Expires,
		})
	}
	return state
}

// httpCookies returns the cookies that have not expired yet.
func (s *SessionState) httpCookies(now time.Time) []*http.Cookie {
	var cookies []*http.Cookie
	for _, c := range s.Cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return cookies
}

func loadSessionState(path string) (*SessionState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func saveSessionState(path string, state *SessionState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Read/write for owner only
}

func removeSessionState(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func maskPhone(phone string) string {
	if len(phone) > 6 {
		return phone[:3] + "..." + phone[len(phone)-3:]
	}
	return "short_phone"
}

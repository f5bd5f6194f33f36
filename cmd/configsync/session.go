package main

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Session is the saved login state for one server.
type Session struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Token    string `toml:"token,omitempty"`
}

func sessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "configsync")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.toml"), nil
}

func loadSession() (Session, error) {
	path, err := sessionPath()
	if err != nil {
		return Session{}, err
	}
	var s Session
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if os.IsNotExist(err) {
			return Session{}, nil
		}
		return Session{}, err
	}
	return s, nil
}

func saveSession(s Session) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(s)
}

func clearSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Cached session token, loaded once per process.
var (
	sessionOnce sync.Once
	cachedToken string
)

func activeSessionToken() string {
	sessionOnce.Do(func() {
		s, err := loadSession()
		if err != nil {
			return
		}
		cachedToken = s.Token
	})
	return cachedToken
}

package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DisplayMode is the persisted colour scheme of the chat surface.
type DisplayMode string

const (
	DisplayDark  DisplayMode = "dark"
	DisplayLight DisplayMode = "light"
)

// Preferences persists user display settings across runs.
type Preferences struct {
	Mode      DisplayMode `json:"display_mode"`
	UpdatedAt string      `json:"updated_at,omitempty"`
	mu        sync.RWMutex
	filePath  string
}

// NewPreferences creates a store, loading from disk if available.
// A missing or unreadable file leaves the dark default in place.
func NewPreferences(workspace string) *Preferences {
	stateDir := filepath.Join(workspace, "state")
	os.MkdirAll(stateDir, 0755)

	p := &Preferences{
		Mode:     DisplayDark,
		filePath: filepath.Join(stateDir, "preferences.json"),
	}
	p.load()
	return p
}

func (p *Preferences) DisplayMode() DisplayMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Mode
}

func (p *Preferences) Dark() bool {
	return p.DisplayMode() == DisplayDark
}

// SetDisplayMode stores mode and rewrites the file.
func (p *Preferences) SetDisplayMode(mode DisplayMode) error {
	if mode != DisplayDark && mode != DisplayLight {
		return fmt.Errorf("unknown display mode %q", mode)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Mode = mode
	p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return p.saveAtomic()
}

// Toggle flips between dark and light and returns the new mode.
func (p *Preferences) Toggle() (DisplayMode, error) {
	next := DisplayDark
	if p.Dark() {
		next = DisplayLight
	}
	return next, p.SetDisplayMode(next)
}

func (p *Preferences) Path() string {
	return p.filePath
}

func (p *Preferences) load() {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return
	}
	json.Unmarshal(data, p)
	if p.Mode != DisplayLight {
		p.Mode = DisplayDark
	}
}

func (p *Preferences) saveAtomic() error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	tmp := p.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, p.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

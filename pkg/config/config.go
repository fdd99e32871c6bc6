// Package config provides saved server profiles and the settings file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"trs80term/pkg/connection"
	"trs80term/pkg/history"
)

// ProfileManager interface defines the contract for profile operations
type ProfileManager interface {
	SaveProfile(name string, profile Profile) error
	LoadProfile(name string) (Profile, error)
	ListProfiles() ([]ProfileInfo, error)
	DeleteProfile(name string) error
	UpdateProfile(name string, profile Profile) error
	ProfileExists(name string) bool
}

// Profile is everything needed to reach one emulator server.
type Profile struct {
	URL          string                 `json:"url" yaml:"url"`
	Retry        connection.RetryConfig `json:"retry" yaml:"retry"`
	Record       string                 `json:"record,omitempty" yaml:"record,omitempty"`
	RecordFormat string                 `json:"record_format,omitempty" yaml:"record_format,omitempty"`
}

// Validate checks if the profile is valid
func (p Profile) Validate() error {
	if _, err := connection.ParseEndpoint(p.URL); err != nil {
		return fmt.Errorf("invalid server address: %w", err)
	}

	if err := p.Retry.Validate(); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}

	if p.RecordFormat != "" {
		if _, err := history.ParseFormat(p.RecordFormat); err != nil {
			return err
		}
	}

	return nil
}

// DefaultProfile returns a profile for a server on this machine.
func DefaultProfile() Profile {
	return Profile{
		URL:   "ws://localhost:8080/ws",
		Retry: connection.DefaultRetryConfig(),
	}
}

// ProfileInfo contains metadata about a saved profile
type ProfileInfo struct {
	Name        string    `json:"name" yaml:"name"`
	Profile     Profile   `json:"profile" yaml:"profile"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at" yaml:"last_used_at"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate checks if the profile info is valid
func (p ProfileInfo) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if err := p.Profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	if p.CreatedAt.IsZero() {
		return fmt.Errorf("created_at timestamp cannot be zero")
	}

	return nil
}

// ProfileStorage represents the storage format for profiles
type ProfileStorage struct {
	Profiles map[string]ProfileInfo `json:"profiles"`
	Version  string                 `json:"version"`
}

const storageVersion = "1.0"

// DefaultConfigDir returns ~/.config/trs80term, honouring XDG_CONFIG_HOME.
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".trs80term"
	}
	return filepath.Join(dir, "trs80term")
}

// FileProfileManager implements ProfileManager using file storage
type FileProfileManager struct {
	configDir  string
	configFile string
}

// NewFileProfileManager creates a new file-based profile manager. An empty
// configDir uses DefaultConfigDir().
func NewFileProfileManager(configDir string) *FileProfileManager {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return &FileProfileManager{
		configDir:  configDir,
		configFile: "profiles.json",
	}
}

// Initialize creates the configuration directory and initializes storage if needed
func (fpm *FileProfileManager) Initialize() error {
	if err := os.MkdirAll(fpm.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := fpm.getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		storage := ProfileStorage{
			Profiles: make(map[string]ProfileInfo),
			Version:  storageVersion,
		}

		if err := fpm.saveStorage(storage); err != nil {
			return fmt.Errorf("failed to initialize config file: %w", err)
		}
	}

	return nil
}

// SaveProfile saves a profile with the given name
func (fpm *FileProfileManager) SaveProfile(name string, profile Profile) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	if err := fpm.Initialize(); err != nil {
		return err
	}

	storage, err := fpm.loadStorage()
	if err != nil {
		return fmt.Errorf("failed to load existing profiles: %w", err)
	}

	now := time.Now()
	info := ProfileInfo{
		Name:       name,
		Profile:    profile,
		CreatedAt:  now,
		LastUsedAt: now,
	}

	// If the profile already exists, preserve creation time
	if existing, exists := storage.Profiles[name]; exists {
		info.CreatedAt = existing.CreatedAt
		info.Description = existing.Description
	}

	storage.Profiles[name] = info

	if err := fpm.saveStorage(storage); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return nil
}

// LoadProfile loads a profile by name and marks it used
func (fpm *FileProfileManager) LoadProfile(name string) (Profile, error) {
	if name == "" {
		return Profile{}, fmt.Errorf("profile name cannot be empty")
	}

	storage, err := fpm.loadStorage()
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load profiles: %w", err)
	}

	info, exists := storage.Profiles[name]
	if !exists {
		return Profile{}, fmt.Errorf("profile '%s' not found", name)
	}

	info.LastUsedAt = time.Now()
	storage.Profiles[name] = info

	// Save updated last used time (ignore errors for this non-critical update)
	fpm.saveStorage(storage)

	return info.Profile, nil
}

// GetProfile returns a profile with its metadata without marking it used
func (fpm *FileProfileManager) GetProfile(name string) (ProfileInfo, error) {
	storage, err := fpm.loadStorage()
	if err != nil {
		return ProfileInfo{}, fmt.Errorf("failed to load profiles: %w", err)
	}

	info, exists := storage.Profiles[name]
	if !exists {
		return ProfileInfo{}, fmt.Errorf("profile '%s' not found", name)
	}
	return info, nil
}

// ListProfiles returns all saved profiles sorted by name
func (fpm *FileProfileManager) ListProfiles() ([]ProfileInfo, error) {
	storage, err := fpm.loadStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	profiles := make([]ProfileInfo, 0, len(storage.Profiles))
	for _, info := range storage.Profiles {
		profiles = append(profiles, info)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})

	return profiles, nil
}

// DeleteProfile deletes a profile by name
func (fpm *FileProfileManager) DeleteProfile(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	storage, err := fpm.loadStorage()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if _, exists := storage.Profiles[name]; !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}

	delete(storage.Profiles, name)

	if err := fpm.saveStorage(storage); err != nil {
		return fmt.Errorf("failed to save profiles after deletion: %w", err)
	}

	return nil
}

// UpdateProfile updates an existing profile
func (fpm *FileProfileManager) UpdateProfile(name string, profile Profile) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	storage, err := fpm.loadStorage()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	existing, exists := storage.Profiles[name]
	if !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}

	existing.Profile = profile
	existing.LastUsedAt = time.Now()
	storage.Profiles[name] = existing

	if err := fpm.saveStorage(storage); err != nil {
		return fmt.Errorf("failed to save updated profile: %w", err)
	}

	return nil
}

// ProfileExists checks if a profile with the given name exists
func (fpm *FileProfileManager) ProfileExists(name string) bool {
	if name == "" {
		return false
	}

	storage, err := fpm.loadStorage()
	if err != nil {
		return false
	}

	_, exists := storage.Profiles[name]
	return exists
}

// SetProfileDescription sets the description for a profile
func (fpm *FileProfileManager) SetProfileDescription(name, description string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	storage, err := fpm.loadStorage()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	info, exists := storage.Profiles[name]
	if !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}

	info.Description = description
	storage.Profiles[name] = info

	if err := fpm.saveStorage(storage); err != nil {
		return fmt.Errorf("failed to save profile description: %w", err)
	}

	return nil
}

// isYAML reports whether path names a YAML file
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ExportProfile writes a profile to filePath, as YAML when the name ends in
// .yaml or .yml and as JSON otherwise
func (fpm *FileProfileManager) ExportProfile(name, filePath string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if filePath == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	info, err := fpm.GetProfile(name)
	if err != nil {
		return err
	}

	var data []byte
	if isYAML(filePath) {
		data, err = yaml.Marshal(info)
	} else {
		data, err = json.MarshalIndent(info, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}

	return nil
}

// ImportProfile reads a profile written by ExportProfile and saves it.
// It returns the imported profile's name.
func (fpm *FileProfileManager) ImportProfile(filePath string) (string, error) {
	if filePath == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read profile file: %w", err)
	}

	var info ProfileInfo
	if isYAML(filePath) {
		err = yaml.Unmarshal(data, &info)
	} else {
		err = json.Unmarshal(data, &info)
	}
	if err != nil {
		return "", fmt.Errorf("failed to parse profile file: %w", err)
	}

	if err := info.Validate(); err != nil {
		return "", fmt.Errorf("invalid profile in file: %w", err)
	}

	if err := fpm.SaveProfile(info.Name, info.Profile); err != nil {
		return "", err
	}
	if info.Description != "" {
		if err := fpm.SetProfileDescription(info.Name, info.Description); err != nil {
			return "", err
		}
	}
	return info.Name, nil
}

// SearchProfiles searches for profiles by name, address or description
func (fpm *FileProfileManager) SearchProfiles(query string) ([]ProfileInfo, error) {
	profiles, err := fpm.ListProfiles()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return profiles, nil
	}

	query = strings.ToLower(query)
	var results []ProfileInfo
	for _, info := range profiles {
		if strings.Contains(strings.ToLower(info.Name), query) ||
			strings.Contains(strings.ToLower(info.Profile.URL), query) ||
			strings.Contains(strings.ToLower(info.Description), query) {
			results = append(results, info)
		}
	}

	return results, nil
}

// GetConfigPath returns the full path to the profile file
func (fpm *FileProfileManager) GetConfigPath() string {
	return fpm.getConfigPath()
}

// Private helper methods

// getConfigPath returns the full path to the profile file
func (fpm *FileProfileManager) getConfigPath() string {
	return filepath.Join(fpm.configDir, fpm.configFile)
}

// loadStorage loads the profile storage from file
func (fpm *FileProfileManager) loadStorage() (ProfileStorage, error) {
	configPath := fpm.getConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty storage if file doesn't exist
			return ProfileStorage{
				Profiles: make(map[string]ProfileInfo),
				Version:  storageVersion,
			}, nil
		}
		return ProfileStorage{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var storage ProfileStorage
	if err := json.Unmarshal(data, &storage); err != nil {
		return ProfileStorage{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if storage.Profiles == nil {
		storage.Profiles = make(map[string]ProfileInfo)
	}

	return storage, nil
}

// saveStorage saves the profile storage to file
func (fpm *FileProfileManager) saveStorage(storage ProfileStorage) error {
	configPath := fpm.getConfigPath()

	data, err := json.MarshalIndent(storage, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config data: %w", err)
	}

	// Write to temporary file first, then rename for atomic operation
	tempPath := configPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary config file: %w", err)
	}

	return nil
}

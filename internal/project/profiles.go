package project

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/piwi3910/platenest/internal/model"
)

// DefaultProfilesDir returns the default directory for storing custom
// printer profiles.
func DefaultProfilesDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "platenest"), nil
}

// DefaultProfilesPath returns the default file path for custom profiles.
func DefaultProfilesPath() (string, error) {
	dir, err := DefaultProfilesDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "printers.json"), nil
}

// SaveCustomProfiles saves custom printer profiles to a JSON file.
func SaveCustomProfiles(path string, profiles []model.PrinterProfile) error {
	return writeJSON(path, profiles)
}

// LoadCustomProfiles loads custom profiles from a JSON file.
// Returns an empty slice if the file does not exist.
func LoadCustomProfiles(path string) ([]model.PrinterProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.PrinterProfile{}, nil
		}
		return nil, err
	}

	var profiles []model.PrinterProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, err
	}

	// Loaded profiles are never built-in
	for i := range profiles {
		profiles[i].IsBuiltIn = false
	}
	return profiles, nil
}

// LoadCustomProfilesInto loads the profiles at path and registers them
// with the model's profile list.
func LoadCustomProfilesInto(path string) error {
	profiles, err := LoadCustomProfiles(path)
	if err != nil {
		return err
	}
	model.CustomProfiles = nil
	for _, p := range profiles {
		if err := model.AddCustomProfile(p); err != nil {
			return err
		}
	}
	return nil
}

// ExportProfile exports a single profile to a JSON file (for sharing).
func ExportProfile(path string, profile model.PrinterProfile) error {
	profile.IsBuiltIn = false
	return writeJSON(path, profile)
}

// ImportProfile imports a single profile from a JSON file.
func ImportProfile(path string) (model.PrinterProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.PrinterProfile{}, err
	}

	var profile model.PrinterProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return model.PrinterProfile{}, err
	}

	profile.IsBuiltIn = false
	if profile.Name == "" {
		return model.PrinterProfile{}, errors.New("imported profile has no name")
	}
	if len(profile.Config.BedShape) < 3 {
		return model.PrinterProfile{}, errors.New("imported profile has no bed shape")
	}
	return profile, nil
}

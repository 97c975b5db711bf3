package model

// AppConfig holds application-wide preferences and default settings.
type AppConfig struct {
	// Default arrangement settings applied to new scenes
	DefaultDistance        float64   `json:"default_distance"`
	DefaultEnableRotations bool      `json:"default_enable_rotations"`
	DefaultRotations       int       `json:"default_rotations"`
	DefaultAlgorithm       Algorithm `json:"default_algorithm"`
	DefaultPrinter         string    `json:"default_printer"`

	// Application preferences
	RecentScenes []string `json:"recent_scenes"`
	Theme        string   `json:"theme"` // "light", "dark", "system"
}

// DefaultAppConfig returns an AppConfig populated with the values from
// DefaultArrangeSettings().
func DefaultAppConfig() AppConfig {
	defaults := DefaultArrangeSettings()
	return AppConfig{
		DefaultDistance:        defaults.Distance,
		DefaultEnableRotations: defaults.EnableRotations,
		DefaultRotations:       defaults.Rotations,
		DefaultAlgorithm:       defaults.Algorithm,
		DefaultPrinter:         "Generic",
		RecentScenes:           []string{},
		Theme:                  "system",
	}
}

// ApplyToSettings copies the default values into an ArrangeSettings struct.
func (c AppConfig) ApplyToSettings(s *ArrangeSettings) {
	s.Distance = c.DefaultDistance
	s.EnableRotations = c.DefaultEnableRotations
	s.Rotations = c.DefaultRotations
	s.Algorithm = c.DefaultAlgorithm
}

// NewSceneFromConfig returns an empty scene using the configured defaults
// and the default printer's bed.
func (c AppConfig) NewSceneFromConfig() Scene {
	s := NewScene()
	c.ApplyToSettings(&s.Settings)
	s.Config = GetProfile(c.DefaultPrinter).Config
	return s
}

// AddRecentScene moves path to the front of the recent list, keeping at
// most max entries.
func (c *AppConfig) AddRecentScene(path string, max int) {
	out := []string{path}
	for _, p := range c.RecentScenes {
		if p != path {
			out = append(out, p)
		}
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	c.RecentScenes = out
}

package model

import "fmt"

// PrinterProfile bundles a bed shape with the print settings that affect
// arrangement.
type PrinterProfile struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Config      PrintConfig `json:"config"`
	IsBuiltIn   bool        `json:"is_built_in"`
}

func builtInConfig(w, h, clearance float64) PrintConfig {
	c := DefaultPrintConfig()
	c.BedShape = RectBed(w, h)
	c.ExtruderClearanceRadius = clearance
	return c
}

// Built-in printer profiles
var PrinterProfiles = []PrinterProfile{
	{
		Name:        "Original Prusa MK4",
		Description: "250 x 210 mm bed",
		Config:      builtInConfig(250, 210, 45),
		IsBuiltIn:   true,
	},
	{
		Name:        "Original Prusa MINI",
		Description: "180 x 180 mm bed",
		Config:      builtInConfig(180, 180, 35),
		IsBuiltIn:   true,
	},
	{
		Name:        "Original Prusa XL",
		Description: "360 x 360 mm bed",
		Config:      builtInConfig(360, 360, 45),
		IsBuiltIn:   true,
	},
	{
		Name:        "Generic",
		Description: "Generic 200 x 200 mm bed",
		Config:      builtInConfig(200, 200, 20),
		IsBuiltIn:   true,
	},
}

// CustomProfiles holds user-defined printer profiles loaded at runtime.
var CustomProfiles []PrinterProfile

// AllProfiles returns built-in profiles followed by custom ones.
func AllProfiles() []PrinterProfile {
	all := make([]PrinterProfile, 0, len(PrinterProfiles)+len(CustomProfiles))
	all = append(all, PrinterProfiles...)
	return append(all, CustomProfiles...)
}

// GetProfile returns a printer profile by name, or the Generic profile if
// not found.
func GetProfile(name string) PrinterProfile {
	for _, p := range AllProfiles() {
		if p.Name == name {
			return p
		}
	}
	return PrinterProfiles[len(PrinterProfiles)-1]
}

// GetProfileNames returns the names of all available profiles.
func GetProfileNames() []string {
	var names []string
	for _, p := range AllProfiles() {
		names = append(names, p.Name)
	}
	return names
}

func isBuiltInName(name string) bool {
	for _, p := range PrinterProfiles {
		if p.Name == name {
			return true
		}
	}
	return false
}

// AddCustomProfile adds or replaces a custom profile.
func AddCustomProfile(p PrinterProfile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if isBuiltInName(p.Name) {
		return fmt.Errorf("profile %q conflicts with a built-in profile", p.Name)
	}
	p.IsBuiltIn = false
	for i := range CustomProfiles {
		if CustomProfiles[i].Name == p.Name {
			CustomProfiles[i] = p
			return nil
		}
	}
	CustomProfiles = append(CustomProfiles, p)
	return nil
}

// RemoveCustomProfile deletes a custom profile by name.
func RemoveCustomProfile(name string) error {
	if isBuiltInName(name) {
		return fmt.Errorf("cannot remove built-in profile %q", name)
	}
	for i := range CustomProfiles {
		if CustomProfiles[i].Name == name {
			CustomProfiles = append(CustomProfiles[:i], CustomProfiles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("profile %q not found", name)
}

// NewCustomProfile returns a profile seeded from the Generic printer.
func NewCustomProfile(name string) PrinterProfile {
	p := GetProfile("Generic")
	p.Name = name
	p.Description = "Custom printer"
	p.IsBuiltIn = false
	return p
}

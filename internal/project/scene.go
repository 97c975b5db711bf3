package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/piwi3910/platenest/internal/model"
)

// SceneExtension is the file extension of saved scenes.
const SceneExtension = ".platenest"

const sceneFormatVersion = 1

// ErrUnsupportedVersion is returned for scene files written by a newer
// release.
var ErrUnsupportedVersion = errors.New("unsupported scene file version")

type sceneFile struct {
	Version int         `json:"version"`
	Scene   model.Scene `json:"scene"`
}

// Save writes the scene to path.
func Save(path string, scene model.Scene) error {
	return writeJSON(path, sceneFile{Version: sceneFormatVersion, Scene: scene})
}

// Load reads a scene written by Save. Settings missing from the file get
// their defaults.
func Load(path string) (model.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Scene{}, err
	}
	file := sceneFile{Scene: model.NewScene()}
	if err := json.Unmarshal(data, &file); err != nil {
		return model.Scene{}, fmt.Errorf("failed to parse scene file: %w", err)
	}
	if file.Version > sceneFormatVersion {
		return model.Scene{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, file.Version)
	}
	if file.Scene.Objects == nil {
		file.Scene.Objects = []model.Object{}
	}
	return file.Scene, nil
}

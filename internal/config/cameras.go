package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"facewatch/internal/model"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWidth  = 640
	DefaultHeight = 480
	DefaultFPS    = 30
)

// Camera describes one capture device. Immutable once loaded.
type Camera struct {
	ID         int        `yaml:"id" json:"id"`
	Name       string     `yaml:"name" json:"name"`
	Source     Source     `yaml:"source" json:"source"`
	Enabled    *bool      `yaml:"enabled,omitempty" json:"-"`
	Resolution Resolution `yaml:"resolution" json:"resolution"`
	FPS        int        `yaml:"fps" json:"fps"`
	Rotation   int        `yaml:"rotate" json:"rotate"`
}

type Resolution struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// IsEnabled reports the administrative state; cameras are enabled unless set otherwise.
func (c Camera) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Source is a device index ("0") or a path/URI. YAML integers and strings both decode into it.
type Source string

func (s *Source) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: camera source must be a scalar", value.Line)
	}
	*s = Source(strings.TrimSpace(value.Value))
	return nil
}

// DeviceIndex returns the integer device index when the source parses as one.
func (s Source) DeviceIndex() (int, bool) {
	idx, err := strconv.Atoi(string(s))
	if err != nil {
		return 0, false
	}
	return idx, true
}

type cameraFile struct {
	Cameras []Camera `yaml:"cameras"`
}

// LoadCameras parses the whole camera set from a YAML file.
func LoadCameras(path string) ([]Camera, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigurationError{Op: "read camera config", Err: err}
	}
	return ParseCameras(data)
}

// ParseCameras decodes, defaults and validates a camera set.
func ParseCameras(data []byte) ([]Camera, error) {
	var file cameraFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &model.ConfigurationError{Op: "parse camera config", Err: err}
	}

	for i := range file.Cameras {
		applyDefaults(&file.Cameras[i])
	}

	if err := ValidateCameras(file.Cameras); err != nil {
		return nil, err
	}
	return file.Cameras, nil
}

func applyDefaults(c *Camera) {
	if c.Name == "" {
		c.Name = fmt.Sprintf("Camera %d", c.ID)
	}
	if c.Resolution.Width == 0 {
		c.Resolution.Width = DefaultWidth
	}
	if c.Resolution.Height == 0 {
		c.Resolution.Height = DefaultHeight
	}
	if c.FPS == 0 {
		c.FPS = DefaultFPS
	}
}

// ValidateCameras checks per-camera fields and id uniqueness across the set.
func ValidateCameras(cameras []Camera) error {
	seen := make(map[int]bool, len(cameras))
	var errs []error

	for _, c := range cameras {
		if c.ID <= 0 {
			errs = append(errs, fmt.Errorf("camera %q: id must be positive, got %d", c.Name, c.ID))
			continue
		}
		if seen[c.ID] {
			errs = append(errs, fmt.Errorf("camera %d: duplicate id", c.ID))
		}
		seen[c.ID] = true

		if c.Source == "" {
			errs = append(errs, fmt.Errorf("camera %d: source is required", c.ID))
		}
		switch c.Rotation {
		case 0, 90, 180, 270:
		default:
			errs = append(errs, fmt.Errorf("camera %d: rotation must be 0, 90, 180 or 270, got %d", c.ID, c.Rotation))
		}
		if c.Resolution.Width <= 0 || c.Resolution.Height <= 0 {
			errs = append(errs, fmt.Errorf("camera %d: resolution must be positive", c.ID))
		}
		if c.FPS <= 0 {
			errs = append(errs, fmt.Errorf("camera %d: fps must be positive", c.ID))
		}
	}

	if len(errs) > 0 {
		return &model.ConfigurationError{Op: "validate cameras", Err: errors.Join(errs...)}
	}
	return nil
}

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"receptionist/internal/models"

	"gopkg.in/yaml.v3"
)

var (
	ErrProfileNotFound  = errors.New("business profile not found")
	ErrInvalidProfileID = errors.New("invalid business id")
)

var (
	profileIDPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)
	profileExtensions = []string{".yaml", ".yml", ".json"}
)

// LoadProfile decodes one profile file. JSON files go through the YAML decoder too.
func LoadProfile(path string) (*models.BusinessProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var profile models.BusinessProfile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", filepath.Base(path), err)
	}
	return &profile, nil
}

// ProfileDirectory serves profiles stored as <dir>/<id>.yaml|.yml|.json.
type ProfileDirectory struct {
	dir string
}

func NewProfileDirectory(dir string) *ProfileDirectory {
	return &ProfileDirectory{dir: dir}
}

func (d *ProfileDirectory) GetProfile(_ context.Context, businessID string) (*models.BusinessProfile, error) {
	if !profileIDPattern.MatchString(businessID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProfileID, businessID)
	}

	for _, ext := range profileExtensions {
		path := filepath.Join(d.dir, businessID+ext)
		profile, err := LoadProfile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if profile.ID == "" {
			profile.ID = businessID
		}
		return profile, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, businessID)
}

// IDs lists the business ids present in the directory.
func (d *ProfileDirectory) IDs() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read profiles dir: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, known := range profileExtensions {
			if ext != known {
				continue
			}
			id := e.Name()[:len(e.Name())-len(ext)]
			if profileIDPattern.MatchString(id) && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

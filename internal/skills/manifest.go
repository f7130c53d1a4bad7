package skills

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Wildcard launch criterion matching every event of its family.
const Wildcard = "*"

// DefaultSocketPath is the socket path of remote skill services.
const DefaultSocketPath = "/socket-hub/"

// Manifest lists the skills available to devices, in dispatch order.
type Manifest struct {
	Skills []SkillData `yaml:"skills" json:"skills"`
}

// SkillData is one manifest entry.
type SkillData struct {
	ID             string         `yaml:"id" json:"id"`
	LaunchCriteria LaunchCriteria `yaml:"launch_criteria" json:"launchCriteria"`
	Priority       int            `yaml:"priority" json:"priority"`
	Speak          bool           `yaml:"speak" json:"speak"` // Speak replies on the device
	Service        *ServiceData   `yaml:"service,omitempty" json:"serviceData,omitempty"`
}

// LaunchCriteria selects the event families a skill receives. An entry with
// neither set receives everything.
type LaunchCriteria struct {
	ASR string `yaml:"asr,omitempty" json:"asr,omitempty"`
	NLU string `yaml:"nlu,omitempty" json:"nlu,omitempty"`
}

// Accepts reports whether the criteria admit ev.
func (lc LaunchCriteria) Accepts(ev Event) bool {
	if lc.ASR == "" && lc.NLU == "" {
		return true
	}
	if isSpeech(ev) {
		return lc.ASR != ""
	}
	return lc.NLU != ""
}

// ServiceData locates a remote skill service.
type ServiceData struct {
	URL     string `yaml:"url" json:"url"`
	AuthURL string `yaml:"auth_url" json:"authUrl"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"` // Defaults to DefaultSocketPath
}

// Source provides the manifest for a new device connection.
type Source interface {
	Manifest(ctx context.Context) (Manifest, error)
}

// DefaultManifest returns the built-in manifest: clock, echo (spoken) and a
// local chitchat service.
func DefaultManifest() Manifest {
	return Manifest{Skills: []SkillData{
		{
			ID:             "clock",
			LaunchCriteria: LaunchCriteria{ASR: Wildcard},
			Priority:       0,
		},
		{
			ID:             "echo",
			LaunchCriteria: LaunchCriteria{ASR: Wildcard},
			Priority:       10,
			Speak:          true,
		},
		{
			ID:             "chitchat",
			LaunchCriteria: LaunchCriteria{ASR: Wildcard, NLU: Wildcard},
			Priority:       1,
			Service: &ServiceData{
				URL:     "http://localhost:8083",
				AuthURL: "http://localhost:8083/auth",
			},
		},
	}}
}

// StaticSource always returns the same manifest.
type StaticSource struct {
	M Manifest
}

// Manifest implements Source.
func (s StaticSource) Manifest(context.Context) (Manifest, error) {
	return s.M, nil
}

// FileSource reads a YAML manifest from disk on every call. ${VAR}
// references are expanded from the environment.
type FileSource struct {
	Path string
}

// Manifest implements Source.
func (s FileSource) Manifest(context.Context) (Manifest, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses a YAML manifest.
func ParseManifest(data []byte) (Manifest, error) {
	expanded := os.ExpandEnv(string(data))

	var m Manifest
	if err := yaml.Unmarshal([]byte(expanded), &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}

	seen := make(map[string]bool, len(m.Skills))
	for i, s := range m.Skills {
		if s.ID == "" {
			return Manifest{}, fmt.Errorf("parse manifest: skill %d has no id", i)
		}
		if seen[s.ID] {
			return Manifest{}, fmt.Errorf("parse manifest: duplicate skill %q", s.ID)
		}
		seen[s.ID] = true
	}
	return m, nil
}

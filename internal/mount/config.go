package mount

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MountConfig is the cloud identity a mount serves, taken from its config file.
type MountConfig struct {
	AccountName   string
	ContainerName string
}

// configFile mirrors the parts of a blobfuse2 config document we read:
//
//	azstorage:
//	  account-name: myaccount
//	  container: mycontainer
type configFile struct {
	AzStorage struct {
		AccountName string `yaml:"account-name"`
		Container   string `yaml:"container"`
	} `yaml:"azstorage"`
}

// ErrIncompleteConfig is returned when the storage section lacks a required field.
var ErrIncompleteConfig = errors.New("incomplete mount config")

// ParseConfig decodes a mount config document. A non-empty containerOverride replaces
// the container from the document, matching a --container-name on the mount command
// line. It fails on malformed YAML and on a missing account or container; callers
// never see half-filled values.
func ParseConfig(data []byte, containerOverride string) (MountConfig, error) {
	var doc configFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return MountConfig{}, fmt.Errorf("failed to parse mount config: %w", err)
	}

	cfg := MountConfig{
		AccountName:   strings.TrimSpace(doc.AzStorage.AccountName),
		ContainerName: strings.TrimSpace(doc.AzStorage.Container),
	}
	if containerOverride != "" {
		cfg.ContainerName = containerOverride
	}

	if cfg.AccountName == "" {
		return MountConfig{}, fmt.Errorf("%w: azstorage.account-name is missing", ErrIncompleteConfig)
	}
	if cfg.ContainerName == "" {
		return MountConfig{}, fmt.Errorf("%w: azstorage.container is missing", ErrIncompleteConfig)
	}
	return cfg, nil
}

// LoadConfig reads and parses the mount config at path.
func LoadConfig(path, containerOverride string) (MountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MountConfig{}, fmt.Errorf("failed to read mount config: %w", err)
	}
	return ParseConfig(data, containerOverride)
}

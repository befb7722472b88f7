package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultUndoDepth is the number of commits kept for undo by default.
const DefaultUndoDepth = 128

// Config tunes an engine.
type Config struct {
	// UndoDepth bounds the undo log. The oldest entry is dropped first.
	UndoDepth int `yaml:"undoDepth" json:"undoDepth" validate:"gt=0"`
	// RejectOnDanglingEdge fails a remove that leaves referring edges when
	// AutoCascadeRemove is off. On import it fails records whose edges name
	// absent instances instead of pruning those edges.
	RejectOnDanglingEdge bool `yaml:"rejectOnDanglingEdge" json:"rejectOnDanglingEdge"`
	// AutoCascadeRemove strips every edge to a removed instance in the same
	// transaction and fails if a host is left without a zero case.
	AutoCascadeRemove bool `yaml:"autoCascadeRemove" json:"autoCascadeRemove"`
}

func DefaultConfig() Config {
	return Config{
		UndoDepth:            DefaultUndoDepth,
		RejectOnDanglingEdge: true,
		AutoCascadeRemove:    true,
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadConfig reads a YAML config file. Absent keys keep their defaults and
// unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

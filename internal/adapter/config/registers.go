// Package config provides register catalog loading.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/WookyDO/huawei-emma-charger/internal/domain"
)

// RegistersFile represents the top-level register catalog file.
type RegistersFile struct {
	Version   string                      `yaml:"version"`
	Registers []domain.RegisterDefinition `yaml:"registers"`
}

// LoadCatalog returns the register catalog to poll. When path is empty
// the built-in catalog is used; otherwise the YAML file at path replaces
// it entirely.
func LoadCatalog(path string) ([]domain.RegisterDefinition, error) {
	if path == "" {
		return domain.DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registers file: %w", err)
	}

	var file RegistersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registers file: %w", err)
	}

	if err := domain.ValidateCatalog(file.Registers); err != nil {
		return nil, fmt.Errorf("invalid register catalog: %w", err)
	}

	return file.Registers, nil
}

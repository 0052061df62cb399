package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", y.filename, err)
	}
	return config, nil
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// ParseYAML decodes a YAML document, then applies defaults and environment
// credentials and validates the result.
func ParseYAML(data []byte) (*ConfigData, error) {
	config, err := DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	return finalize(config)
}

// DecodeYAML decodes a YAML document as written, without defaults.
// Unknown keys are rejected.
func DecodeYAML(data []byte) (*ConfigData, error) {
	config := &ConfigData{}
	if err := yaml.UnmarshalStrict(data, config); err != nil {
		return nil, err
	}
	return config, nil
}

// finalize is the common tail of every provider's LoadConfig.
func finalize(config *ConfigData) (*ConfigData, error) {
	ApplyDefaults(config)
	ApplyCredentialsFromEnv(&config.Earthdata)
	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

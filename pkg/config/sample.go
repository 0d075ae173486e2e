package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/abuseshield/federation/pkg/federation/models"
)

const sampleHeader = `# FederationServer configuration.
#
# Every key can be overridden with an environment variable; the documented
# names (FEDERATION_BASE_URL, FEDERATION_API_KEY, FEDERATION_DATABASE_HOST,
# FEDERATION_REDIS_ENABLED, ...) take precedence over this file.
#
# The api_key below is the master operator key. Keep it secret.

`

// WriteSample writes a commented sample configuration to path, creating
// parent directories as needed. Refuses to overwrite unless force is set.
// The sample carries a freshly generated master API key so a new install
// is usable immediately.
func WriteSample(path string, force bool) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	cfg := Default()
	key, err := models.GenerateAPIKey()
	if err != nil {
		return fmt.Errorf("failed to generate master API key: %w", err)
	}
	cfg.Server.APIKey = key

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render sample config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(sampleHeader), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

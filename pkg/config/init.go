package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultConfigTemplate is the sample configuration written by InitConfig.
//
// It is a hand-written template rather than a marshaled Config so the file
// can carry comments and keep the exact key spelling Load expects.
const defaultConfigTemplate = `# DandiFS configuration file.
#
# Values shown are the defaults. Environment variables with the DANDIFS_
# prefix override file values, e.g. DANDIFS_LOGGING_LEVEL=DEBUG.

logging:
  # Minimum level to output: DEBUG, INFO, WARN or ERROR.
  level: INFO
  # Output format: console or json.
  format: console

archive:
  # Base URL of the DANDI archive API.
  api_url: https://api.dandiarchive.org/api
  # API token for embargoed dandisets. Empty means anonymous access.
  token: ""
  # Per-request timeout for metadata requests.
  timeout: 30s
  # Upper bound on the total time spent retrying one request.
  retry_max_elapsed: 1m
  # Cap on outbound requests per second. 0 means uncapped.
  # requests_per_second: 0

objectstore:
  # Bucket holding zarr chunk objects.
  bucket: dandiarchive
  region: us-east-2
  # Custom S3 endpoint for test deployments (MinIO, Localstack).
  # endpoint: http://localhost:4566
  # Static credentials. Both empty means anonymous access.
  # access_key_id: ""
  # secret_access_key: ""
  # use_path_style: false

adapters:
  - type: webdav
    settings:
      port: 8080
      # host: ""
      # prefix: ""
  # - type: fuse
  #   settings:
  #     mountpoint: /mnt/dandi
  #     allow_other: false

metrics:
  enabled: false
  port: 9090
`

// InitConfig writes a commented sample configuration file to the default
// location and returns its path.
//
// Fails if a config file already exists unless force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config file already exists at %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}

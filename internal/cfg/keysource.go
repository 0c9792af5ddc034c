package cfg

import (
	"os"
	"strings"
)

// ResolveKey returns the encryption key to hand to PRAGMA key: the literal
// --key value if set, otherwise the trimmed contents of --key-file.
// Validate has already rejected the case where both or neither are set.
func ResolveKey(c *Config) (string, error) {
	if c.Key != "" {
		return c.Key, nil
	}
	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

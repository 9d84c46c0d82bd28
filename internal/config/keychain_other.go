//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// secrets maps service to account to value.
type secrets map[string]map[string]string

func secretsFilePath() string { return xdgPath("XDG_DATA_HOME", ".local/share", "secrets.json") }

func readSecrets() (secrets, error) {
	data, err := os.ReadFile(secretsFilePath())
	if err != nil {
		return nil, err
	}
	var s secrets
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return s, nil
}

// keychainGet reads a secret from the secrets file, which stands in for the
// macOS Keychain.
func keychainGet(service, account string) ([]byte, error) {
	s, err := readSecrets()
	if err != nil {
		return nil, fmt.Errorf("keychain not available: %w", err)
	}
	val, ok := s[service][account]
	if !ok {
		return nil, fmt.Errorf("no secret %s/%s", service, account)
	}
	return []byte(val), nil
}

func keychainSet(service, account, value string) error {
	s, err := readSecrets()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if s == nil {
		s = secrets{}
	}
	if s[service] == nil {
		s[service] = map[string]string{}
	}
	s[service][account] = value
	return writeJSONFile(secretsFilePath(), s)
}

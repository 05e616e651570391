package config

import "context"

// SecretProvider resolves secret references to plaintext values.
// SSMProvider serves deployed environments; EnvVarProvider serves local runs.
type SecretProvider interface {
	// GetParametersBatch returns a map of key -> plaintext for every key it
	// could resolve. Unresolved keys are omitted, not errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

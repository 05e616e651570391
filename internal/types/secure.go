package types

const redactedPlaceholder = "***REDACTED***"

// SecretString keeps credentials out of logs and JSON. String and MarshalJSON
// both return a placeholder; Unmask returns the real value.
type SecretString string

// String returns a redacted placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the raw value. Only pass it to the client that needs it.
func (s SecretString) Unmask() string {
	return string(s)
}

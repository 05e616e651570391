package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

const testSecret = "postgres://user:hunter2@db/railrisk"

func TestSecretString_Redacted(t *testing.T) {
	s := SecretString(testSecret)

	for _, out := range []string{s.String(), fmt.Sprintf("%s", s), fmt.Sprintf("%v", s)} {
		if strings.Contains(out, testSecret) {
			t.Errorf("secret leaked: %q", out)
		}
	}
}

func TestSecretString_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		URL SecretString `json:"url"`
	}{URL: SecretString(testSecret)})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Errorf("JSON leaked the secret: %s", data)
	}
	if string(data) != `{"url":"***REDACTED***"}` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestSecretString_Unmask(t *testing.T) {
	if got := SecretString(testSecret).Unmask(); got != testSecret {
		t.Errorf("Unmask() = %q, want %q", got, testSecret)
	}
}

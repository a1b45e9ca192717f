package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/docker/docker/api/types"
)

func TestRegistryAuthEncodesJSONKeyCredentials(t *testing.T) {
	key := []byte(`{"type":"service_account","project_id":"p1"}`)
	encoded, err := registryAuth(key)
	if err != nil {
		t.Fatalf("registryAuth() error = %v", err)
	}

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("base64 decode of registryAuth() output failed: %v", err)
	}
	var auth types.AuthConfig
	if err := json.Unmarshal(raw, &auth); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if auth.Username != "_json_key" {
		t.Errorf("Username = %q, want %q", auth.Username, "_json_key")
	}
	if auth.Password != string(key) {
		t.Errorf("Password = %q, want the raw service account key JSON", auth.Password)
	}
}

package cmd

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/llmcouncil/councild/internal/config"
)

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		kind    string
		value   string
		want    any
		wantErr bool
	}{
		{"int", "42", 42, false},
		{"int", "abc", nil, true},
		{"bool", "true", true, false},
		{"bool", "maybe", nil, true},
		{"string", "hello", "hello", false},
	}

	for _, tt := range tests {
		got, err := parseConfigValue(tt.kind, tt.value)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseConfigValue(%s, %q): expected error", tt.kind, tt.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseConfigValue(%s, %q): %v", tt.kind, tt.value, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseConfigValue(%s, %q) = %v, want %v", tt.kind, tt.value, got, tt.want)
		}
	}
}

func TestConfigDocument_RoundTripsDefaults(t *testing.T) {
	out, err := yaml.Marshal(configDocument(config.Default()))
	if err != nil {
		t.Fatalf("marshaling defaults: %v", err)
	}

	var doc map[string]map[string]any
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshaling rendered config: %v", err)
	}

	if doc["server"]["listen"] != ":8001" {
		t.Errorf("server.listen = %v", doc["server"]["listen"])
	}
	if doc["council"]["default_chairman"] != "openai/gpt-5.2-chat" {
		t.Errorf("council.default_chairman = %v", doc["council"]["default_chairman"])
	}
	if doc["limits"]["max_content_chars"] != 30000 {
		t.Errorf("limits.max_content_chars = %v", doc["limits"]["max_content_chars"])
	}
}

func TestConfigKeysAreLoadable(t *testing.T) {
	// Every settable key must correspond to a field the loader reads;
	// spot-check by ensuring the rendered default document contains each
	// section.key pair.
	doc := configDocument(config.Default())
	for key := range configKeys {
		parts := splitKey(key)
		section, ok := doc[parts[0]].(map[string]any)
		if !ok {
			t.Errorf("key %s: unknown section %s", key, parts[0])
			continue
		}
		if _, ok := section[parts[1]]; !ok {
			t.Errorf("key %s: not present in config document", key)
		}
	}
}

func splitKey(key string) [2]string {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return [2]string{key[:i], key[i+1:]}
		}
	}
	return [2]string{key, ""}
}

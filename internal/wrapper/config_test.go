package wrapper

import (
	"reflect"
	"testing"
)

func fullConfig() Config {
	return Config{
		ID:              "wrap-docs",
		Name:            "Docs",
		HomeAddress:     "https://docs.example.com/start",
		UserAgent:       UserAgentCustom,
		CustomUserAgent: "DocsWrapper/1.0",
		LinkPolicy:      LinkOpenNewTab,
		AllowedPatterns: []string{"docs.example.com/**", "*.example.org"},
		Capabilities: Capabilities{
			JavaScript:       true,
			BlockPopups:      true,
			PersistCookies:   true,
			Notifications:    true,
			CameraAccess:     false,
			MicrophoneAccess: false,
		},
		WindowSize: &WindowSize{Width: 1280, Height: 860},
	}
}

func TestDefault(t *testing.T) {
	cfg := Default("Docs", "https://docs.example.com")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	if cfg.LinkPolicy != LinkOpenExternal {
		t.Errorf("expected external link policy, got %s", cfg.LinkPolicy)
	}

	if !cfg.Capabilities.JavaScript {
		t.Error("expected JavaScript enabled by default")
	}

	if cfg.ID == "" {
		t.Error("expected a generated ID")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty name", func(c *Config) { c.Name = "" }, true},
		{"relative address", func(c *Config) { c.HomeAddress = "/start" }, true},
		{"ftp scheme", func(c *Config) { c.HomeAddress = "ftp://example.com" }, true},
		{"custom ua without string", func(c *Config) {
			c.UserAgent = UserAgentCustom
			c.CustomUserAgent = ""
		}, true},
		{"unknown ua policy", func(c *Config) { c.UserAgent = "desktop" }, true},
		{"unknown link policy", func(c *Config) { c.LinkPolicy = "ask" }, true},
		{"bad pattern", func(c *Config) { c.AllowedPatterns = []string{"a[b"} }, true},
		{"zero window size", func(c *Config) { c.WindowSize = &WindowSize{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fullConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestHomeHost(t *testing.T) {
	cfg := fullConfig()

	if got := cfg.HomeHost(); got != "docs.example.com" {
		t.Errorf("expected docs.example.com, got %q", got)
	}

	cfg.HomeAddress = "https://Docs.Example.COM:8443/app"
	if got := cfg.HomeHost(); got != "docs.example.com" {
		t.Errorf("expected lowercased host without port, got %q", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	original := fullConfig()

	data, err := original.EncodeJSON()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("round trip mismatch:\noriginal: %+v\ndecoded:  %+v", original, decoded)
	}
}

func TestTOMLRoundTrip(t *testing.T) {
	original := fullConfig()

	data, err := original.EncodeTOML()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodeTOML(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("round trip mismatch:\noriginal: %+v\ndecoded:  %+v", original, decoded)
	}
}

func TestRoundTripWithoutOptionalFields(t *testing.T) {
	original := Default("Docs", "https://docs.example.com")

	data, err := original.EncodeJSON()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.WindowSize != nil {
		t.Error("absent window size should decode as nil")
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("round trip mismatch:\noriginal: %+v\ndecoded:  %+v", original, decoded)
	}
}

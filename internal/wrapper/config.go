// Package wrapper defines the configuration value describing one wrapped
// site: its home address, navigation policies, and capability toggles.
// A Config is treated as immutable once constructed; the tab manager and
// rendering surfaces only ever read it.
package wrapper

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// UserAgentPolicy selects which user agent the rendering surface presents.
type UserAgentPolicy string

const (
	UserAgentDefault UserAgentPolicy = "default"
	UserAgentMobile  UserAgentPolicy = "mobile"
	UserAgentCustom  UserAgentPolicy = "custom"
)

// LinkPolicy controls what happens when navigation leaves the home domain.
type LinkPolicy string

const (
	// LinkOpenExternal hands the address to the platform's default handler.
	LinkOpenExternal LinkPolicy = "external"
	// LinkOpenNewTab redirects the navigation into a new background tab.
	LinkOpenNewTab LinkPolicy = "new_tab"
	// LinkBlock cancels the navigation outright.
	LinkBlock LinkPolicy = "block"
	// LinkAllow permits the navigation in place.
	LinkAllow LinkPolicy = "allow"
)

// WindowSize is an optional hint for the initial window dimensions.
type WindowSize struct {
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

// Capabilities toggles surface features on or off for one wrapper.
type Capabilities struct {
	JavaScript       bool `json:"javascript" toml:"javascript"`
	BlockPopups      bool `json:"block_popups" toml:"block_popups"`
	PersistCookies   bool `json:"persist_cookies" toml:"persist_cookies"`
	Notifications    bool `json:"notifications" toml:"notifications"`
	CameraAccess     bool `json:"camera_access" toml:"camera_access"`
	MicrophoneAccess bool `json:"microphone_access" toml:"microphone_access"`
}

// Config describes one wrapper instance. It is serialized into the generated
// bundle as a TOML descriptor and exchanged with UI clients as JSON; both
// encodings round-trip losslessly.
type Config struct {
	ID          string `json:"id" toml:"id"`
	Name        string `json:"name" toml:"name"`
	HomeAddress string `json:"home_address" toml:"home_address"`

	UserAgent       UserAgentPolicy `json:"user_agent" toml:"user_agent"`
	CustomUserAgent string          `json:"custom_user_agent,omitempty" toml:"custom_user_agent,omitempty"`

	LinkPolicy LinkPolicy `json:"link_policy" toml:"link_policy"`

	// AllowedPatterns holds doublestar globs matched against "host" and
	// "host/path" of navigation targets. Empty means allow all.
	AllowedPatterns []string `json:"allowed_patterns,omitempty" toml:"allowed_patterns,omitempty"`

	Capabilities Capabilities `json:"capabilities" toml:"capabilities"`

	WindowSize *WindowSize `json:"window_size,omitempty" toml:"window_size,omitempty"`
}

// Default returns a configuration with the usual wrapper defaults applied.
// The ID is minted here and then travels with the descriptor for the life of
// the wrapper; decoded descriptors keep whatever ID the generator assigned.
func Default(name, homeAddress string) Config {
	return Config{
		ID:          uuid.NewString(),
		Name:        name,
		HomeAddress: homeAddress,
		UserAgent:   UserAgentDefault,
		LinkPolicy:  LinkOpenExternal,
		Capabilities: Capabilities{
			JavaScript:     true,
			BlockPopups:    true,
			PersistCookies: true,
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("wrapper name required")
	}

	u, err := url.Parse(c.HomeAddress)
	if err != nil {
		return fmt.Errorf("invalid home address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("home address must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("home address missing host")
	}

	switch c.UserAgent {
	case UserAgentDefault, UserAgentMobile:
	case UserAgentCustom:
		if c.CustomUserAgent == "" {
			return fmt.Errorf("custom user agent policy requires a user agent string")
		}
	default:
		return fmt.Errorf("unknown user agent policy %q", c.UserAgent)
	}

	switch c.LinkPolicy {
	case LinkOpenExternal, LinkOpenNewTab, LinkBlock, LinkAllow:
	default:
		return fmt.Errorf("unknown link policy %q", c.LinkPolicy)
	}

	for _, pattern := range c.AllowedPatterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid allow pattern %q", pattern)
		}
	}

	if c.WindowSize != nil {
		if c.WindowSize.Width <= 0 || c.WindowSize.Height <= 0 {
			return fmt.Errorf("window size must be positive, got %dx%d",
				c.WindowSize.Width, c.WindowSize.Height)
		}
	}

	return nil
}

// HomeHost returns the host of the home address, without port.
func (c *Config) HomeHost() string {
	u, err := url.Parse(c.HomeAddress)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// EncodeJSON serializes the configuration for the UI API.
func (c *Config) EncodeJSON() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// DecodeJSON parses a configuration from its JSON encoding.
func DecodeJSON(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// EncodeTOML serializes the configuration as a bundle descriptor.
func (c *Config) EncodeTOML() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// DecodeTOML parses a configuration from a bundle descriptor.
func DecodeTOML(data []byte) (Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

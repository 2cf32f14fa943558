package config

import (
	"bytes"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config models an organization's gemstones.yml.
type Config struct {
	Organization struct {
		ID   string `yaml:"id" json:"id"`
		Name string `yaml:"name" json:"name"`
	} `yaml:"organization" json:"organization"`
	Inventory struct {
		Owners     []string `yaml:"owners" json:"owners"`
		Currencies []string `yaml:"currencies" json:"currencies"`
		Shapes     []string `yaml:"shapes" json:"shapes"`
		Colors     []string `yaml:"colors" json:"colors"`
		Timezone   string   `yaml:"timezone" json:"timezone"`
	} `yaml:"inventory" json:"inventory"`
	Export struct {
		DefaultFormat string `yaml:"default_format" json:"default_format"`
	} `yaml:"export" json:"export"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles" json:"roles"`
	} `yaml:"rbac" json:"rbac"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

type RBACRole struct {
	Description string   `yaml:"description" json:"description"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}

type WebhookConfig struct {
	URL     string   `yaml:"url" json:"url"`
	Secret  string   `yaml:"secret" json:"secret,omitempty"`
	Events  []string `yaml:"events" json:"events,omitempty"`
	Enabled *bool    `yaml:"enabled" json:"enabled,omitempty"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Organization.ID == "" {
		return fmt.Errorf("config.organization.id is required")
	}
	if len(c.Inventory.Owners) == 0 {
		return fmt.Errorf("config.inventory.owners is required")
	}
	if err := uniqueNonEmpty("inventory.owners", c.Inventory.Owners); err != nil {
		return err
	}
	for _, list := range []struct {
		name   string
		values []string
	}{
		{"inventory.currencies", c.Inventory.Currencies},
		{"inventory.shapes", c.Inventory.Shapes},
		{"inventory.colors", c.Inventory.Colors},
	} {
		if err := uniqueNonEmpty(list.name, list.values); err != nil {
			return err
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Export.DefaultFormat {
	case "", "csv", "xlsx":
	default:
		return fmt.Errorf("config.export.default_format must be csv or xlsx")
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["owner"]; !ok {
			return fmt.Errorf("config.rbac.roles must include owner")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

func uniqueNonEmpty(name string, values []string) error {
	seen := map[string]bool{}
	for _, v := range values {
		if v == "" {
			return fmt.Errorf("config.%s contains an empty value", name)
		}
		if seen[v] {
			return fmt.Errorf("config.%s contains %q twice", name, v)
		}
		seen[v] = true
	}
	return nil
}

// Location resolves inventory.timezone; empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Inventory.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Inventory.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config.inventory.timezone: %w", err)
	}
	return loc, nil
}

// Allows reports whether v is acceptable for an open list: empty lists accept
// anything.
func Allows(list []string, v string) bool {
	if len(list) == 0 || v == "" {
		return true
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgID string) string {
	return fmt.Sprintf(defaultTemplate, orgID, orgID)
}

// Default returns the default Config struct for an organization.
func Default(orgID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(orgID))).Decode(&cfg)
	cfg.Organization.ID = orgID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `organization:
  id: %s
  name: %s

inventory:
  owners: [Company, Partner, Consignment]
  currencies: [USD, EUR, THB, LKR]
  shapes: []
  colors: []
  timezone: UTC

export:
  default_format: csv

rbac:
  roles:
    owner:
      description: "Full control of the organization"
      permissions: [org.admin, stone.read, stone.write, stone.export]
    member:
      description: "Manages inventory"
      permissions: [stone.read, stone.write, stone.export]
    viewer:
      description: "Read-only access"
      permissions: [stone.read]
`

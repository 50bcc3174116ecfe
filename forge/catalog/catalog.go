// Package catalog holds the static list of services and business details.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

// Service is one catalog entry.
type Service struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
}

// Business is the workshop info shown by About and Contacts.
type Business struct {
	Name  string   `yaml:"name"`
	About []string `yaml:"about"`
	Email string   `yaml:"email"`
	Phone string   `yaml:"phone"`
}

// Catalog is an ordered list of services.
type Catalog struct {
	Services []Service `yaml:"services"`
	Business Business  `yaml:"business"`

	byCode map[string]int
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file; an empty path selects the embedded catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Services) == 0 {
		return nil, fmt.Errorf("catalog: no services")
	}
	c.byCode = make(map[string]int, len(c.Services))
	for i, s := range c.Services {
		code := strings.TrimSpace(s.Code)
		if code == "" || strings.ContainsAny(code, ":|") {
			return nil, fmt.Errorf("catalog: invalid service code %q", s.Code)
		}
		if _, dup := c.byCode[code]; dup {
			return nil, fmt.Errorf("catalog: duplicate service code %q", code)
		}
		c.Services[i].Code = code
		c.byCode[code] = i
	}
	return &c, nil
}

// Lookup finds a service by code.
func (c *Catalog) Lookup(code string) (Service, bool) {
	i, ok := c.byCode[code]
	if !ok {
		return Service{}, false
	}
	return c.Services[i], true
}

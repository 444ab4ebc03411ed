// Package credentials holds the named Klarna API credentials the transport
// authenticates with and the request builder derives its base URL from.
package credentials

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Environment selects the Klarna playground or production API.
type Environment string

const (
	Playground Environment = "playground"
	Live       Environment = "live"
)

// Region selects the regional API host.
type Region string

const (
	RegionEU Region = "eu"
	RegionNA Region = "na"
	RegionOC Region = "oc"
)

// Credentials is one Klarna merchant API account.
type Credentials struct {
	Environment Environment `yaml:"environment"`
	Region      Region      `yaml:"region"`
	Username    string      `yaml:"username"` // PK_... from the merchant portal
	Password    string      `yaml:"password"`
}

// Validate checks the environment, the region and that both secrets are set.
func (c Credentials) Validate() error {
	switch c.Environment {
	case Playground, Live:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	switch c.Region {
	case RegionEU, RegionNA, RegionOC:
	default:
		return fmt.Errorf("unknown region %q", c.Region)
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// Store looks up credentials by name.
type Store interface {
	Get(name string) (Credentials, error)
}

// InMemoryStore is a Store safe for concurrent use.
type InMemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credentials
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		creds: make(map[string]Credentials),
	}
}

// Add validates c and stores it under name, replacing any previous entry.
func (s *InMemoryStore) Add(name string, c Credentials) error {
	if name == "" {
		return fmt.Errorf("credential name cannot be empty")
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid credentials %q: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[name] = c
	return nil
}

// Get fetches credentials by name.
func (s *InMemoryStore) Get(name string) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[name]
	if !ok {
		return Credentials{}, fmt.Errorf("credentials not found for name: %s", name)
	}
	return c, nil
}

// Len returns the number of stored entries.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}

type fileFormat struct {
	Credentials map[string]Credentials `yaml:"credentials"`
}

// LoadFile reads a YAML document of the form
//
//	credentials:
//	  klarnaApi:
//	    environment: playground
//	    region: eu
//	    username: PK_...
//	    password: ...
func LoadFile(path string) (*InMemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}
	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	store := NewInMemoryStore()
	for name, c := range doc.Credentials {
		if err := store.Add(name, c); err != nil {
			return nil, err
		}
	}
	return store, nil
}

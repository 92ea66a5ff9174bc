// Package catalog loads the static intake catalog: seed app versions,
// operating systems, per-channel bug assignees, tracker custom field ids
// and the team links shown by /links.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type Catalog struct {
	AppVersions      []string          `yaml:"app_versions"`
	OperatingSystems []string          `yaml:"operating_systems"`
	BugAssignees     map[string]string `yaml:"bug_assignees"`
	CustomFields     CustomFields      `yaml:"custom_fields"`
	Links            []Link            `yaml:"links"`
}

type CustomFields struct {
	BrandModel string `yaml:"brand_model"`
	OS         string `yaml:"os"`
	OSVersion  string `yaml:"os_version"`
	AppVersion string `yaml:"app_version"`
}

type Link struct {
	Category string `yaml:"category"`
	Label    string `yaml:"label"`
	URL      string `yaml:"url"`
}

func Default() Catalog {
	return Catalog{
		AppVersions:      []string{"0.0.10", "0.0.14"},
		OperatingSystems: []string{"IOS", "Android"},
		BugAssignees:     map[string]string{},
		CustomFields: CustomFields{
			BrandModel: "customfield_10073",
			OS:         "customfield_10081",
			OSVersion:  "customfield_10074",
			AppVersion: "customfield_10079",
		},
	}
}

// Load reads a catalog file. Fields missing from the file keep their defaults.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog file: %w", err)
	}
	result := Default()
	if err := yaml.Unmarshal(data, &result); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog file: %w", err)
	}
	if err := result.normalize(); err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog: %w", err)
	}
	return result, nil
}

// LoadOrDefault returns the default catalog when path is empty or missing.
func LoadOrDefault(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	result, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Catalog{}, err
	}
	return result, nil
}

func (c *Catalog) normalize() error {
	c.AppVersions = trimAll(c.AppVersions)
	c.OperatingSystems = trimAll(c.OperatingSystems)
	if len(c.OperatingSystems) == 0 {
		return errors.New("operating_systems must not be empty")
	}
	if c.BugAssignees == nil {
		c.BugAssignees = map[string]string{}
	}
	links := make([]Link, 0, len(c.Links))
	for _, link := range c.Links {
		if strings.TrimSpace(link.URL) == "" {
			return fmt.Errorf("link %q has no url", link.Label)
		}
		links = append(links, Link{
			Category: strings.TrimSpace(link.Category),
			Label:    strings.TrimSpace(link.Label),
			URL:      strings.TrimSpace(link.URL),
		})
	}
	c.Links = links
	return nil
}

// BugAssignee returns the tracker account configured for a channel.
func (c Catalog) BugAssignee(channel string) (string, bool) {
	accountID, ok := c.BugAssignees[strings.TrimSpace(channel)]
	if !ok || strings.TrimSpace(accountID) == "" {
		return "", false
	}
	return accountID, true
}

func (c Catalog) HasOS(name string) bool {
	for _, candidate := range c.OperatingSystems {
		if candidate == name {
			return true
		}
	}
	return false
}

func trimAll(values []string) []string {
	result := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

// Holder publishes the current catalog to readers while the file watcher swaps it.
type Holder struct {
	mu      sync.RWMutex
	current Catalog
}

func NewHolder(initial Catalog) *Holder {
	return &Holder{current: initial}
}

func (h *Holder) Get() Catalog {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *Holder) Set(next Catalog) {
	h.mu.Lock()
	h.current = next
	h.mu.Unlock()
}

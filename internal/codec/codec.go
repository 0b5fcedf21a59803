// Package codec reads and writes fleet fixtures: releases and the clusters
// built on them, with their network groups.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Importer parses a fixture document
type Importer interface {
	Parse(r io.Reader) (*Fixture, error)
	Format() string
}

// Exporter writes a fixture document
type Exporter interface {
	Export(f *Fixture, w io.Writer) error
	Format() string
}

// Fixture is the portable form of releases and clusters
type Fixture struct {
	Releases []ReleaseFixture `yaml:"releases,omitempty" json:"releases,omitempty"`
	Clusters []ClusterFixture `yaml:"clusters,omitempty" json:"clusters,omitempty"`
}

// ReleaseFixture describes one release
type ReleaseFixture struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ReleaseRef names a release by its natural key
type ReleaseRef struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// ClusterFixture describes one cluster
type ClusterFixture struct {
	Name       string           `yaml:"name" json:"name"`
	Release    *ReleaseRef      `yaml:"release,omitempty" json:"release,omitempty"`
	Mode       string           `yaml:"mode,omitempty" json:"mode,omitempty"`
	NetManager string           `yaml:"net_manager,omitempty" json:"net_manager,omitempty"`
	Editable   map[string]any   `yaml:"editable,omitempty" json:"editable,omitempty"`
	Networks   []NetworkFixture `yaml:"networks,omitempty" json:"networks,omitempty"`
}

// NetworkFixture describes one network group of a cluster
type NetworkFixture struct {
	Name      string `yaml:"name" json:"name"`
	VlanStart *int   `yaml:"vlan_start,omitempty" json:"vlan_start,omitempty"`
	CIDR      string `yaml:"cidr,omitempty" json:"cidr,omitempty"`
	Gateway   string `yaml:"gateway,omitempty" json:"gateway,omitempty"`
}

// Validate reports every structural problem in the fixture at once
func (f *Fixture) Validate() error {
	var result *multierror.Error

	releases := make(map[ReleaseRef]struct{}, len(f.Releases))
	for i, r := range f.Releases {
		if r.Name == "" || r.Version == "" {
			result = multierror.Append(result, fmt.Errorf("releases[%d]: name and version are required", i))
			continue
		}
		ref := ReleaseRef{Name: r.Name, Version: r.Version}
		if _, dup := releases[ref]; dup {
			result = multierror.Append(result, fmt.Errorf("releases[%d]: duplicate release %s %s", i, r.Name, r.Version))
		}
		releases[ref] = struct{}{}
	}

	clusters := make(map[string]struct{}, len(f.Clusters))
	for i, c := range f.Clusters {
		if c.Name == "" {
			result = multierror.Append(result, fmt.Errorf("clusters[%d]: name is required", i))
			continue
		}
		if _, dup := clusters[c.Name]; dup {
			result = multierror.Append(result, fmt.Errorf("clusters[%d]: duplicate cluster %q", i, c.Name))
		}
		clusters[c.Name] = struct{}{}

		if c.Release != nil && (c.Release.Name == "" || c.Release.Version == "") {
			result = multierror.Append(result, fmt.Errorf("clusters[%d]: release needs name and version", i))
		}

		networks := make(map[string]struct{}, len(c.Networks))
		for j, n := range c.Networks {
			if n.Name == "" {
				result = multierror.Append(result, fmt.Errorf("clusters[%d].networks[%d]: name is required", i, j))
				continue
			}
			if _, dup := networks[n.Name]; dup {
				result = multierror.Append(result, fmt.Errorf("clusters[%d].networks[%d]: duplicate network %q", i, j, n.Name))
			}
			networks[n.Name] = struct{}{}
		}
	}

	return result.ErrorOrNil()
}

// ForPath picks a codec from a file extension
func ForPath(path string) (interface {
	Importer
	Exporter
}, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLCodec(), nil
	case ".json":
		return NewJSONCodec(), nil
	}
	return nil, fmt.Errorf("unsupported fixture format %q", filepath.Ext(path))
}

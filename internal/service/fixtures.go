package service

import (
	"context"

	"fleetforge/internal/codec"
	"fleetforge/internal/domain"
	"fleetforge/internal/repository"
)

// ImportResult represents the result of a fixture import
type ImportResult struct {
	ReleasesCreated int `json:"releases_created"`
	ReleasesSkipped int `json:"releases_skipped"`
	ClustersCreated int `json:"clusters_created"`
	ClustersSkipped int `json:"clusters_skipped"`
	NetworksCreated int `json:"networks_created"`
}

// ImportFixture loads releases and clusters in one transaction. Releases
// that already exist by name and version, and clusters that already exist
// by name, are left untouched.
func (s *ClusterService) ImportFixture(ctx context.Context, f *codec.Fixture) (*ImportResult, error) {
	if err := f.Validate(); err != nil {
		return nil, invalid("Invalid fixture: %v", err)
	}

	result := &ImportResult{}
	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		for _, rf := range f.Releases {
			existing, err := q.GetReleaseByNameVersion(ctx, rf.Name, rf.Version)
			if err != nil {
				return err
			}
			if existing != nil {
				result.ReleasesSkipped++
				continue
			}
			release := &domain.Release{Name: rf.Name, Version: rf.Version, Description: rf.Description}
			if err := q.CreateRelease(ctx, release); err != nil {
				return err
			}
			result.ReleasesCreated++
		}

		for _, cf := range f.Clusters {
			created, networks, err := importCluster(ctx, q, cf)
			if err != nil {
				return err
			}
			if !created {
				result.ClustersSkipped++
				continue
			}
			result.ClustersCreated++
			result.NetworksCreated += networks
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("releases", result.ReleasesCreated).
		WithField("clusters", result.ClustersCreated).
		Info("Imported fixture")
	if result.ClustersCreated > 0 || result.ReleasesCreated > 0 {
		s.eventBus.Publish(Event{Type: EventClusterCreated, Payload: result})
	}
	return result, nil
}

func importCluster(ctx context.Context, q repository.Queries, cf codec.ClusterFixture) (bool, int, error) {
	existing, err := q.GetClusterByName(ctx, cf.Name)
	if err != nil {
		return false, 0, err
	}
	if existing != nil {
		return false, 0, nil
	}

	cluster := &domain.Cluster{Name: cf.Name, Mode: cf.Mode, NetManager: cf.NetManager}
	if cluster.NetManager == "" {
		cluster.NetManager = domain.NetManagerFlat
	}
	if cf.Release != nil {
		release, err := q.GetReleaseByNameVersion(ctx, cf.Release.Name, cf.Release.Version)
		if err != nil {
			return false, 0, err
		}
		if release == nil {
			return false, 0, invalid("Cluster %q refers to unknown release %s %s", cf.Name, cf.Release.Name, cf.Release.Version)
		}
		cluster.ReleaseID = &release.ID
	}
	if err := validateCluster(ctx, q, cluster, 0); err != nil {
		return false, 0, err
	}
	if err := q.CreateCluster(ctx, cluster); err != nil {
		return false, 0, err
	}

	editable := cf.Editable
	if editable == nil {
		editable = map[string]any{}
	}
	if err := q.SaveClusterAttributes(ctx, &domain.ClusterAttributes{
		ClusterID: cluster.ID,
		Editable:  editable,
		Generated: map[string]any{},
	}); err != nil {
		return false, 0, err
	}

	for _, nf := range cf.Networks {
		group := &domain.NetworkGroup{
			Name:      nf.Name,
			ClusterID: cluster.ID,
			VlanStart: nf.VlanStart,
			CIDR:      nf.CIDR,
			Gateway:   nf.Gateway,
		}
		if err := createNetwork(ctx, q, group); err != nil {
			return false, 0, err
		}
	}
	return true, len(cf.Networks), nil
}

// ExportFixture renders every release and cluster as a fixture
func (s *ClusterService) ExportFixture(ctx context.Context) (*codec.Fixture, error) {
	releases, err := s.repo.ListReleases(ctx)
	if err != nil {
		return nil, err
	}
	clusters, err := s.repo.ListClusters(ctx)
	if err != nil {
		return nil, err
	}

	f := &codec.Fixture{}
	byID := make(map[int64]*domain.Release, len(releases))
	for _, r := range releases {
		byID[r.ID] = r
		f.Releases = append(f.Releases, codec.ReleaseFixture{Name: r.Name, Version: r.Version, Description: r.Description})
	}

	for _, c := range clusters {
		cf := codec.ClusterFixture{Name: c.Name, Mode: c.Mode, NetManager: c.NetManager}
		if c.ReleaseID != nil {
			if r, ok := byID[*c.ReleaseID]; ok {
				cf.Release = &codec.ReleaseRef{Name: r.Name, Version: r.Version}
			}
		}

		attrs, err := s.repo.GetClusterAttributes(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if attrs != nil && len(attrs.Editable) > 0 {
			cf.Editable = attrs.Editable
		}

		groups, err := s.repo.ListNetworkGroups(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			cf.Networks = append(cf.Networks, codec.NetworkFixture{
				Name:      g.Name,
				VlanStart: g.VlanStart,
				CIDR:      g.CIDR,
				Gateway:   g.Gateway,
			})
		}
		f.Clusters = append(f.Clusters, cf)
	}
	return f, nil
}

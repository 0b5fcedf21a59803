package service

import (
	"context"
	"strings"

	"fleetforge/internal/domain"
	"fleetforge/internal/repository"
)

// ReleaseService manages installable releases
type ReleaseService struct {
	repo     repository.Repository
	eventBus *EventBus
}

// NewReleaseService creates a new release service
func NewReleaseService(repo repository.Repository, eventBus *EventBus) *ReleaseService {
	return &ReleaseService{repo: repo, eventBus: eventBus}
}

// ReleaseUpdate is a partial release update
type ReleaseUpdate struct {
	Name        *string `json:"name,omitempty"`
	Version     *string `json:"version,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ListReleases returns all releases
func (s *ReleaseService) ListReleases(ctx context.Context) ([]*domain.Release, error) {
	return s.repo.ListReleases(ctx)
}

// GetRelease retrieves a single release
func (s *ReleaseService) GetRelease(ctx context.Context, id int64) (*domain.Release, error) {
	release, err := s.repo.GetRelease(ctx, id)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, notFound("release %d not found", id)
	}
	return release, nil
}

// CreateRelease stores a new release
func (s *ReleaseService) CreateRelease(ctx context.Context, release *domain.Release) error {
	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		if err := validateRelease(ctx, q, release, 0); err != nil {
			return err
		}
		return q.CreateRelease(ctx, release)
	})
	if err != nil {
		return err
	}

	s.eventBus.Publish(Event{Type: EventReleaseCreated, Payload: release})
	return nil
}

// UpdateRelease applies a partial update
func (s *ReleaseService) UpdateRelease(ctx context.Context, id int64, upd ReleaseUpdate) (*domain.Release, error) {
	var release *domain.Release
	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		var err error
		if release, err = q.GetRelease(ctx, id); err != nil {
			return err
		}
		if release == nil {
			return notFound("release %d not found", id)
		}
		if upd.Name != nil {
			release.Name = *upd.Name
		}
		if upd.Version != nil {
			release.Version = *upd.Version
		}
		if upd.Description != nil {
			release.Description = *upd.Description
		}
		if err := validateRelease(ctx, q, release, id); err != nil {
			return err
		}
		return q.UpdateRelease(ctx, release)
	})
	if err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{Type: EventReleaseUpdated, Payload: release})
	return release, nil
}

func validateRelease(ctx context.Context, q repository.Queries, release *domain.Release, self int64) error {
	release.Name = strings.TrimSpace(release.Name)
	release.Version = strings.TrimSpace(release.Version)
	if release.Name == "" {
		return invalid("No release name specified")
	}
	if release.Version == "" {
		return invalid("No release version specified")
	}
	existing, err := q.GetReleaseByNameVersion(ctx, release.Name, release.Version)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return conflict("Release with this name and version already exists")
	}
	return nil
}

// DeleteRelease removes a release. Clusters built on it keep running
// without a release.
func (s *ReleaseService) DeleteRelease(ctx context.Context, id int64) error {
	if _, err := s.GetRelease(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteRelease(ctx, id); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventReleaseDeleted,
		Payload: map[string]int64{"release_id": id},
	})
	return nil
}

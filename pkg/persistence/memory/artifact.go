package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/routinehq/routine/pkg/models"
)

// ArtifactRepository keeps artifacts in a mutex-guarded map.
type ArtifactRepository struct {
	mu        sync.RWMutex
	artifacts map[string]*models.Artifact
}

func NewArtifactRepository() *ArtifactRepository {
	return &ArtifactRepository{artifacts: make(map[string]*models.Artifact)}
}

func (r *ArtifactRepository) List(_ context.Context, userID, executionID string) ([]*models.Artifact, error) {
	r.mu.RLock()

	artifacts := make([]*models.Artifact, 0)

	for _, artifact := range r.artifacts {
		if userID != "" && artifact.UserID != userID {
			continue
		}

		if executionID != "" && artifact.ExecutionID != executionID {
			continue
		}

		artifacts = append(artifacts, clone(artifact))
	}

	r.mu.RUnlock()

	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}

func (r *ArtifactRepository) GetByID(_ context.Context, id string) (*models.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	artifact, ok := r.artifacts[id]
	if !ok {
		return nil, nil
	}

	return clone(artifact), nil
}

func (r *ArtifactRepository) Save(_ context.Context, artifact *models.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.artifacts[artifact.ID] = clone(artifact)

	return nil
}

package segdeploy

import (
	"context"
	"fmt"
	"strings"
)

// ArtifactLocator resolves the storage location of a trained model
// artifact. Resolution is read-only; nothing is created or modified.
type ArtifactLocator struct {
	platform  platformClient
	artifacts artifactStore
}

// NewArtifactLocator creates an ArtifactLocator.
func NewArtifactLocator(platform platformClient, artifacts artifactStore) *ArtifactLocator {
	return &ArtifactLocator{platform: platform, artifacts: artifacts}
}

// Resolve returns the trained artifact for a deployment. An explicit
// artifactURI override is used verbatim; otherwise the location is
// resolved from the training job identifier. Either way the object is
// verified reachable before anything downstream acts on it.
func (l *ArtifactLocator) Resolve(ctx context.Context, trainingJobID, artifactURI string) (TrainedArtifact, error) {
	var artifact TrainedArtifact

	switch {
	case artifactURI != "":
		// Manual override takes precedence.
		artifact = TrainedArtifact{ArtifactURI: artifactURI, TrainingJobID: trainingJobID}
	case trainingJobID != "":
		resolved, err := l.platform.DescribeTrainingJob(ctx, trainingJobID)
		if err != nil {
			return TrainedArtifact{}, fmt.Errorf(
				"%w: resolving training job %q: %v", ErrArtifactNotFound, trainingJobID, err)
		}
		artifact = resolved
	default:
		return TrainedArtifact{}, fmt.Errorf(
			"%w: a training job ID or an explicit artifact URI is required", ErrArtifactNotFound)
	}

	if !strings.HasPrefix(artifact.ArtifactURI, "s3://") {
		return TrainedArtifact{}, fmt.Errorf(
			"%w: artifact URI %q is not an s3:// location", ErrArtifactNotFound, artifact.ArtifactURI)
	}

	if err := l.artifacts.HeadArtifact(ctx, artifact.ArtifactURI); err != nil {
		return TrainedArtifact{}, fmt.Errorf(
			"%w: artifact %q is unreachable: %v", ErrArtifactNotFound, artifact.ArtifactURI, err)
	}

	return artifact, nil
}

// splitS3URI splits an s3://bucket/key URI into bucket and key.
func splitS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	if trimmed == uri {
		return "", "", fmt.Errorf("URI %q does not start with s3://", uri)
	}
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("URI %q is missing a bucket or key", uri)
	}
	return bucket, key, nil
}

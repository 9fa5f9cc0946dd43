// Package store persists review logs and answers the deduplication gate's
// "was this change already reviewed" question.
package store

import (
	"context"

	"reviewhooks/pkg/entity"
)

// Store is the review log store consumed by the dedup gate, the bus
// persistence subscriber, and the report endpoints.
type Store interface {
	// HasMergeRequestReview reports whether a review log already exists for
	// the (project, source branch, target branch, last commit) combination.
	HasMergeRequestReview(ctx context.Context, project, sourceBranch, targetBranch, lastCommitID string) (bool, error)
	// HasPushReview reports whether a review log already exists for the
	// (project, branch, before, after) combination.
	HasPushReview(ctx context.Context, project, branch, beforeSHA, afterSHA string) (bool, error)
	InsertMergeRequestReview(ctx context.Context, e *entity.MergeRequestReview) error
	InsertPushReview(ctx context.Context, e *entity.PushReview) error
	// ListMergeRequestReviews returns logs updated inside [from, to] unix
	// seconds, newest first.
	ListMergeRequestReviews(ctx context.Context, from, to int64) ([]entity.MergeRequestReview, error)
	ListPushReviews(ctx context.Context, from, to int64) ([]entity.PushReview, error)
	Close() error
}

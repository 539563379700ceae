// Package likes implements the relationship toggle engine: a single
// check-and-flip operation over polymorphic like edges.
package likes

import (
	"context"
	"errors"
	"fmt"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
)

var (
	// ErrInvalidKind indicates the target kind is not one of video, comment, or tweet.
	ErrInvalidKind = errors.New("invalid like target kind")
	// ErrTargetNotFound indicates the like target does not exist or is not visible to the actor.
	ErrTargetNotFound = errors.New("like target not found")
)

// EdgeStore persists like edges. ToggleEdge is the check-and-flip: it must
// execute as one atomic store operation, so the existence observation and
// the conditional write share a single linearization point. A present edge
// is removed (liked=false); an absent edge is ensured present and reported
// liked=true, even when a concurrent toggle created it first. A unique
// index on the (actor, kind, target) triple backs the conditional insert,
// so racing toggles from the empty state collapse to exactly one row and
// never delete each other.
type EdgeStore interface {
	ToggleEdge(ctx context.Context, edge models.LikeEdge) (bool, error)
	VideosLikedBy(ctx context.Context, userID string) ([]models.Video, error)
}

// TargetResolver verifies a like target exists and may be reacted to by the
// actor: a video must be published or owned by the actor, a comment or tweet
// must simply exist.
type TargetResolver interface {
	ResolveTarget(ctx context.Context, kind models.TargetKind, targetID, actorID string) error
}

// Engine flips the existence of a like edge per call.
type Engine struct {
	store    EdgeStore
	resolver TargetResolver
}

// NewEngine constructs a toggle engine over the provided store and resolver.
func NewEngine(store EdgeStore, resolver TargetResolver) *Engine {
	if store == nil {
		panic("likes: edge store must not be nil")
	}
	return &Engine{store: store, resolver: resolver}
}

// Toggle flips the like edge for the (actor, kind, target) triple and reports
// the resulting liked state. After target validation the flip is a single
// store operation; the engine never reads the edge and acts on it in separate
// steps, so no lost update can slip between observation and write.
func (e *Engine) Toggle(ctx context.Context, actorID string, kind models.TargetKind, targetID string) (bool, error) {
	ctx, span := logging.StartSpan(ctx, "likes.toggle")
	defer span.End()

	if actorID == "" || targetID == "" {
		return false, ErrTargetNotFound
	}
	if !kind.Valid() {
		return false, ErrInvalidKind
	}

	if e.resolver != nil {
		if err := e.resolver.ResolveTarget(ctx, kind, targetID, actorID); err != nil {
			return false, err
		}
	}

	edge := models.LikeEdge{LikedBy: actorID, Kind: kind, TargetID: targetID}

	liked, err := e.store.ToggleEdge(ctx, edge)
	if err != nil {
		return false, fmt.Errorf("toggle like edge: %w", err)
	}
	return liked, nil
}

// LikedVideos lists the videos the actor has liked.
func (e *Engine) LikedVideos(ctx context.Context, actorID string) ([]models.Video, error) {
	if actorID == "" {
		return nil, ErrTargetNotFound
	}
	videos, err := e.store.VideosLikedBy(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list liked videos: %w", err)
	}
	return videos, nil
}

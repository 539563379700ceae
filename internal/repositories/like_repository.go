package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/likes"
	"github.com/videotube/backend/internal/models"
)

// PostgresLikeRepository provides PostgreSQL-backed persistence for like edges.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

// HasEdge reports whether the exact (actor, kind, target) edge exists.
func (r *PostgresLikeRepository) HasEdge(ctx context.Context, edge models.LikeEdge) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	row := conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM likes
            WHERE liked_by = $1 AND target_kind = $2 AND target_id = $3
        )
    `, edge.LikedBy, string(edge.Kind), edge.TargetID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check like edge: %w", err)
	}

	return exists, nil
}

// ToggleEdge flips the edge in a single statement. The delete and the
// conditional insert share one snapshot, so the existence observation and
// the write cannot be split by a concurrent toggle: a present edge is
// removed, an absent edge is ensured present. When a concurrent toggle wins
// the insert race the conflict clause turns ours into a no-op and the edge
// is still reported as liked rather than flipped again.
func (r *PostgresLikeRepository) ToggleEdge(ctx context.Context, edge models.LikeEdge) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var liked bool
	row := conn.QueryRow(ctx, `
        WITH removed AS (
            DELETE FROM likes
            WHERE liked_by = $1 AND target_kind = $2 AND target_id = $3
            RETURNING 1
        ), added AS (
            INSERT INTO likes (liked_by, target_kind, target_id, created_at)
            SELECT $1, $2, $3, NOW()
            WHERE NOT EXISTS (SELECT 1 FROM removed)
            ON CONFLICT (liked_by, target_kind, target_id) DO NOTHING
            RETURNING 1
        )
        SELECT NOT EXISTS (SELECT 1 FROM removed)
    `, edge.LikedBy, string(edge.Kind), edge.TargetID)
	if err := row.Scan(&liked); err != nil {
		return false, fmt.Errorf("toggle like edge: %w", err)
	}

	return liked, nil
}

// VideosLikedBy lists the videos a user has liked, newest like first.
func (r *PostgresLikeRepository) VideosLikedBy(ctx context.Context, userID string) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns("v")+`
        FROM likes l
        JOIN videos v ON v.id = l.target_id
        WHERE l.liked_by = $1 AND l.target_kind = $2
        ORDER BY l.created_at DESC
    `, userID, string(models.TargetVideo))
	if err != nil {
		return nil, fmt.Errorf("select liked videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

// PostgresTargetResolver validates like targets against their home tables.
type PostgresTargetResolver struct {
	pool db.Pool
}

// NewPostgresTargetResolver constructs a resolver backed by PostgreSQL.
func NewPostgresTargetResolver(pool db.Pool) *PostgresTargetResolver {
	return &PostgresTargetResolver{pool: pool}
}

// ResolveTarget checks the target exists and may be reacted to by the actor.
// A video must be published or owned by the actor; a comment or tweet must
// exist.
func (r *PostgresTargetResolver) ResolveTarget(ctx context.Context, kind models.TargetKind, targetID, actorID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var query string
	args := []any{targetID}
	switch kind {
	case models.TargetVideo:
		query = `SELECT 1 FROM videos WHERE id = $1 AND (published OR owner_id = $2)`
		args = append(args, actorID)
	case models.TargetComment:
		query = `SELECT 1 FROM comments WHERE id = $1`
	case models.TargetTweet:
		query = `SELECT 1 FROM tweets WHERE id = $1`
	default:
		return likes.ErrInvalidKind
	}

	var one int
	if err := conn.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return likes.ErrTargetNotFound
		}
		return fmt.Errorf("resolve like target: %w", err)
	}

	return nil
}

package repositories

import (
	"context"
	"fmt"

	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/models"
)

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for
// subscription edges. It follows the same conditional-write toggle contract
// as the like repository: the unique (subscriber, channel) index closes the
// double-insert race.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Toggle flips the subscription edge in a single statement and reports the
// resulting subscribed state. Like the like repository's ToggleEdge, the
// delete and the conditional insert share one snapshot; a toggle losing the
// insert race settles on subscribed rather than flipping again.
func (r *PostgresSubscriptionRepository) Toggle(ctx context.Context, subscriberID, channelID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var subscribed bool
	row := conn.QueryRow(ctx, `
        WITH removed AS (
            DELETE FROM subscriptions
            WHERE subscriber_id = $1 AND channel_id = $2
            RETURNING 1
        ), added AS (
            INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
            SELECT $1, $2, NOW()
            WHERE NOT EXISTS (SELECT 1 FROM removed)
            ON CONFLICT (subscriber_id, channel_id) DO NOTHING
            RETURNING 1
        )
        SELECT NOT EXISTS (SELECT 1 FROM removed)
    `, subscriberID, channelID)
	if err := row.Scan(&subscribed); err != nil {
		return false, fmt.Errorf("toggle subscription edge: %w", err)
	}

	return subscribed, nil
}

// CountSubscribers counts edges pointing at the channel.
func (r *PostgresSubscriptionRepository) CountSubscribers(ctx context.Context, channelID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1`, channelID)
}

// CountSubscriptions counts edges originating from the subscriber.
func (r *PostgresSubscriptionRepository) CountSubscriptions(ctx context.Context, subscriberID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1`, subscriberID)
}

// Exists reports whether the (subscriber, channel) edge is present.
func (r *PostgresSubscriptionRepository) Exists(ctx context.Context, subscriberID, channelID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	row := conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
        )
    `, subscriberID, channelID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check subscription edge: %w", err)
	}

	return exists, nil
}

// ListSubscribers returns the users subscribed to the channel.
func (r *PostgresSubscriptionRepository) ListSubscribers(ctx context.Context, channelID string) ([]models.User, error) {
	return r.listUsers(ctx, `
        SELECT `+userColumns+`
        FROM subscriptions s
        JOIN users ON users.id = s.subscriber_id
        WHERE s.channel_id = $1
        ORDER BY s.created_at DESC
    `, channelID)
}

// ListSubscriptions returns the channels the user subscribes to.
func (r *PostgresSubscriptionRepository) ListSubscriptions(ctx context.Context, subscriberID string) ([]models.User, error) {
	return r.listUsers(ctx, `
        SELECT `+userColumns+`
        FROM subscriptions s
        JOIN users ON users.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at DESC
    `, subscriberID)
}

func (r *PostgresSubscriptionRepository) count(ctx context.Context, query, id string) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int
	if err := conn.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("count subscription edges: %w", err)
	}
	return count, nil
}

func (r *PostgresSubscriptionRepository) listUsers(ctx context.Context, query, id string) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("select subscription users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscription users: %w", err)
	}

	return users, nil
}

// Package views assembles read-only, viewer-relative compositions of stored
// entities. Nothing here is persisted; every view is recomputed from the
// normalized collections and discarded with the response.
package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
)

// UserReader resolves channel owners and batches of video owners.
type UserReader interface {
	FindByUsername(ctx context.Context, username string) (models.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// SubscriptionReader exposes the subscription edge lookups the channel
// profile needs.
type SubscriptionReader interface {
	CountSubscribers(ctx context.Context, channelID string) (int, error)
	CountSubscriptions(ctx context.Context, subscriberID string) (int, error)
	Exists(ctx context.Context, subscriberID, channelID string) (bool, error)
}

// HistoryReader returns a user's watched video ids, most recent first, with
// no duplicates. The write side owns the dedup-and-move-to-front semantics.
type HistoryReader interface {
	WatchedVideoIDs(ctx context.Context, userID string) ([]string, error)
}

// VideoReader batch-fetches videos by id.
type VideoReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Video, error)
}

// Builder computes aggregation views with an explicit multi-step plan: fetch
// the base entity, batch-fetch related edges, derive computed fields in
// process. It never relies on store-side pipeline features.
type Builder struct {
	users   UserReader
	subs    SubscriptionReader
	history HistoryReader
	videos  VideoReader

	profiles *ProfileCache
}

// NewBuilder constructs a view builder over the provided readers. A nil
// cache disables profile caching.
func NewBuilder(users UserReader, subs SubscriptionReader, history HistoryReader, videos VideoReader, profiles *ProfileCache) *Builder {
	return &Builder{
		users:    users,
		subs:     subs,
		history:  history,
		videos:   videos,
		profiles: profiles,
	}
}

// ChannelProfile resolves a channel by case-folded username and decorates it
// with subscriber counts and the viewer-relative IsSubscribed flag. The
// viewer-independent part may be served from cache; the IsSubscribed probe
// always runs fresh so a toggled edge is visible on the next read.
func (b *Builder) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	ctx, span := logging.StartSpan(ctx, "views.channel_profile")
	defer span.End()

	username = strings.ToLower(strings.TrimSpace(username))

	profile, cached := b.profiles.get(username)
	if !cached {
		var err error
		profile, err = b.buildProfileBase(ctx, username)
		if err != nil {
			return models.ChannelProfile{}, err
		}
		b.profiles.put(username, profile)
	}

	if viewerID != "" {
		subscribed, err := b.subs.Exists(ctx, viewerID, profile.ID)
		if err != nil {
			return models.ChannelProfile{}, fmt.Errorf("check subscription edge: %w", err)
		}
		profile.IsSubscribed = subscribed
	}

	return profile, nil
}

func (b *Builder) buildProfileBase(ctx context.Context, username string) (models.ChannelProfile, error) {
	user, err := b.users.FindByUsername(ctx, username)
	if err != nil {
		return models.ChannelProfile{}, err
	}

	subscribers, err := b.subs.CountSubscribers(ctx, user.ID)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("count subscribers: %w", err)
	}

	subscribedTo, err := b.subs.CountSubscriptions(ctx, user.ID)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("count subscriptions: %w", err)
	}

	// The projection carries no credential material: the password hash and
	// refresh token never leave this function.
	return models.ChannelProfile{
		ID:                user.ID,
		Username:          user.Username,
		FullName:          user.FullName,
		AvatarURL:         user.AvatarURL,
		CoverImageURL:     user.CoverImageURL,
		SubscribersCount:  subscribers,
		SubscribedToCount: subscribedTo,
	}, nil
}

// InvalidateProfile drops any cached base profile for the username so the
// next read recomputes edge counts.
func (b *Builder) InvalidateProfile(username string) {
	b.profiles.invalidate(strings.ToLower(strings.TrimSpace(username)))
}

// WatchHistory returns the viewer's previously watched videos, most recent
// first, each with a trimmed owner summary. Entries whose video or owner has
// since been deleted are omitted rather than failing the view; an empty
// history is an empty slice, not an error.
func (b *Builder) WatchHistory(ctx context.Context, viewerID string) ([]models.HistoryEntry, error) {
	ctx, span := logging.StartSpan(ctx, "views.watch_history")
	defer span.End()

	ids, err := b.history.WatchedVideoIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load watch history: %w", err)
	}
	if len(ids) == 0 {
		return []models.HistoryEntry{}, nil
	}

	videos, err := b.videos.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load watched videos: %w", err)
	}

	videosByID := make(map[string]models.Video, len(videos))
	ownerIDs := make([]string, 0, len(videos))
	seenOwners := make(map[string]struct{}, len(videos))
	for _, video := range videos {
		videosByID[video.ID] = video
		if _, ok := seenOwners[video.OwnerID]; !ok {
			seenOwners[video.OwnerID] = struct{}{}
			ownerIDs = append(ownerIDs, video.OwnerID)
		}
	}

	owners, err := b.users.ListByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("load video owners: %w", err)
	}
	ownersByID := make(map[string]models.OwnerSummary, len(owners))
	for _, owner := range owners {
		ownersByID[owner.ID] = models.OwnerSummary{
			Username:  owner.Username,
			FullName:  owner.FullName,
			AvatarURL: owner.AvatarURL,
		}
	}

	entries := make([]models.HistoryEntry, 0, len(ids))
	for _, id := range ids {
		video, ok := videosByID[id]
		if !ok {
			// Dangling reference to a deleted video.
			continue
		}
		owner, ok := ownersByID[video.OwnerID]
		if !ok {
			continue
		}
		entries = append(entries, models.HistoryEntry{Video: video, Owner: owner})
	}

	return entries, nil
}

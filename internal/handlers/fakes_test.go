package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

func withActor(ctx context.Context, id string) context.Context {
	return middleware.WithActorID(ctx, id)
}

type inMemoryVideoStore struct {
	videos map[string]models.Video
}

func newInMemoryVideoStore() *inMemoryVideoStore {
	return &inMemoryVideoStore{videos: make(map[string]models.Video)}
}

func (s *inMemoryVideoStore) Create(_ context.Context, video models.Video) error {
	s.videos[video.ID] = video
	return nil
}

func (s *inMemoryVideoStore) FindByID(_ context.Context, id string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *inMemoryVideoStore) ListPublished(_ context.Context) ([]models.Video, error) {
	var published []models.Video
	for _, video := range s.videos {
		if video.Published {
			published = append(published, video)
		}
	}
	sort.Slice(published, func(i, j int) bool { return published[i].CreatedAt.After(published[j].CreatedAt) })
	return published, nil
}

func (s *inMemoryVideoStore) UpdateDetails(_ context.Context, id, title, description string) error {
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	video.Title = title
	video.Description = description
	video.UpdatedAt = time.Now().UTC()
	s.videos[id] = video
	return nil
}

func (s *inMemoryVideoStore) Delete(_ context.Context, id string) error {
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

func (s *inMemoryVideoStore) TogglePublish(_ context.Context, id string) (bool, error) {
	video, ok := s.videos[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	video.Published = !video.Published
	s.videos[id] = video
	return video.Published, nil
}

func (s *inMemoryVideoStore) IncrementViews(_ context.Context, id string) error {
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	video.Views++
	s.videos[id] = video
	return nil
}

type recordedWatch struct {
	UserID  string
	VideoID string
}

type inMemoryHistory struct {
	watches []recordedWatch
}

func (s *inMemoryHistory) RecordWatch(_ context.Context, userID, videoID string) error {
	s.watches = append(s.watches, recordedWatch{UserID: userID, VideoID: videoID})
	return nil
}

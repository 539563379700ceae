package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

type inMemoryPlaylistStore struct {
	playlists map[string]models.Playlist
}

func newInMemoryPlaylistStore() *inMemoryPlaylistStore {
	return &inMemoryPlaylistStore{playlists: make(map[string]models.Playlist)}
}

func (s *inMemoryPlaylistStore) Create(_ context.Context, playlist models.Playlist) error {
	for _, existing := range s.playlists {
		if existing.OwnerID == playlist.OwnerID && existing.Name == playlist.Name {
			return repositories.ErrConflict
		}
	}
	s.playlists[playlist.ID] = playlist
	return nil
}

func (s *inMemoryPlaylistStore) FindByID(_ context.Context, id string) (models.Playlist, error) {
	playlist, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	return playlist, nil
}

func (s *inMemoryPlaylistStore) ListByOwner(_ context.Context, ownerID string) ([]models.Playlist, error) {
	var playlists []models.Playlist
	for _, playlist := range s.playlists {
		if playlist.OwnerID == ownerID {
			playlists = append(playlists, playlist)
		}
	}
	return playlists, nil
}

func (s *inMemoryPlaylistStore) AddVideo(_ context.Context, playlistID, videoID string) error {
	playlist, ok := s.playlists[playlistID]
	if !ok {
		return repositories.ErrNotFound
	}
	for _, existing := range playlist.VideoIDs {
		if existing == videoID {
			return repositories.ErrConflict
		}
	}
	playlist.VideoIDs = append(playlist.VideoIDs, videoID)
	s.playlists[playlistID] = playlist
	return nil
}

func (s *inMemoryPlaylistStore) RemoveVideo(_ context.Context, playlistID, videoID string) error {
	playlist, ok := s.playlists[playlistID]
	if !ok {
		return repositories.ErrNotFound
	}
	for i, existing := range playlist.VideoIDs {
		if existing == videoID {
			playlist.VideoIDs = append(playlist.VideoIDs[:i], playlist.VideoIDs[i+1:]...)
			s.playlists[playlistID] = playlist
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *inMemoryPlaylistStore) UpdateDetails(_ context.Context, id, name, description string) error {
	playlist, ok := s.playlists[id]
	if !ok {
		return repositories.ErrNotFound
	}
	playlist.Name = name
	playlist.Description = description
	s.playlists[id] = playlist
	return nil
}

func (s *inMemoryPlaylistStore) Delete(_ context.Context, id string) error {
	if _, ok := s.playlists[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.playlists, id)
	return nil
}

func playlistRequestWithActor(method, target, actorID string, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if actorID != "" {
		req = req.WithContext(withActor(req.Context(), actorID))
	}
	return req
}

func TestPlaylistHandlerCreate(t *testing.T) {
	playlists := newInMemoryPlaylistStore()
	handler := PlaylistHandler{Playlists: playlists}

	req := playlistRequestWithActor(http.MethodPost, "/api/v1/playlists", "user-1", `{"name":"Favorites","description":"the good ones"}`)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created models.Playlist
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.OwnerID != "user-1" || created.Name != "Favorites" {
		t.Fatalf("unexpected playlist: %+v", created)
	}
}

func TestPlaylistHandlerCreateDuplicateName(t *testing.T) {
	playlists := newInMemoryPlaylistStore()
	playlists.playlists["playlist-1"] = models.Playlist{ID: "playlist-1", OwnerID: "user-1", Name: "Favorites"}

	handler := PlaylistHandler{Playlists: playlists}

	req := playlistRequestWithActor(http.MethodPost, "/api/v1/playlists", "user-1", `{"name":"Favorites"}`)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func TestPlaylistHandlerAddVideo(t *testing.T) {
	playlists := newInMemoryPlaylistStore()
	playlists.playlists["playlist-1"] = models.Playlist{ID: "playlist-1", OwnerID: "user-1", Name: "Favorites"}

	videos := newInMemoryVideoStore()
	videos.videos["video-1"] = models.Video{ID: "video-1", OwnerID: "creator-1", Published: true}

	handler := PlaylistHandler{Playlists: playlists, Videos: videos}

	req := playlistRequestWithActor(http.MethodPost, "/api/v1/playlists/playlist-1/videos/video-1", "user-1", "")
	req.SetPathValue("playlistId", "playlist-1")
	req.SetPathValue("videoId", "video-1")
	rec := httptest.NewRecorder()

	handler.AddVideo(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if got := playlists.playlists["playlist-1"].VideoIDs; len(got) != 1 || got[0] != "video-1" {
		t.Fatalf("unexpected playlist membership: %v", got)
	}
}

func TestPlaylistHandlerAddVideoUnknownVideo(t *testing.T) {
	playlists := newInMemoryPlaylistStore()
	playlists.playlists["playlist-1"] = models.Playlist{ID: "playlist-1", OwnerID: "user-1", Name: "Favorites"}

	handler := PlaylistHandler{Playlists: playlists, Videos: newInMemoryVideoStore()}

	req := playlistRequestWithActor(http.MethodPost, "/api/v1/playlists/playlist-1/videos/ghost", "user-1", "")
	req.SetPathValue("playlistId", "playlist-1")
	req.SetPathValue("videoId", "ghost")
	rec := httptest.NewRecorder()

	handler.AddVideo(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}

func TestPlaylistHandlerAddVideoRejectsNonOwner(t *testing.T) {
	playlists := newInMemoryPlaylistStore()
	playlists.playlists["playlist-1"] = models.Playlist{ID: "playlist-1", OwnerID: "user-1", Name: "Favorites"}

	videos := newInMemoryVideoStore()
	videos.videos["video-1"] = models.Video{ID: "video-1", OwnerID: "creator-1", Published: true}

	handler := PlaylistHandler{Playlists: playlists, Videos: videos}

	req := playlistRequestWithActor(http.MethodPost, "/api/v1/playlists/playlist-1/videos/video-1", "stranger-1", "")
	req.SetPathValue("playlistId", "playlist-1")
	req.SetPathValue("videoId", "video-1")
	rec := httptest.NewRecorder()

	handler.AddVideo(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d got %d", http.StatusForbidden, rec.Code)
	}
	if len(playlists.playlists["playlist-1"].VideoIDs) != 0 {
		t.Fatal("membership changed despite rejection")
	}
}

func TestPlaylistHandlerRemoveVideo(t *testing.T) {
	playlists := newInMemoryPlaylistStore()
	playlists.playlists["playlist-1"] = models.Playlist{
		ID: "playlist-1", OwnerID: "user-1", Name: "Favorites", VideoIDs: []string{"video-1", "video-2"},
	}

	handler := PlaylistHandler{Playlists: playlists}

	req := playlistRequestWithActor(http.MethodDelete, "/api/v1/playlists/playlist-1/videos/video-1", "user-1", "")
	req.SetPathValue("playlistId", "playlist-1")
	req.SetPathValue("videoId", "video-1")
	rec := httptest.NewRecorder()

	handler.RemoveVideo(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if got := playlists.playlists["playlist-1"].VideoIDs; len(got) != 1 || got[0] != "video-2" {
		t.Fatalf("unexpected playlist membership: %v", got)
	}
}

func TestPlaylistHandlerUpdateKeepsNameWhenBlank(t *testing.T) {
	playlists := newInMemoryPlaylistStore()
	playlists.playlists["playlist-1"] = models.Playlist{
		ID: "playlist-1", OwnerID: "user-1", Name: "Favorites", Description: "old",
	}

	handler := PlaylistHandler{Playlists: playlists}

	req := playlistRequestWithActor(http.MethodPatch, "/api/v1/playlists/playlist-1", "user-1", `{"description":"new notes"}`)
	req.SetPathValue("playlistId", "playlist-1")
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	stored := playlists.playlists["playlist-1"]
	if stored.Name != "Favorites" || stored.Description != "new notes" {
		t.Fatalf("unexpected playlist after update: %+v", stored)
	}
}

func TestPlaylistHandlerDelete(t *testing.T) {
	playlists := newInMemoryPlaylistStore()
	playlists.playlists["playlist-1"] = models.Playlist{ID: "playlist-1", OwnerID: "user-1", Name: "Favorites"}

	handler := PlaylistHandler{Playlists: playlists}

	req := playlistRequestWithActor(http.MethodDelete, "/api/v1/playlists/playlist-1", "user-1", "")
	req.SetPathValue("playlistId", "playlist-1")
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if len(playlists.playlists) != 0 {
		t.Fatal("playlist still present after delete")
	}
}

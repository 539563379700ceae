package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

type inMemoryCommentStore struct {
	comments map[string]models.Comment
}

func newInMemoryCommentStore() *inMemoryCommentStore {
	return &inMemoryCommentStore{comments: make(map[string]models.Comment)}
}

func (s *inMemoryCommentStore) Create(_ context.Context, comment models.Comment) error {
	s.comments[comment.ID] = comment
	return nil
}

func (s *inMemoryCommentStore) FindByID(_ context.Context, id string) (models.Comment, error) {
	comment, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return comment, nil
}

func (s *inMemoryCommentStore) ListForVideo(_ context.Context, videoID string) ([]models.Comment, error) {
	var comments []models.Comment
	for _, comment := range s.comments {
		if comment.VideoID == videoID {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}

func (s *inMemoryCommentStore) UpdateContent(_ context.Context, id, content string) error {
	comment, ok := s.comments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	comment.Content = content
	s.comments[id] = comment
	return nil
}

func (s *inMemoryCommentStore) Delete(_ context.Context, id string) error {
	if _, ok := s.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func commentTestHandler(t *testing.T) (CommentHandler, *inMemoryCommentStore, *inMemoryVideoStore) {
	t.Helper()

	videos := newInMemoryVideoStore()
	videos.videos["video-1"] = models.Video{ID: "video-1", OwnerID: "creator-1", Published: true}

	users := newInMemoryUserStore()
	users.users["creator-1"] = models.User{ID: "creator-1", Username: "creator"}
	users.users["viewer-1"] = models.User{ID: "viewer-1", Username: "viewer"}

	comments := newInMemoryCommentStore()
	return CommentHandler{Comments: comments, Videos: videos, Users: users}, comments, videos
}

func TestCommentHandlerCreate(t *testing.T) {
	handler, comments, _ := commentTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/video-1/comments", strings.NewReader(`{"content":"  nice video  "}`))
	req.SetPathValue("videoId", "video-1")
	req = req.WithContext(withActor(req.Context(), "viewer-1"))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created models.Comment
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Content != "nice video" {
		t.Fatalf("expected trimmed content, got %q", created.Content)
	}
	if created.OwnerID != "viewer-1" || created.VideoID != "video-1" {
		t.Fatalf("unexpected ownership: %+v", created)
	}
	if _, ok := comments.comments[created.ID]; !ok {
		t.Fatal("comment not persisted")
	}
}

func TestCommentHandlerCreateUnknownVideo(t *testing.T) {
	handler, _, _ := commentTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/ghost/comments", strings.NewReader(`{"content":"hello"}`))
	req.SetPathValue("videoId", "ghost")
	req = req.WithContext(withActor(req.Context(), "viewer-1"))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}

func TestCommentHandlerCreateRejectsOversized(t *testing.T) {
	handler, _, _ := commentTestHandler(t)

	payload := `{"content":"` + strings.Repeat("a", maxCommentLength+1) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/video-1/comments", strings.NewReader(payload))
	req.SetPathValue("videoId", "video-1")
	req = req.WithContext(withActor(req.Context(), "viewer-1"))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestCommentHandlerListAttachesOwners(t *testing.T) {
	handler, comments, _ := commentTestHandler(t)
	comments.comments["comment-1"] = models.Comment{
		ID: "comment-1", VideoID: "video-1", OwnerID: "viewer-1", Content: "first",
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/video-1/comments", nil)
	req.SetPathValue("videoId", "video-1")
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		Comments []commentEntry `json:"comments"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Comments) != 1 {
		t.Fatalf("expected one comment, got %d", len(resp.Comments))
	}
	if resp.Comments[0].Owner.Username != "viewer" {
		t.Fatalf("expected owner summary attached, got %+v", resp.Comments[0].Owner)
	}
}

func TestCommentHandlerUpdateRejectsNonOwner(t *testing.T) {
	handler, comments, _ := commentTestHandler(t)
	comments.comments["comment-1"] = models.Comment{
		ID: "comment-1", VideoID: "video-1", OwnerID: "viewer-1", Content: "original",
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/comments/comment-1", strings.NewReader(`{"content":"hijacked"}`))
	req.SetPathValue("commentId", "comment-1")
	req = req.WithContext(withActor(req.Context(), "stranger-1"))
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d got %d", http.StatusForbidden, rec.Code)
	}
	if comments.comments["comment-1"].Content != "original" {
		t.Fatalf("comment changed despite rejection: %q", comments.comments["comment-1"].Content)
	}
}

func TestCommentHandlerDeleteByOwner(t *testing.T) {
	handler, comments, _ := commentTestHandler(t)
	comments.comments["comment-1"] = models.Comment{
		ID: "comment-1", VideoID: "video-1", OwnerID: "viewer-1", Content: "bye",
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/comments/comment-1", nil)
	req.SetPathValue("commentId", "comment-1")
	req = req.WithContext(withActor(req.Context(), "viewer-1"))
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if _, ok := comments.comments["comment-1"]; ok {
		t.Fatal("comment still present after delete")
	}
}

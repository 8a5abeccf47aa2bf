package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sokolovdm/socialnet/internal/cache"
	"github.com/sokolovdm/socialnet/internal/events"
	"github.com/sokolovdm/socialnet/internal/logging"
	"github.com/sokolovdm/socialnet/internal/models"
	"github.com/sokolovdm/socialnet/internal/repo"
	"github.com/sokolovdm/socialnet/internal/search"
)

const (
	postsAllKey = "posts:all"

	// Single-item reads are populated speculatively with a short TTL;
	// collections and confirmed writes keep their entries longer.
	postItemTTL  = 5 * time.Second
	postListTTL  = 2 * time.Minute
	postWriteTTL = 2 * time.Minute
)

func postKey(id uint) string {
	return fmt.Sprintf("posts:%d", id)
}

// PostService wraps the post store with a read-through / write-invalidate
// cache. Cache entries are derived projections: every write overwrites or
// removes the per-id key before returning, and create drops the
// collection key so the next list recomputes.
type PostService struct {
	Repo     *repo.GormRepo
	Cache    cache.Cache
	Producer *events.Producer
	Index    *search.Index
}

func (s *PostService) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	var cached []models.Post
	ok, err := s.cacheGet(ctx, postsAllKey, &cached)
	if err != nil {
		return nil, err
	}
	if ok {
		return cached, nil
	}

	posts, err := s.Repo.GetPosts(ctx)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return []models.Post{}, nil
	}

	if err := s.cacheSet(ctx, postsAllKey, posts, postListTTL); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	key := postKey(id)

	var cached models.Post
	ok, err := s.cacheGet(ctx, key, &cached)
	if err != nil {
		return nil, err
	}
	if ok {
		return &cached, nil
	}

	post, err := s.Repo.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, id)
	}

	if err := s.cacheSet(ctx, key, post, postItemTTL); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) CreatePost(ctx context.Context, userID uint, content string) (*models.Post, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}

	post := models.Post{UserID: userID, Content: content}
	if err := s.Repo.CreatePost(ctx, &post); err != nil {
		return nil, err
	}

	if err := s.Cache.Delete(ctx, postsAllKey); err != nil {
		return nil, err
	}
	if err := s.cacheSet(ctx, postKey(post.ID), &post, postWriteTTL); err != nil {
		return nil, err
	}

	s.mirror(ctx, "post_created", &post)
	return &post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, id uint, content string) (*models.Post, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}

	post, err := s.Repo.UpdatePost(ctx, id, content)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: post %d", ErrNotFound, id)
		}
		return nil, err
	}

	if err := s.cacheSet(ctx, postKey(id), post, postWriteTTL); err != nil {
		return nil, err
	}

	s.mirror(ctx, "post_updated", post)
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, id uint) error {
	if err := s.Repo.DeletePost(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: post %d", ErrNotFound, id)
		}
		return err
	}

	if err := s.Cache.Delete(ctx, postKey(id)); err != nil {
		return err
	}

	l := logging.FromContext(ctx).With("svc", "post.delete")
	if err := s.Producer.PublishEvent(ctx, events.TopicPostEvents, fmt.Sprint(id), map[string]any{
		"type":    "post_deleted",
		"post_id": id,
	}); err != nil {
		l.Warn("kafka_publish_error", "error", err)
	}
	if err := s.Index.DeletePost(ctx, id); err != nil {
		l.Warn("es_deindex_error", "error", err)
	}
	return nil
}

func (s *PostService) SearchPosts(ctx context.Context, query string, from, size int) (int64, []models.Post, error) {
	return s.Index.Search(ctx, query, from, size)
}

func (s *PostService) cacheGet(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.Cache.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return true, nil
}

func (s *PostService) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	return s.Cache.Set(ctx, key, data, ttl)
}

// mirror fans a confirmed write out to kafka and elasticsearch. Both are
// best-effort: the store and cache are already consistent at this point.
func (s *PostService) mirror(ctx context.Context, eventType string, post *models.Post) {
	l := logging.FromContext(ctx).With("svc", "post.mirror")
	if err := s.Producer.PublishEvent(ctx, events.TopicPostEvents, fmt.Sprint(post.ID), map[string]any{
		"type":    eventType,
		"post_id": post.ID,
		"user_id": post.UserID,
	}); err != nil {
		l.Warn("kafka_publish_error", "error", err)
	}
	if err := s.Index.IndexPost(ctx, post); err != nil {
		l.Warn("es_index_error", "error", err)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-grader-api/internal/dto"
	"github.com/noah-isme/exam-grader-api/pkg/ai"
)

// NewsPrompt is the search request sent to the grounded model.
const NewsPrompt = `Find 3 recent news headlines about "AI in Education" or "EdTech Innovation".`

const (
	newsLimit    = 3
	newsCacheKey = "news:edtech"
)

// ErrNewsUnavailable indicates the search produced no linked headlines.
var ErrNewsUnavailable = errors.New("no linked news found")

// NewsService returns recent EdTech headlines.
type NewsService interface {
	Latest(ctx context.Context, refresh bool) (dto.NewsResponse, error)
}

type newsService struct {
	searcher ai.NewsSearcher
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewNewsService builds the news service. searcher and cache may be nil.
func NewNewsService(searcher ai.NewsSearcher, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) NewsService {
	return &newsService{
		searcher: searcher,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "news_service").Logger(),
		now:      time.Now,
	}
}

func (s *newsService) Latest(ctx context.Context, refresh bool) (dto.NewsResponse, error) {
	if s.cache != nil && !refresh {
		if cached, err := s.cache.Get(ctx, newsCacheKey).Result(); err == nil {
			var response dto.NewsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.Cached = true
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read news cache")
		}
	}

	if s.searcher == nil {
		return dto.NewsResponse{}, ErrNewsUnavailable
	}

	found, err := s.searcher.SearchNews(ctx, NewsPrompt, newsLimit)
	if err != nil {
		return dto.NewsResponse{}, err
	}

	items := make([]dto.NewsItemResponse, 0, newsLimit)
	for _, item := range found {
		if len(items) == newsLimit {
			break
		}
		uri := strings.TrimSpace(item.URI)
		if uri == "" {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = uri
		}
		items = append(items, dto.NewsItemResponse{Title: title, URI: uri})
	}
	if len(items) == 0 {
		return dto.NewsResponse{}, ErrNewsUnavailable
	}

	response := dto.NewsResponse{Items: items, FetchedAt: s.now().UTC()}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, newsCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store news cache")
			}
		}
	}

	return response, nil
}

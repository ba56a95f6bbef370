package referral

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"go.uber.org/zap"
)

const (
	slugAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"
	slugLength   = 7
)

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9-]{3,32}$`)
	ErrInvalidSlug = fmt.Errorf("%w: slug must be 3-32 characters of a-z, 0-9 or '-'", store.ErrInvalidInput)
)

// ShortURL returns the public redirect URL for a slug.
func (s *Service) ShortURL(slug string) string {
	return fmt.Sprintf("%s/r/%s", s.opts.PublicBaseURL, slug)
}

// CreateLink stores a short link. An empty slug is generated; a custom slug is
// validated and fails with store.ErrDuplicate when taken.
func (s *Service) CreateLink(ctx context.Context, ownerId, targetURL, slug string, ttl time.Duration) (*models.ShortLink, error) {
	link := models.ShortLink{
		TargetURL: targetURL,
		OwnerId:   ownerId,
		CreatedAt: s.now().UTC(),
	}
	if ttl > 0 {
		expires := link.CreatedAt.Add(ttl)
		link.ExpiresAt = &expires
	}

	if slug != "" {
		slug = strings.ToLower(slug)
		if !slugPattern.MatchString(slug) {
			return nil, ErrInvalidSlug
		}
		link.Slug = slug
		return s.funnel.CreateShortLink(ctx, link)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		generated, err := s.randStr(slugAlphabet, slugLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate slug: %w", err)
		}
		link.Slug = generated
		created, err := s.funnel.CreateShortLink(ctx, link)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		return created, err
	}
	return nil, fmt.Errorf("failed to generate a unique slug after %d attempts", maxAttempts)
}

// Resolve returns the link for slug, reading through the cache when configured.
// Expired links are reported as store.ErrNotFound.
func (s *Service) Resolve(ctx context.Context, slug string) (*models.ShortLink, error) {
	now := s.now()

	if s.opts.Cache != nil {
		cached, err := s.opts.Cache.Get(ctx, slug)
		if err != nil {
			zap.L().Warn("Link cache read failed", zap.String("slug", slug), zap.Error(err))
		}
		if cached != nil {
			if cached.Expired(now) {
				s.evict(ctx, slug)
				return nil, fmt.Errorf("short link %s expired: %w", slug, store.ErrNotFound)
			}
			return cached, nil
		}
	}

	link, err := s.funnel.GetShortLink(ctx, slug)
	if err != nil {
		return nil, err
	}
	if link.Expired(now) {
		return nil, fmt.Errorf("short link %s expired: %w", slug, store.ErrNotFound)
	}

	if s.opts.Cache != nil {
		ttl := s.opts.CacheTTL
		if link.ExpiresAt != nil {
			if untilExpiry := link.ExpiresAt.Sub(now); untilExpiry < ttl {
				ttl = untilExpiry
			}
		}
		if err := s.opts.Cache.Set(ctx, *link, ttl); err != nil {
			zap.L().Warn("Link cache write failed", zap.String("slug", slug), zap.Error(err))
		}
	}
	return link, nil
}

func (s *Service) evict(ctx context.Context, slug string) {
	if err := s.opts.Cache.Delete(ctx, slug); err != nil {
		zap.L().Warn("Link cache delete failed", zap.String("slug", slug), zap.Error(err))
	}
}

// RecordClick stores a click with the visitor IP hashed.
func (s *Service) RecordClick(ctx context.Context, slug, ip, userAgent string) error {
	return s.funnel.RecordClick(ctx, models.LinkClick{
		Slug:      slug,
		IPHash:    s.HashIP(ip),
		UserAgent: userAgent,
		ClickedAt: s.now().UTC(),
	})
}

// HashIP returns the salted SHA-256 of an IP address.
func (s *Service) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(s.opts.ClickHashSalt + ip))
	return hex.EncodeToString(sum[:])
}

// Links lists links owned by ownerId, or every link when ownerId is empty.
func (s *Service) Links(ctx context.Context, ownerId string) ([]models.ShortLink, error) {
	return s.funnel.ListShortLinks(ctx, ownerId)
}

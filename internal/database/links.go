package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/google/uuid"
)

func scanShortLink(row rowScanner) (*models.ShortLink, error) {
	var l models.ShortLink
	var expiresAt sql.NullTime
	if err := row.Scan(&l.Slug, &l.TargetURL, &l.OwnerId, &l.Clicks, &expiresAt, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.ExpiresAt = timePtr(expiresAt)
	return &l, nil
}

func (s *Service) CreateShortLink(ctx context.Context, link models.ShortLink) (*models.ShortLink, error) {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, queryInsertShortLink,
		link.Slug, link.TargetURL, link.OwnerId, nullTime(link.ExpiresAt), link.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("slug %s: %w", link.Slug, store.ErrDuplicate)
		}
		return nil, fmt.Errorf("unable to insert short link: %w", err)
	}
	link.Clicks = 0
	return &link, nil
}

func (s *Service) GetShortLink(ctx context.Context, slug string) (*models.ShortLink, error) {
	l, err := scanShortLink(s.db.QueryRowContext(ctx, queryGetShortLink, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("slug %s: %w", slug, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query short link: %w", err)
	}
	return l, nil
}

// ListShortLinks returns the links of one owner, or all links when ownerId is empty.
func (s *Service) ListShortLinks(ctx context.Context, ownerId string) ([]models.ShortLink, error) {
	rows, err := s.db.QueryContext(ctx, queryListShortLinks, ownerId, ownerId)
	if err != nil {
		return nil, fmt.Errorf("unable to query short links: %w", err)
	}
	defer closeRows(rows)

	var links []models.ShortLink
	for rows.Next() {
		l, err := scanShortLink(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan short link: %w", err)
		}
		links = append(links, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating short link rows: %w", err)
	}
	return links, nil
}

// RecordClick stores the click audit row and bumps the link counter in one transaction.
func (s *Service) RecordClick(ctx context.Context, click models.LinkClick) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, queryInsertLinkClick,
		uuid.New().String(), click.Slug, click.IPHash, click.UserAgent, click.ClickedAt.UTC()); err != nil {
		return fmt.Errorf("unable to insert link click: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryIncrementLinkClicks, click.Slug)
	if err != nil {
		return fmt.Errorf("unable to increment clicks: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("slug %s: %w", click.Slug, store.ErrNotFound)
	}

	return tx.Commit()
}

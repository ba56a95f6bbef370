/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.Id, &p.Name, &p.Email, &p.Phone, &p.Role, &p.ReferredBy, &p.OptedOut, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	zap.L().Debug("Querying active participants")

	rows, err := s.db.QueryContext(ctx, queryGetActiveParticipants)
	if err != nil {
		zap.L().Error("Failed to query participants", zap.Error(err))
		return nil, fmt.Errorf("unable to query participants: %w", err)
	}
	defer closeRows(rows)

	var participants []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			zap.L().Error("Failed to scan participant row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan participant row: %w", err)
		}
		participants = append(participants, *p)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during participant row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}

	zap.L().Debug("Retrieved participants", zap.Int("count", len(participants)))
	return participants, nil
}

func (s *Service) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx, queryGetParticipantById, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("participant %s: %w", id, store.ErrNotFound)
		}
		zap.L().Error("Failed to query participant by ID", zap.String("participant_id", id), zap.Error(err))
		return nil, fmt.Errorf("unable to query participant by ID: %w", err)
	}
	return p, nil
}

func (s *Service) GetParticipantByEmail(ctx context.Context, email string) (*models.Participant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx, queryGetParticipantByEmail, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("participant %s: %w", email, store.ErrNotFound)
		}
		zap.L().Error("Failed to query participant by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("unable to query participant by email: %w", err)
	}
	return p, nil
}

func (s *Service) CreateParticipant(ctx context.Context, params store.CreateParticipantParams) (*models.Participant, error) {
	if params.Id == "" || strings.TrimSpace(params.Name) == "" || params.Email == "" {
		return nil, fmt.Errorf("participant id, name and email are required")
	}
	role := params.Role
	if role == "" {
		role = models.RoleMember
	}

	zap.L().Info("Creating participant", zap.String("id", params.Id), zap.String("email", params.Email))

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, queryInsertParticipant,
		params.Id, strings.TrimSpace(params.Name), strings.ToLower(params.Email), params.Phone, role, params.ReferredBy, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("participant with email %s: %w", params.Email, store.ErrDuplicate)
		}
		zap.L().Error("Failed to insert participant", zap.String("email", params.Email), zap.Error(err))
		return nil, fmt.Errorf("unable to insert participant: %w", err)
	}

	return s.GetParticipant(ctx, params.Id)
}

func (s *Service) SetOptOut(ctx context.Context, id string, optedOut bool) error {
	result, err := s.db.ExecContext(ctx, querySetOptOut, optedOut, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("unable to update opt-out: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("participant %s: %w", id, store.ErrNotFound)
	}
	zap.L().Info("Participant opt-out updated", zap.String("participant_id", id), zap.Bool("opted_out", optedOut))
	return nil
}

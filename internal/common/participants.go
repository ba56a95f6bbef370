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

package common

import (
	"context"
	"fmt"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"go.uber.org/zap"
)

// LoadParticipants retrieves participants based on an optional email filter.
// If emailFilter is provided, returns the single participant with that email.
// If emailFilter is empty, returns all participants.
func LoadParticipants(ctx context.Context, funnel store.FunnelStore, emailFilter string) ([]models.Participant, error) {
	if emailFilter != "" {
		zap.L().Info("Looking up participant by email", zap.String("email", emailFilter))
		p, err := funnel.GetParticipantByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("participant not found: %w", err)
		}
		return []models.Participant{*p}, nil
	}

	participants, err := funnel.ListParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}

	zap.L().Info("Retrieved participants", zap.Int("count", len(participants)))
	return participants, nil
}

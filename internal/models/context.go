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

package models

import "context"

type attributionContextKey struct{}

// Attribution carries funnel attribution data through context so ledger
// backends can store it as transaction metadata without changing the
// CoinLedger interface.
type Attribution struct {
	Campaign     string // drip campaign or landing variant key
	Variant      string // A/B landing page variant
	ReferralCode string
	Source       string // utm_source or equivalent
}

// WithAttribution attaches attribution data to a context.
func WithAttribution(ctx context.Context, a *Attribution) context.Context {
	return context.WithValue(ctx, attributionContextKey{}, a)
}

// GetAttribution retrieves attribution data from context, or nil if absent.
func GetAttribution(ctx context.Context) *Attribution {
	a, _ := ctx.Value(attributionContextKey{}).(*Attribution)
	return a
}

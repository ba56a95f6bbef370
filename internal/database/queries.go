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

const (
	// Participant queries
	queryInsertParticipant = `
		INSERT INTO participants (id, name, email, phone, role, referred_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetParticipantById = `
		SELECT id, name, email, phone, role, referred_by, opted_out, created_at, updated_at
		FROM participants
		WHERE id = ? AND active = 1`

	queryGetParticipantByEmail = `
		SELECT id, name, email, phone, role, referred_by, opted_out, created_at, updated_at
		FROM participants
		WHERE LOWER(email) = LOWER(?) AND active = 1`

	queryGetActiveParticipants = `
		SELECT id, name, email, phone, role, referred_by, opted_out, created_at, updated_at
		FROM participants
		WHERE active = 1
		ORDER BY created_at`

	querySetOptOut = `
		UPDATE participants SET opted_out = ?, updated_at = ? WHERE id = ?`

	// Referral queries
	queryInsertReferralCode = `
		INSERT INTO referral_codes (code, participant_id, created_at) VALUES (?, ?, ?)`

	queryGetReferralCode = `
		SELECT code, participant_id, created_at FROM referral_codes WHERE code = ?`

	queryGetReferralCodeFor = `
		SELECT code, participant_id, created_at FROM referral_codes WHERE participant_id = ?`

	queryInsertReferral = `
		INSERT INTO referrals (id, referrer_id, referred_id, code, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetReferralByReferred = `
		SELECT id, referrer_id, referred_id, code, status, created_at, converted_at
		FROM referrals
		WHERE referred_id = ?`

	queryMarkReferralConverted = `
		UPDATE referrals SET status = 'converted', converted_at = ?
		WHERE id = ? AND status = 'pending'`

	queryCountConvertedReferrals = `
		SELECT COUNT(*) FROM referrals WHERE referrer_id = ? AND status = 'converted'`

	// Short link queries
	queryInsertShortLink = `
		INSERT INTO short_links (slug, target_url, owner_id, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`

	queryGetShortLink = `
		SELECT slug, target_url, owner_id, clicks, expires_at, created_at
		FROM short_links
		WHERE slug = ?`

	queryListShortLinks = `
		SELECT slug, target_url, owner_id, clicks, expires_at, created_at
		FROM short_links
		WHERE (? = '' OR owner_id = ?)
		ORDER BY clicks DESC, created_at DESC`

	queryInsertLinkClick = `
		INSERT INTO link_clicks (id, slug, ip_hash, user_agent, clicked_at) VALUES (?, ?, ?, ?, ?)`

	queryIncrementLinkClicks = `
		UPDATE short_links SET clicks = clicks + 1 WHERE slug = ?`

	// Achievement queries
	queryInsertAchievement = `
		INSERT OR IGNORE INTO achievements (participant_id, achievement, unlocked_at) VALUES (?, ?, ?)`

	queryListAchievements = `
		SELECT participant_id, achievement, unlocked_at
		FROM achievements
		WHERE participant_id = ?
		ORDER BY unlocked_at`

	// Clip queries
	queryInsertClip = `
		INSERT INTO clip_submissions (id, participant_id, url, platform, views, status, bonus, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetClip = `
		SELECT id, participant_id, url, platform, views, status, bonus, review_note, created_at, reviewed_at
		FROM clip_submissions
		WHERE id = ?`

	queryListClips = `
		SELECT id, participant_id, url, platform, views, status, bonus, review_note, created_at, reviewed_at
		FROM clip_submissions
		WHERE (? = '' OR participant_id = ?)
		ORDER BY created_at DESC`

	queryReviewClip = `
		UPDATE clip_submissions
		SET status = ?, views = ?, bonus = ?, review_note = ?, reviewed_at = ?
		WHERE id = ? AND status = 'submitted'`

	querySumApprovedViews = `
		SELECT COALESCE(SUM(views), 0) FROM clip_submissions
		WHERE participant_id = ? AND status IN ('approved', 'paid')`

	// Nomination and blessing queries
	queryInsertNomination = `
		INSERT INTO nominations (id, nominator_id, nominee_name, nominee_phone, nominee_email, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryCountNominations = `
		SELECT COUNT(*) FROM nominations WHERE nominator_id = ? AND status = 'sent'`

	queryInsertBlessing = `
		INSERT INTO blessings (id, sender_id, recipient_name, recipient_phone, recipient_email, message, generated, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryCountBlessings = `
		SELECT COUNT(*) FROM blessings WHERE sender_id = ? AND status = 'sent'`

	// Joy key queries
	queryGetJoyKeys = `
		SELECT participant_id, unlocked, key1_at, key2_at, key3_at, key4_at, updated_at
		FROM joy_keys
		WHERE participant_id = ?`

	queryUpsertJoyKeys = `
		INSERT INTO joy_keys (participant_id, unlocked, key1_at, key2_at, key3_at, key4_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(participant_id) DO UPDATE SET
			unlocked = excluded.unlocked,
			key1_at = excluded.key1_at,
			key2_at = excluded.key2_at,
			key3_at = excluded.key3_at,
			key4_at = excluded.key4_at,
			updated_at = excluded.updated_at`

	queryListStalledJoyKeys = `
		SELECT participant_id, unlocked, key1_at, key2_at, key3_at, key4_at, updated_at
		FROM joy_keys
		WHERE unlocked != 15 AND updated_at <= ?
		ORDER BY updated_at`

	// Order queries
	queryInsertOrder = `
		INSERT INTO orders (id, participant_id, session_id, amount, referral_code, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetOrderBySession = `
		SELECT id, participant_id, session_id, amount, referral_code, status, created_at, paid_at
		FROM orders
		WHERE session_id = ?`

	queryUpdateOrderStatus = `
		UPDATE orders SET status = ?, paid_at = ?
		WHERE session_id = ? AND status = ?`

	queryCountPaidOrders = `
		SELECT COUNT(*) FROM orders WHERE participant_id = ? AND status = 'paid'`

	// Drip queries
	queryInsertEnrollment = `
		INSERT INTO drip_enrollments (id, participant_id, campaign_key, status, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetEnrollment = `
		SELECT id, participant_id, campaign_key, status, started_at, updated_at
		FROM drip_enrollments
		WHERE id = ?`

	queryCancelEnrollment = `
		UPDATE drip_enrollments SET status = 'cancelled', updated_at = ?
		WHERE participant_id = ? AND campaign_key = ? AND status = 'active'
		RETURNING id`

	querySkipPendingMessages = `
		UPDATE scheduled_messages SET status = 'skipped'
		WHERE enrollment_id = ? AND status = 'pending'`

	queryCountPendingMessages = `
		SELECT COUNT(*) FROM scheduled_messages WHERE enrollment_id = ? AND status = 'pending'`

	queryCompleteEnrollment = `
		UPDATE drip_enrollments SET status = 'completed', updated_at = ?
		WHERE id = ? AND status = 'active'`

	queryInsertScheduledMessage = `
		INSERT INTO scheduled_messages (
			id, enrollment_id, participant_id, campaign_key, step, channel, subject, template,
			scheduled_send_at, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending')`

	scheduledMessageColumns = `
		id, enrollment_id, participant_id, campaign_key, step, channel, subject, template,
		scheduled_send_at, status, sent_at, attempts, last_error`

	queryDueMessages = `
		SELECT` + scheduledMessageColumns + `
		FROM scheduled_messages
		WHERE status = 'pending' AND scheduled_send_at <= ?
		ORDER BY scheduled_send_at
		LIMIT ?`

	queryListMessages = `
		SELECT` + scheduledMessageColumns + `
		FROM scheduled_messages
		WHERE (? = '' OR status = ?)
		ORDER BY scheduled_send_at DESC
		LIMIT ?`

	queryMarkMessage = `
		UPDATE scheduled_messages
		SET status = ?, last_error = ?, attempts = attempts + 1,
		    sent_at = CASE WHEN ? = 'sent' THEN ? ELSE sent_at END
		WHERE id = ? AND status = ?`

	queryRescheduleMessage = `
		UPDATE scheduled_messages SET scheduled_send_at = ?
		WHERE id = ? AND status = 'pending'`

	queryInsertMessageLog = `
		INSERT INTO message_logs (
			id, scheduled_message_id, participant_id, channel, recipient, body, provider_id, status, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryHasMessageLog = `
		SELECT EXISTS(SELECT 1 FROM message_logs WHERE scheduled_message_id = ? AND status = ?)`

	queryCountMessageLogs = `
		SELECT COUNT(*) FROM message_logs WHERE status = ? AND created_at >= ?`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM coin_balances
		WHERE participant_id = ? AND currency = ?`

	queryGetAllParticipantBalances = `
		SELECT id, participant_id, currency, balance, last_transaction_id, version, updated_at
		FROM coin_balances
		WHERE participant_id = ?
		ORDER BY currency`

	queryReconcileBalance = `
		SELECT
			COALESCE((SELECT balance FROM coin_balances WHERE participant_id = ? AND currency = ?), 0),
			COALESCE((SELECT SUM(amount) FROM coin_transactions
				WHERE participant_id = ? AND currency = ? AND status = 'confirmed'), 0)`

	queryOutstandingBalances = `
		SELECT currency, COALESCE(SUM(balance), 0), COUNT(*)
		FROM coin_balances
		WHERE balance > 0
		GROUP BY currency
		ORDER BY currency`

	// Transaction queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM coin_transactions WHERE external_ref = ? LIMIT 1`

	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM coin_balances
		WHERE participant_id = ? AND currency = ?`

	queryInsertAccountBalance = `
		INSERT INTO coin_balances (id, participant_id, currency, balance, version)
		VALUES (?, ?, ?, ?, ?)`

	queryInsertTransaction = `
		INSERT INTO coin_transactions (
			id, participant_id, currency, kind, amount, balance_before, balance_after,
			external_ref, reason, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, participant_id, currency, kind, amount, balance_before, balance_after,
		          external_ref, reason, status, created_at`

	queryUpdateAccountBalance = `
		UPDATE coin_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = ?
		WHERE participant_id = ? AND currency = ? AND version = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, participant_id, currency, kind, amount, balance_before, balance_after,
		       external_ref, reason, status, created_at
		FROM coin_transactions
		WHERE participant_id = ? AND (? = '' OR currency = ?)
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	// Stats queries
	queryStatsParticipants = `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM participants WHERE active = 1`

	queryStatsReferrals = `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'converted' THEN 1 ELSE 0 END), 0)
		FROM referrals`

	queryStatsPaidOrders = `
		SELECT amount FROM orders WHERE status = 'paid' AND paid_at >= ?`

	queryStatsPendingClips = `
		SELECT COUNT(*) FROM clip_submissions WHERE status = 'submitted'`
)

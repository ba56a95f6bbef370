// Package referral issues referral codes, attributes signups and converts
// referrals on first purchase. It also owns the short link directory.
package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"iamblessed-funnel-go/internal/gamification"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// codeAlphabet omits characters that are easy to confuse (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	codeLength  = 8
	maxAttempts = 5
)

var ErrSelfReferral = fmt.Errorf("%w: participant cannot refer themselves", store.ErrInvalidTransition)

// LinkCache is the cache-aside store used when resolving short links.
type LinkCache interface {
	Get(ctx context.Context, slug string) (*models.ShortLink, error)
	Set(ctx context.Context, link models.ShortLink, ttl time.Duration) error
	Delete(ctx context.Context, slug string) error
}

type Options struct {
	PublicBaseURL string
	ClickHashSalt string
	Cache         LinkCache // nil disables caching
	CacheTTL      time.Duration
}

type Service struct {
	funnel  store.FunnelStore
	awards  *gamification.Service
	opts    Options
	now     func() time.Time
	randStr func(alphabet string, n int) (string, error)
}

func NewService(funnel store.FunnelStore, awards *gamification.Service, opts Options) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Service{
		funnel:  funnel,
		awards:  awards,
		opts:    opts,
		now:     time.Now,
		randStr: randomString,
	}
}

func randomString(alphabet string, n int) (string, error) {
	buf := make([]byte, n)
	size := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}

// Link returns the public referral link for a code.
func (s *Service) Link(code string) string {
	return fmt.Sprintf("%s/?ref=%s", s.opts.PublicBaseURL, code)
}

// EnsureCode returns the participant's referral code, creating one on first use.
func (s *Service) EnsureCode(ctx context.Context, participantId string) (*models.ReferralCode, error) {
	existing, err := s.funnel.GetReferralCodeFor(ctx, participantId)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := s.randStr(codeAlphabet, codeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate referral code: %w", err)
		}
		rc, err := s.funnel.CreateReferralCode(ctx, participantId, code)
		if errors.Is(err, store.ErrDuplicate) {
			// another request may have created this participant's code
			if existing, getErr := s.funnel.GetReferralCodeFor(ctx, participantId); getErr == nil {
				return existing, nil
			}
			zap.L().Debug("Referral code collision, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	return nil, fmt.Errorf("failed to generate a unique referral code after %d attempts", maxAttempts)
}

// Attribute records that referredId signed up with code.
func (s *Service) Attribute(ctx context.Context, referredId, code string) (*models.Referral, error) {
	rc, err := s.funnel.GetReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if rc.ParticipantId == referredId {
		return nil, ErrSelfReferral
	}

	ref, err := s.funnel.CreateReferral(ctx, rc.ParticipantId, referredId, rc.Code)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Referral attributed",
		zap.String("referrer_id", rc.ParticipantId),
		zap.String("referred_id", referredId),
		zap.String("code", rc.Code))
	return ref, nil
}

// Convert marks the referral of referredId converted after its first paid order,
// awards the referrer coins and credits the affiliate commission at the
// referrer's tier rate. Participants without a referrer are ignored.
//
// Every payout is keyed by the referral or order, so they are recorded before
// the referral is marked converted and a failed call can be retried.
func (s *Service) Convert(ctx context.Context, referredId, orderId string, orderAmount decimal.Decimal) error {
	ref, err := s.funnel.GetReferralByReferred(ctx, referredId)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if ref.Status == models.ReferralConverted {
		return nil
	}

	before, err := s.funnel.CountConvertedReferrals(ctx, ref.ReferrerId)
	if err != nil {
		return err
	}
	after := before + 1

	if _, err := s.awards.Award(ctx, ref.ReferrerId, gamification.EventReferralConverted, ref.Id); err != nil {
		return err
	}

	ladder := s.awards.Ladders().Affiliate
	if tier, ok := ladder.Lookup(decimal.NewFromInt(before)); ok && tier.Rate.IsPositive() {
		commission := orderAmount.Mul(tier.Rate)
		if _, err := s.awards.CreditUSD(ctx, ref.ReferrerId, commission, "affiliate_commission", "commission:"+ref.Id); err != nil {
			return err
		}
		zap.L().Info("Affiliate commission credited",
			zap.String("referrer_id", ref.ReferrerId),
			zap.String("tier", tier.Name),
			zap.String("commission", commission.Round(2).String()))
	}

	if err := s.awards.AwardTierBonuses(ctx, ref.ReferrerId, decimal.NewFromInt(before), decimal.NewFromInt(after)); err != nil {
		return err
	}

	if err := s.funnel.MarkReferralConverted(ctx, ref.Id, s.now()); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	zap.L().Info("Referral converted",
		zap.String("referral_id", ref.Id),
		zap.String("referrer_id", ref.ReferrerId),
		zap.String("order_id", orderId),
		zap.Int64("converted_total", after))
	return nil
}

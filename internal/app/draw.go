package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
	"github.com/loyalty/rewards-service/internal/metrics"
	"github.com/loyalty/rewards-service/internal/store"
)

// DrawWinners picks req.NumberOfDraws distinct winners among the campaign's eligible giveaway
// entries, weighted by entry count.
func (s *Service) DrawWinners(ctx context.Context, caller *domain.Identity, req domain.DrawRequest) (result *domain.DrawResult, err error) {
	start := time.Now()
	defer func() { s.finish(metrics.OperationDraw, start, err) }()

	owner, err := s.requireBusinessOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	campaignID, err := parseID(req.CampaignID)
	if err != nil {
		return nil, err
	}
	if req.NumberOfDraws <= 0 {
		return nil, domain.WithMessage(domain.ErrInvalidAmount, "Please enter a positive number of winners to draw.")
	}

	var event domain.GiveawayWinnersDrawnEvent
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		campaign, err := tx.LockCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if campaign.CompanyID != *owner.CompanyID {
			return domain.ErrForbidden
		}
		if campaign.Kind != domain.KindGiveaway {
			return domain.ErrWrongCampaignType
		}
		if !campaign.IsActive {
			return domain.ErrCampaignInactive
		}

		eligible, err := tx.ListEligibleGiveawayProps(ctx, campaign.ID)
		if err != nil {
			return err
		}
		winners, err := selectWinners(eligible, req.NumberOfDraws, s.shuffle)
		if err != nil {
			return err
		}

		propsIDs := make([]uuid.UUID, len(winners))
		accountIDs := make([]uuid.UUID, len(winners))
		for i, w := range winners {
			propsIDs[i] = w.ID
			accountIDs[i] = w.AccountID
		}
		marked, err := tx.MarkGiveawayWinners(ctx, campaign.ID, propsIDs)
		if err != nil {
			return err
		}
		if marked != int64(len(propsIDs)) {
			return fmt.Errorf("%w: marked %d of %d winners", domain.ErrTransactionConflict, marked, len(propsIDs))
		}

		isActive := !req.DeactivateCampaignAfterDraw
		if !isActive {
			if err := tx.SetCampaignActive(ctx, campaign.ID, false); err != nil {
				return err
			}
		}

		result = &domain.DrawResult{WinnerPropsIDs: propsIDs, WinnerAccountIDs: accountIDs, CampaignIsActive: isActive}
		event = domain.GiveawayWinnersDrawnEvent{
			EventID:             uuid.New(),
			CampaignID:          campaign.ID,
			WinnerPropsIDs:      propsIDs,
			WinnerAccountIDs:    accountIDs,
			CampaignDeactivated: !isActive,
			OccurredAt:          s.now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventGiveawayWinnersDrawn, event)
	return result, nil
}

// buildEntryPool returns one slot per giveaway entry; each slot indexes into props.
func buildEntryPool(props []*domain.GiveawayProps) []int {
	size := 0
	for _, p := range props {
		size += p.GiveawayEntries
	}
	pool := make([]int, 0, size)
	for i, p := range props {
		for e := 0; e < p.GiveawayEntries; e++ {
			pool = append(pool, i)
		}
	}
	return pool
}

// selectWinners shuffles the entry pool and walks it, keeping each participant the first time
// one of their slots comes up. This is weighted sampling without replacement: a participant
// with more entries is more likely to be reached early but can win only once.
//
// The draw is gated by the number of distinct eligible participants, not the pool size, so a
// request for more winners than participants fails before anything is marked.
func selectWinners(eligible []*domain.GiveawayProps, n int, shuffle func(n int, swap func(i, j int))) ([]*domain.GiveawayProps, error) {
	participants := 0
	for _, p := range eligible {
		if p.Eligible() {
			participants++
		}
	}
	if participants < n {
		return nil, domain.WithMessage(domain.ErrInsufficientEntries,
			fmt.Sprintf("There are only %d eligible participants, not enough for %d winners. Please enter a smaller number.", participants, n))
	}

	pool := buildEntryPool(eligible)
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	winners := make([]*domain.GiveawayProps, 0, n)
	picked := make(map[int]bool, n)
	for _, idx := range pool {
		if picked[idx] || !eligible[idx].Eligible() {
			continue
		}
		picked[idx] = true
		winners = append(winners, eligible[idx])
		if len(winners) == n {
			break
		}
	}
	return winners, nil
}

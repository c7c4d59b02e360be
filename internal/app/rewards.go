package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
	"github.com/loyalty/rewards-service/internal/store"
)

const (
	luckyTicketWinMessage  = "Congratulations, you just scanned a winning code!"
	luckyTicketMissMessage = "Unfortunately that was not a winning code, keep scanning."
)

type reward struct {
	message     string
	winningCode bool
}

// applyReward credits the scan to exactly one CampaignProps of the campaign's kind.
func (s *Service) applyReward(ctx context.Context, tx store.Tx, campaign *domain.Campaign, code *domain.Code, accountID uuid.UUID) (reward, error) {
	return domain.MatchKind(campaign.Kind,
		func() (reward, error) { return creditGiveaway(ctx, tx, campaign, accountID) },
		func() (reward, error) { return creditLuckyTicket(ctx, tx, campaign, code.ID, accountID) },
		func() (reward, error) { return creditPoints(ctx, tx, campaign, code, accountID) },
	)
}

func creditGiveaway(ctx context.Context, tx store.Tx, campaign *domain.Campaign, accountID uuid.UUID) (reward, error) {
	props, err := tx.FindOpenGiveawayProps(ctx, campaign.ID, accountID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		props = &domain.GiveawayProps{ID: uuid.New(), CampaignID: campaign.ID, AccountID: accountID}
		props.AddEntry(campaign.AllowsMultipleEntries)
		err = tx.InsertProps(ctx, props)
	case err == nil:
		props.AddEntry(campaign.AllowsMultipleEntries)
		err = tx.UpdateProps(ctx, props)
	}
	if err != nil {
		return reward{}, fmt.Errorf("credit giveaway entry: %w", err)
	}
	return reward{message: giveawayMessage(props.GiveawayEntries)}, nil
}

func giveawayMessage(entries int) string {
	if entries == 1 {
		return "You now have 1 giveaway entry. Good luck!"
	}
	return fmt.Sprintf("You now have %d giveaway entries. Good luck!", entries)
}

// creditLuckyTicket checks the code against the campaign's ledger. A miss leaves the ledger
// untouched; a ledger created here starts empty, so the scan cannot be a win.
func creditLuckyTicket(ctx context.Context, tx store.Tx, campaign *domain.Campaign, codeID string, accountID uuid.UUID) (reward, error) {
	ledger, err := tx.FindLuckyTicketProps(ctx, campaign.ID)
	if errors.Is(err, domain.ErrNotFound) {
		ledger = &domain.LuckyTicketProps{
			ID:                    uuid.New(),
			CampaignID:            campaign.ID,
			ActiveWinningTickets:  []string{},
			ScannedWinningTickets: []domain.WinningTicket{},
		}
		ledger.RecomputeCounts()
		if err := tx.InsertProps(ctx, ledger); err != nil {
			return reward{}, fmt.Errorf("create winning ticket ledger: %w", err)
		}
		return reward{message: luckyTicketMissMessage}, nil
	}
	if err != nil {
		return reward{}, fmt.Errorf("load winning ticket ledger: %w", err)
	}

	if !ledger.ClaimWinningCode(codeID, accountID) {
		return reward{message: luckyTicketMissMessage}, nil
	}
	if err := tx.UpdateProps(ctx, ledger); err != nil {
		return reward{}, fmt.Errorf("record winning ticket: %w", err)
	}
	return reward{message: luckyTicketWinMessage, winningCode: true}, nil
}

func creditPoints(ctx context.Context, tx store.Tx, campaign *domain.Campaign, code *domain.Code, accountID uuid.UUID) (reward, error) {
	props, err := tx.FindPointCollectorProps(ctx, campaign.ID, accountID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		props = &domain.PointCollectorProps{ID: uuid.New(), CampaignID: campaign.ID, AccountID: accountID}
		if err = props.AddPoints(code.Points); err == nil {
			err = tx.InsertProps(ctx, props)
		}
	case err == nil:
		if err = props.AddPoints(code.Points); err == nil {
			err = tx.UpdateProps(ctx, props)
		}
	}
	if err != nil {
		return reward{}, fmt.Errorf("credit points: %w", err)
	}
	return reward{message: fmt.Sprintf("Code scanned, you now have %d points.", props.CollectedPoints)}, nil
}

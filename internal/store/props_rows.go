package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loyalty/rewards-service/internal/domain"
)

// campaign_props stores all three variants in one table; columns not used by a variant keep
// their defaults.
const propsColumns = `id, campaign_id, kind, account_id, giveaway_entries, is_winner, is_redeemed, redeem_date, ` +
	`collected_points, active_winning_tickets, scanned_winning_tickets, ` +
	`amount_of_active_winning_tickets, amount_of_scanned_winning_tickets`

type propsRow struct {
	id                     uuid.UUID
	campaignID             uuid.UUID
	kind                   string
	accountID              *uuid.UUID
	giveawayEntries        int
	isWinner               bool
	isRedeemed             bool
	redeemDate             *time.Time
	collectedPoints        int
	activeWinningTickets   []string
	scannedWinningTickets  []byte
	amountOfActiveTickets  int
	amountOfScannedTickets int
}

func (r *propsRow) scan(row pgx.Row) error {
	return row.Scan(
		&r.id, &r.campaignID, &r.kind, &r.accountID, &r.giveawayEntries, &r.isWinner, &r.isRedeemed, &r.redeemDate,
		&r.collectedPoints, &r.activeWinningTickets, &r.scannedWinningTickets,
		&r.amountOfActiveTickets, &r.amountOfScannedTickets,
	)
}

// args returns the row in propsColumns order. The scanned tickets are sent as JSON text.
func (r propsRow) args() []any {
	return []any{
		r.id, r.campaignID, r.kind, r.accountID, r.giveawayEntries, r.isWinner, r.isRedeemed, r.redeemDate,
		r.collectedPoints, r.activeWinningTickets, string(r.scannedWinningTickets),
		r.amountOfActiveTickets, r.amountOfScannedTickets,
	}
}

func (r propsRow) participant() uuid.UUID {
	if r.accountID == nil {
		return uuid.Nil
	}
	return *r.accountID
}

func (r propsRow) toDomain() (domain.CampaignProps, error) {
	return domain.MatchKind(domain.CampaignKind(r.kind),
		func() (domain.CampaignProps, error) {
			return &domain.GiveawayProps{
				ID:              r.id,
				CampaignID:      r.campaignID,
				AccountID:       r.participant(),
				GiveawayEntries: r.giveawayEntries,
				IsWinner:        r.isWinner,
				IsRedeemed:      r.isRedeemed,
				RedeemDate:      r.redeemDate,
			}, nil
		},
		func() (domain.CampaignProps, error) {
			lt := &domain.LuckyTicketProps{
				ID:                   r.id,
				CampaignID:           r.campaignID,
				ActiveWinningTickets: r.activeWinningTickets,
			}
			if len(r.scannedWinningTickets) > 0 {
				if err := json.Unmarshal(r.scannedWinningTickets, &lt.ScannedWinningTickets); err != nil {
					return nil, fmt.Errorf("decode scanned winning tickets of props %s: %w", r.id, err)
				}
			}
			if lt.ActiveWinningTickets == nil {
				lt.ActiveWinningTickets = []string{}
			}
			if lt.ScannedWinningTickets == nil {
				lt.ScannedWinningTickets = []domain.WinningTicket{}
			}
			lt.RecomputeCounts()
			return lt, nil
		},
		func() (domain.CampaignProps, error) {
			return &domain.PointCollectorProps{
				ID:              r.id,
				CampaignID:      r.campaignID,
				AccountID:       r.participant(),
				CollectedPoints: r.collectedPoints,
			}, nil
		},
	)
}

func toPropsRow(props domain.CampaignProps) (propsRow, error) {
	return domain.MatchProps(props,
		func(g *domain.GiveawayProps) (propsRow, error) {
			accountID := g.AccountID
			return propsRow{
				id:                    g.ID,
				campaignID:            g.CampaignID,
				kind:                  string(domain.KindGiveaway),
				accountID:             &accountID,
				giveawayEntries:       g.GiveawayEntries,
				isWinner:              g.IsWinner,
				isRedeemed:            g.IsRedeemed,
				redeemDate:            g.RedeemDate,
				activeWinningTickets:  []string{},
				scannedWinningTickets: []byte("[]"),
			}, nil
		},
		func(lt *domain.LuckyTicketProps) (propsRow, error) {
			lt.RecomputeCounts()
			scanned := lt.ScannedWinningTickets
			if scanned == nil {
				scanned = []domain.WinningTicket{}
			}
			encoded, err := json.Marshal(scanned)
			if err != nil {
				return propsRow{}, fmt.Errorf("encode scanned winning tickets of props %s: %w", lt.ID, err)
			}
			active := lt.ActiveWinningTickets
			if active == nil {
				active = []string{}
			}
			return propsRow{
				id:                     lt.ID,
				campaignID:             lt.CampaignID,
				kind:                   string(domain.KindLuckyTicket),
				activeWinningTickets:   active,
				scannedWinningTickets:  encoded,
				amountOfActiveTickets:  lt.AmountOfActiveWinningTickets,
				amountOfScannedTickets: lt.AmountOfScannedWinningTickets,
			}, nil
		},
		func(pc *domain.PointCollectorProps) (propsRow, error) {
			accountID := pc.AccountID
			return propsRow{
				id:                    pc.ID,
				campaignID:            pc.CampaignID,
				kind:                  string(domain.KindPointCollector),
				accountID:             &accountID,
				collectedPoints:       pc.CollectedPoints,
				activeWinningTickets:  []string{},
				scannedWinningTickets: []byte("[]"),
			}, nil
		},
	)
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys of the events published after a reward operation commits.
const (
	EventCodeScanned          = "code.scanned"
	EventGiveawayWinnersDrawn = "giveaway.winners_drawn"
	EventRewardRedeemed       = "reward.redeemed"
)

// CodeScannedEvent is emitted once per successful scan.
type CodeScannedEvent struct {
	EventID      uuid.UUID    `json:"event_id"`
	CodeID       string       `json:"code_id"`
	CampaignID   uuid.UUID    `json:"campaign_id"`
	CompanyID    uuid.UUID    `json:"company_id"`
	AccountID    uuid.UUID    `json:"account_id"`
	CampaignKind CampaignKind `json:"campaign_type"`
	WinningCode  bool         `json:"winning_code,omitempty"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

// GiveawayWinnersDrawnEvent is emitted after a draw commits.
type GiveawayWinnersDrawnEvent struct {
	EventID             uuid.UUID   `json:"event_id"`
	CampaignID          uuid.UUID   `json:"campaign_id"`
	WinnerPropsIDs      []uuid.UUID `json:"winner_props_ids"`
	WinnerAccountIDs    []uuid.UUID `json:"winner_account_ids"`
	CampaignDeactivated bool        `json:"campaign_deactivated"`
	OccurredAt          time.Time   `json:"occurred_at"`
}

// RewardRedeemedEvent is emitted after a redemption commits.
type RewardRedeemedEvent struct {
	EventID              uuid.UUID    `json:"event_id"`
	CampaignPropsID      uuid.UUID    `json:"campaign_props_id"`
	CampaignID           uuid.UUID    `json:"campaign_id"`
	CampaignKind         CampaignKind `json:"campaign_type"`
	ParticipantAccountID uuid.UUID    `json:"participant_account_id"`
	RedeemedBy           uuid.UUID    `json:"redeemed_by"`
	Points               int          `json:"points,omitempty"`
	OccurredAt           time.Time    `json:"occurred_at"`
}

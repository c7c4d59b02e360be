package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// CampaignProps is the reward state ledger of a campaign. It is a closed union with exactly
// three variants: *GiveawayProps, *LuckyTicketProps and *PointCollectorProps. Code that needs
// to branch on the variant goes through MatchProps.
type CampaignProps interface {
	PropsID() uuid.UUID
	PropsCampaignID() uuid.UUID
	Kind() CampaignKind
	campaignProps()
}

// GiveawayProps is one participant's entries in a giveaway.
type GiveawayProps struct {
	ID              uuid.UUID  `json:"id"`
	CampaignID      uuid.UUID  `json:"campaign_id"`
	AccountID       uuid.UUID  `json:"account_id"`
	GiveawayEntries int        `json:"giveaway_entries"`
	IsWinner        bool       `json:"is_winner"`
	IsRedeemed      bool       `json:"is_redeemed"`
	RedeemDate      *time.Time `json:"redeem_date,omitempty"`
}

func (p *GiveawayProps) PropsID() uuid.UUID         { return p.ID }
func (p *GiveawayProps) PropsCampaignID() uuid.UUID { return p.CampaignID }
func (p *GiveawayProps) Kind() CampaignKind         { return KindGiveaway }
func (p *GiveawayProps) campaignProps()             {}

// AddEntry credits one entry. Single-entry giveaways only go from zero to one.
func (p *GiveawayProps) AddEntry(allowsMultipleEntries bool) {
	if allowsMultipleEntries {
		p.GiveawayEntries++
		return
	}
	if p.GiveawayEntries == 0 {
		p.GiveawayEntries = 1
	}
}

// Eligible reports whether the entry can still take part in a draw.
func (p *GiveawayProps) Eligible() bool {
	return !p.IsWinner && !p.IsRedeemed && p.GiveawayEntries > 0
}

// Redeem marks the entry as claimed.
func (p *GiveawayProps) Redeem(at time.Time) error {
	if p.IsRedeemed {
		return ErrAlreadyRedeemed
	}
	p.IsRedeemed = true
	p.RedeemDate = &at
	return nil
}

// WinningTicket records a scanned winning code of a lucky-ticket campaign.
type WinningTicket struct {
	WinningAccount uuid.UUID  `json:"winning_account"`
	WinningCode    string     `json:"winning_code"`
	IsRedeemed     bool       `json:"is_redeemed"`
	RedeemDate     *time.Time `json:"redeem_date"`
}

// LuckyTicketProps is the single winning-ticket ledger of a lucky-ticket campaign.
// ActiveWinningTickets is never serialized to clients.
type LuckyTicketProps struct {
	ID                            uuid.UUID       `json:"id"`
	CampaignID                    uuid.UUID       `json:"campaign_id"`
	ActiveWinningTickets          []string        `json:"-"`
	ScannedWinningTickets         []WinningTicket `json:"scanned_winning_tickets"`
	AmountOfActiveWinningTickets  int             `json:"amount_of_active_winning_tickets"`
	AmountOfScannedWinningTickets int             `json:"amount_of_scanned_winning_tickets"`
}

func (p *LuckyTicketProps) PropsID() uuid.UUID         { return p.ID }
func (p *LuckyTicketProps) PropsCampaignID() uuid.UUID { return p.CampaignID }
func (p *LuckyTicketProps) Kind() CampaignKind         { return KindLuckyTicket }
func (p *LuckyTicketProps) campaignProps()             {}

// RecomputeCounts refreshes the derived ticket counts. Call after every list mutation.
func (p *LuckyTicketProps) RecomputeCounts() {
	p.AmountOfActiveWinningTickets = len(p.ActiveWinningTickets)
	p.AmountOfScannedWinningTickets = len(p.ScannedWinningTickets)
}

// IsWinningCode reports whether codeID is, or was, a winning ticket of this ledger.
func (p *LuckyTicketProps) IsWinningCode(codeID string) bool {
	for _, id := range p.ActiveWinningTickets {
		if id == codeID {
			return true
		}
	}
	for _, t := range p.ScannedWinningTickets {
		if t.WinningCode == codeID {
			return true
		}
	}
	return false
}

// AddActiveWinningCodes adds freshly generated winning codes to the active set.
func (p *LuckyTicketProps) AddActiveWinningCodes(codeIDs ...string) {
	p.ActiveWinningTickets = append(p.ActiveWinningTickets, codeIDs...)
	p.RecomputeCounts()
}

// ClaimWinningCode moves codeID from the active set to the scanned list when it is an active
// winning code. It reports whether the scan was a win.
func (p *LuckyTicketProps) ClaimWinningCode(codeID string, accountID uuid.UUID) bool {
	idx := -1
	for i, id := range p.ActiveWinningTickets {
		if id == codeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	active := make([]string, 0, len(p.ActiveWinningTickets)-1)
	active = append(active, p.ActiveWinningTickets[:idx]...)
	active = append(active, p.ActiveWinningTickets[idx+1:]...)
	p.ActiveWinningTickets = active
	p.ScannedWinningTickets = append(p.ScannedWinningTickets, WinningTicket{
		WinningAccount: accountID,
		WinningCode:    codeID,
	})
	p.RecomputeCounts()
	return true
}

// RedeemTicketFor marks the first unredeemed ticket won by accountID as redeemed.
func (p *LuckyTicketProps) RedeemTicketFor(accountID uuid.UUID, at time.Time) error {
	for i := range p.ScannedWinningTickets {
		t := &p.ScannedWinningTickets[i]
		if t.WinningAccount == accountID && !t.IsRedeemed {
			t.IsRedeemed = true
			t.RedeemDate = &at
			return nil
		}
	}
	return ErrNothingToRedeem
}

// HasWinner reports whether accountID holds any ticket in the ledger.
func (p *LuckyTicketProps) HasWinner(accountID uuid.UUID) bool {
	for _, t := range p.ScannedWinningTickets {
		if t.WinningAccount == accountID {
			return true
		}
	}
	return false
}

// MaxPoints bounds both a code's award and a balance; points are stored as 32-bit integers.
const MaxPoints = math.MaxInt32

// PointCollectorProps is one participant's point balance.
type PointCollectorProps struct {
	ID              uuid.UUID `json:"id"`
	CampaignID      uuid.UUID `json:"campaign_id"`
	AccountID       uuid.UUID `json:"account_id"`
	CollectedPoints int       `json:"collected_points"`
}

func (p *PointCollectorProps) PropsID() uuid.UUID         { return p.ID }
func (p *PointCollectorProps) PropsCampaignID() uuid.UUID { return p.CampaignID }
func (p *PointCollectorProps) Kind() CampaignKind         { return KindPointCollector }
func (p *PointCollectorProps) campaignProps()             {}

// AddPoints credits points from a scanned code.
func (p *PointCollectorProps) AddPoints(points int) error {
	if points < 0 {
		return fmt.Errorf("code awards %d points: %w", points, ErrInvalidAmount)
	}
	if points > MaxPoints-p.CollectedPoints {
		return fmt.Errorf("balance of %d cannot take %d more points: %w", p.CollectedPoints, points, ErrInvalidAmount)
	}
	p.CollectedPoints += points
	return nil
}

// DeductPoints redeems amount points. The balance never goes negative.
func (p *PointCollectorProps) DeductPoints(amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if p.CollectedPoints < amount {
		return ErrInsufficientPoints
	}
	p.CollectedPoints -= amount
	return nil
}

// MatchKind runs the branch matching k. Every branch is a required argument, so a new kind
// cannot be added without updating every call site.
func MatchKind[T any](
	k CampaignKind,
	giveaway func() (T, error),
	luckyTicket func() (T, error),
	pointCollector func() (T, error),
) (T, error) {
	switch k {
	case KindGiveaway:
		return giveaway()
	case KindLuckyTicket:
		return luckyTicket()
	case KindPointCollector:
		return pointCollector()
	}
	var zero T
	return zero, fmt.Errorf("%q: %w", k, ErrUnknownCampaignType)
}

// MatchProps runs the branch matching the concrete variant of p.
func MatchProps[T any](
	p CampaignProps,
	giveaway func(*GiveawayProps) (T, error),
	luckyTicket func(*LuckyTicketProps) (T, error),
	pointCollector func(*PointCollectorProps) (T, error),
) (T, error) {
	switch v := p.(type) {
	case *GiveawayProps:
		return giveaway(v)
	case *LuckyTicketProps:
		return luckyTicket(v)
	case *PointCollectorProps:
		return pointCollector(v)
	}
	var zero T
	return zero, fmt.Errorf("props %T: %w", p, ErrUnknownCampaignType)
}

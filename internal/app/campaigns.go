package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
	"github.com/loyalty/rewards-service/internal/metrics"
	"github.com/loyalty/rewards-service/internal/store"
)

// CreateCampaign starts a new, active campaign for the caller's company.
func (s *Service) CreateCampaign(ctx context.Context, caller *domain.Identity, req domain.CreateCampaignRequest) (*domain.Campaign, error) {
	owner, err := s.requireBusinessOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.WithMessage(domain.ErrInvalidInput, "Please enter a campaign name.")
	}
	typeID, err := parseID(req.CampaignTypeID)
	if err != nil {
		return nil, err
	}
	campaignType, err := s.repo.FindCampaignType(ctx, typeID)
	if err != nil {
		return nil, notFoundAs(err, "That campaign type does not exist.")
	}
	if !campaignType.Title.Valid() {
		return nil, fmt.Errorf("campaign type %s: %w", campaignType.ID, domain.ErrUnknownCampaignType)
	}

	allowsMultiple := true
	if req.AllowsMultipleEntries != nil {
		allowsMultiple = *req.AllowsMultipleEntries
	}
	campaign := &domain.Campaign{
		ID:                    uuid.New(),
		Name:                  name,
		IsActive:              true,
		CampaignTypeID:        campaignType.ID,
		Kind:                  campaignType.Title,
		CompanyID:             *owner.CompanyID,
		AllowsMultipleEntries: allowsMultiple,
	}
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateCampaign(ctx, campaign)
	})
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

// GenerateCodes adds req.Amount unscanned codes to a campaign. For lucky-ticket campaigns the
// first req.AmountOfWinningCodes codes join the ledger's hidden set of winning codes.
func (s *Service) GenerateCodes(ctx context.Context, caller *domain.Identity, req domain.GenerateCodesRequest) (result *domain.GenerateCodesResult, err error) {
	start := time.Now()
	defer func() { s.finish(metrics.OperationGenerateCodes, start, err) }()

	owner, err := s.requireBusinessOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	campaignID, err := parseID(req.CampaignID)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 || req.Amount > s.maxCodesPerRequest {
		return nil, domain.WithMessage(domain.ErrInvalidAmount,
			fmt.Sprintf("Please enter an amount between 1 and %d.", s.maxCodesPerRequest))
	}

	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		campaign, err := tx.LockCampaign(ctx, campaignID)
		if err != nil {
			return notFoundAs(err, "That campaign does not exist.")
		}
		if campaign.CompanyID != *owner.CompanyID {
			return domain.ErrForbidden
		}
		if !campaign.IsActive {
			return domain.ErrCampaignInactive
		}
		points, err := codeRewardFor(campaign.Kind, req)
		if err != nil {
			return err
		}

		ids, err := newCodeIDs(req.Amount)
		if err != nil {
			return err
		}
		codes := make([]domain.Code, len(ids))
		urls := make([]string, len(ids))
		for i, id := range ids {
			codes[i] = domain.Code{ID: id, Points: points, CompanyID: campaign.CompanyID, CampaignID: campaign.ID}
			urls[i] = s.publicBaseURL + codes[i].ScanPath()
		}
		if err := tx.AddCodes(ctx, campaign.ID, codes); err != nil {
			return fmt.Errorf("add codes: %w", err)
		}
		if campaign.Kind == domain.KindLuckyTicket && req.AmountOfWinningCodes > 0 {
			if err := addWinningCodes(ctx, tx, campaign.ID, ids[:req.AmountOfWinningCodes]); err != nil {
				return err
			}
		}

		result = &domain.GenerateCodesResult{CampaignID: campaign.ID, CodeIDs: ids, ScanURLs: urls}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// codeRewardFor validates the kind-specific fields of req and returns the points each code awards.
func codeRewardFor(kind domain.CampaignKind, req domain.GenerateCodesRequest) (int, error) {
	return domain.MatchKind(kind,
		func() (int, error) {
			if req.AmountOfWinningCodes != 0 || req.PointRewardAmount != 0 {
				return 0, domain.WithMessage(domain.ErrInvalidInput, "Giveaway codes carry neither winning codes nor points.")
			}
			return 0, nil
		},
		func() (int, error) {
			if req.PointRewardAmount != 0 {
				return 0, domain.WithMessage(domain.ErrInvalidInput, "Lucky ticket codes do not carry points.")
			}
			if req.AmountOfWinningCodes < 0 || req.AmountOfWinningCodes > req.Amount {
				return 0, domain.WithMessage(domain.ErrInvalidAmount, "The number of winning codes cannot exceed the number of codes.")
			}
			return 0, nil
		},
		func() (int, error) {
			if req.AmountOfWinningCodes != 0 {
				return 0, domain.WithMessage(domain.ErrInvalidInput, "Point collector codes cannot be winning codes.")
			}
			if req.PointRewardAmount <= 0 {
				return 0, domain.WithMessage(domain.ErrInvalidAmount, "Please enter how many points each code awards.")
			}
			if req.PointRewardAmount > domain.MaxPoints {
				return 0, domain.WithMessage(domain.ErrInvalidAmount, "That is too many points for one code.")
			}
			return req.PointRewardAmount, nil
		},
	)
}

func addWinningCodes(ctx context.Context, tx store.Tx, campaignID uuid.UUID, codeIDs []string) error {
	ledger, err := tx.FindLuckyTicketProps(ctx, campaignID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		ledger = &domain.LuckyTicketProps{
			ID:                    uuid.New(),
			CampaignID:            campaignID,
			ActiveWinningTickets:  []string{},
			ScannedWinningTickets: []domain.WinningTicket{},
		}
		ledger.AddActiveWinningCodes(codeIDs...)
		err = tx.InsertProps(ctx, ledger)
	case err == nil:
		ledger.AddActiveWinningCodes(codeIDs...)
		err = tx.UpdateProps(ctx, ledger)
	}
	if err != nil {
		return fmt.Errorf("register winning codes: %w", err)
	}
	return nil
}

// SetCampaignActive toggles whether a campaign accepts scans. Deactivation is final: an
// inactive campaign cannot be reopened.
func (s *Service) SetCampaignActive(ctx context.Context, caller *domain.Identity, rawCampaignID string, isActive bool) (*domain.Campaign, error) {
	owner, err := s.requireBusinessOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	campaignID, err := parseID(rawCampaignID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Campaign
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		campaign, err := tx.LockCampaign(ctx, campaignID)
		if err != nil {
			return notFoundAs(err, "That campaign does not exist.")
		}
		if campaign.CompanyID != *owner.CompanyID {
			return domain.ErrForbidden
		}
		switch {
		case campaign.IsActive == isActive:
		case isActive:
			return domain.WithMessage(domain.ErrCampaignInactive, "A deactivated campaign cannot be reactivated.")
		default:
			if err := tx.SetCampaignActive(ctx, campaign.ID, false); err != nil {
				return err
			}
			campaign.IsActive = false
		}
		updated = campaign
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetCampaign returns a campaign of the caller's company together with its dashboard statistics.
func (s *Service) GetCampaign(ctx context.Context, caller *domain.Identity, rawCampaignID string) (*domain.CampaignDetails, error) {
	owner, err := s.requireBusinessOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	campaignID, err := parseID(rawCampaignID)
	if err != nil {
		return nil, err
	}
	campaign, err := s.repo.FindCampaign(ctx, campaignID)
	if err != nil {
		return nil, notFoundAs(err, "That campaign does not exist.")
	}
	if campaign.CompanyID != *owner.CompanyID {
		return nil, domain.ErrForbidden
	}
	campaignType, err := s.repo.FindCampaignType(ctx, campaign.CampaignTypeID)
	if err != nil {
		return nil, fmt.Errorf("load campaign type: %w", err)
	}
	props, err := s.repo.ListCampaignProps(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("load campaign props: %w", err)
	}
	reached, err := s.repo.CountDistinctScanners(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("count scanners: %w", err)
	}

	details := &domain.CampaignDetails{
		Campaign:                    *campaign,
		CampaignType:                *campaignType,
		CampaignProps:               props,
		NumberOfUniquePeopleReached: reached,
	}
	for _, p := range props {
		won, redeemed, err := propsStats(p)
		if err != nil {
			return nil, err
		}
		details.WinningEntriesCount += won
		details.RedeemedEntriesCount += redeemed
	}
	return details, nil
}

// propsStats returns how many winners and redemptions a props record accounts for.
func propsStats(p domain.CampaignProps) (won int, redeemed int, err error) {
	type stats struct{ won, redeemed int }
	st, err := domain.MatchProps(p,
		func(g *domain.GiveawayProps) (stats, error) {
			var st stats
			if g.IsWinner {
				st.won = 1
			}
			if g.IsRedeemed {
				st.redeemed = 1
			}
			return st, nil
		},
		func(lt *domain.LuckyTicketProps) (stats, error) {
			st := stats{won: len(lt.ScannedWinningTickets)}
			for _, t := range lt.ScannedWinningTickets {
				if t.IsRedeemed {
					st.redeemed++
				}
			}
			return st, nil
		},
		func(*domain.PointCollectorProps) (stats, error) { return stats{}, nil },
	)
	return st.won, st.redeemed, err
}

// GetCode returns a single code. The scanning account is never exposed.
func (s *Service) GetCode(ctx context.Context, caller *domain.Identity, codeID string) (*domain.Code, error) {
	if caller == nil {
		return nil, domain.ErrUnauthenticated
	}
	codeID = strings.TrimSpace(codeID)
	if codeID == "" {
		return nil, domain.ErrInvalidIdentifier
	}
	code, err := s.repo.FindCode(ctx, codeID)
	if err != nil {
		return nil, notFoundAs(err, "That code does not exist.")
	}
	code.ScannedBy = nil
	return code, nil
}

func (s *Service) ListCampaignTypes(ctx context.Context) ([]domain.CampaignType, error) {
	types, err := s.repo.ListCampaignTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list campaign types: %w", err)
	}
	return types, nil
}

// GetCampaignParticipation lists the reward state of a participant across the caller's
// company's campaigns. Lucky-ticket ledgers are narrowed to the tickets the participant won.
func (s *Service) GetCampaignParticipation(ctx context.Context, caller *domain.Identity, rawAccountID string) (*domain.CampaignParticipation, error) {
	owner, err := s.requireBusinessOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	accountID, err := parseID(rawAccountID)
	if err != nil {
		return nil, err
	}
	participant, err := s.repo.FindAccount(ctx, accountID)
	if err != nil {
		return nil, notFoundAs(err, "That account does not exist.")
	}
	props, err := s.repo.ListParticipation(ctx, *owner.CompanyID, participant.ID)
	if err != nil {
		return nil, fmt.Errorf("list participation: %w", err)
	}

	out := make([]domain.CampaignProps, 0, len(props))
	for _, p := range props {
		if lt, ok := p.(*domain.LuckyTicketProps); ok {
			p = ticketsOf(lt, participant.ID)
		}
		out = append(out, p)
	}
	return &domain.CampaignParticipation{AccountName: participant.DisplayName(), CampaignParticipation: out}, nil
}

func ticketsOf(lt *domain.LuckyTicketProps, accountID uuid.UUID) *domain.LuckyTicketProps {
	narrowed := *lt
	narrowed.ActiveWinningTickets = nil
	narrowed.ScannedWinningTickets = make([]domain.WinningTicket, 0, len(lt.ScannedWinningTickets))
	for _, t := range lt.ScannedWinningTickets {
		if t.WinningAccount == accountID {
			narrowed.ScannedWinningTickets = append(narrowed.ScannedWinningTickets, t)
		}
	}
	narrowed.RecomputeCounts()
	return &narrowed
}

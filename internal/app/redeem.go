package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
	"github.com/loyalty/rewards-service/internal/metrics"
	"github.com/loyalty/rewards-service/internal/store"
)

// Redeem marks a participant's reward as claimed. Only accounts of the company that owns the
// props' campaign may redeem. It returns the props as committed.
func (s *Service) Redeem(ctx context.Context, caller *domain.Identity, req domain.RedeemRequest) (updated domain.CampaignProps, err error) {
	start := time.Now()
	defer func() { s.finish(metrics.OperationRedeem, start, err) }()

	owner, err := s.requireBusinessOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	propsID, err := parseID(req.CampaignPropsID)
	if err != nil {
		return nil, err
	}
	participantID, err := parseID(req.ParticipantAccountID)
	if err != nil {
		return nil, err
	}

	var event domain.RewardRedeemedEvent
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		props, err := tx.LockProps(ctx, propsID)
		if err != nil {
			return err
		}
		campaign, err := tx.FindCampaign(ctx, props.PropsCampaignID())
		if err != nil {
			return err
		}
		if campaign.CompanyID != *owner.CompanyID {
			return domain.ErrForbidden
		}
		if campaign.Kind != props.Kind() {
			return domain.ErrWrongCampaignType
		}

		at := s.now().UTC()
		points, err := domain.MatchProps(props,
			func(g *domain.GiveawayProps) (int, error) {
				if g.AccountID != participantID {
					return 0, domain.ErrNotFound
				}
				return 0, g.Redeem(at)
			},
			func(lt *domain.LuckyTicketProps) (int, error) {
				return 0, lt.RedeemTicketFor(participantID, at)
			},
			func(pc *domain.PointCollectorProps) (int, error) {
				if pc.AccountID != participantID {
					return 0, domain.ErrNotFound
				}
				if req.AmountOfPoints == nil {
					return 0, domain.ErrInvalidAmount
				}
				return *req.AmountOfPoints, pc.DeductPoints(*req.AmountOfPoints)
			},
		)
		if err != nil {
			return err
		}
		if err := tx.UpdateProps(ctx, props); err != nil {
			return err
		}

		updated = props
		event = domain.RewardRedeemedEvent{
			EventID:              uuid.New(),
			CampaignPropsID:      props.PropsID(),
			CampaignID:           campaign.ID,
			CampaignKind:         campaign.Kind,
			ParticipantAccountID: participantID,
			RedeemedBy:           owner.ID,
			Points:               points,
			OccurredAt:           at,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventRewardRedeemed, event)
	return updated, nil
}

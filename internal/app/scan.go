package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
	"github.com/loyalty/rewards-service/internal/metrics"
	"github.com/loyalty/rewards-service/internal/store"
)

const defaultScanMessage = "Code scanned."

// Scan redeems a code for the caller. Validation runs against locked rows inside the
// transaction, so a concurrent scan of the same code cannot also pass the checks.
func (s *Service) Scan(ctx context.Context, caller *domain.Identity, req domain.ScanRequest) (result *domain.ScanResult, err error) {
	start := time.Now()
	defer func() { s.finish(metrics.OperationScan, start, err) }()

	if caller == nil {
		return nil, domain.ErrUnauthenticated
	}
	campaignID, err := parseID(req.CampaignID)
	if err != nil {
		return nil, err
	}
	companyID, err := parseID(req.CompanyID)
	if err != nil {
		return nil, err
	}
	if caller.AccountID == uuid.Nil {
		return nil, domain.ErrInvalidIdentifier
	}
	codeID := strings.TrimSpace(req.CodeID)
	if codeID == "" {
		return nil, domain.ErrInvalidIdentifier
	}

	var event domain.CodeScannedEvent
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		code, err := tx.LockCode(ctx, codeID)
		if err != nil {
			return notFoundAs(err, "The code that you tried to scan does not exist.")
		}
		campaign, err := tx.LockCampaign(ctx, campaignID)
		if err != nil {
			return notFoundAs(err, "That campaign does not exist.")
		}
		company, err := tx.FindCompany(ctx, companyID)
		if err != nil {
			return notFoundAs(err, "That company does not exist.")
		}

		if code.CompanyID != companyID || code.CampaignID != campaignID || campaign.CompanyID != companyID {
			return domain.ErrCodeMismatch
		}
		if company.HasAccount(caller.AccountID) {
			return domain.ErrScannedOwnCode
		}
		if !campaign.IsActive {
			return domain.ErrCampaignInactive
		}
		if code.IsScanned {
			return domain.ErrAlreadyScanned
		}
		if campaign.Kind == domain.KindGiveaway && !campaign.AllowsMultipleEntries {
			entered, err := tx.HasGiveawayEntries(ctx, campaign.ID, caller.AccountID)
			if err != nil {
				return err
			}
			if entered {
				return domain.ErrSingleEntryExceeded
			}
		}

		at := s.now().UTC()
		if err := tx.MarkCodeScanned(ctx, code.ID, caller.AccountID, at); err != nil {
			return err
		}
		r, err := s.applyReward(ctx, tx, campaign, code, caller.AccountID)
		if err != nil {
			return err
		}

		if r.message == "" {
			r.message = defaultScanMessage
		}
		result = &domain.ScanResult{Message: r.message, CampaignKind: campaign.Kind, WinningCode: r.winningCode}
		event = domain.CodeScannedEvent{
			EventID:      uuid.New(),
			CodeID:       code.ID,
			CampaignID:   campaign.ID,
			CompanyID:    companyID,
			AccountID:    caller.AccountID,
			CampaignKind: campaign.Kind,
			WinningCode:  r.winningCode,
			OccurredAt:   at,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventCodeScanned, event)
	return result, nil
}

func notFoundAs(err error, message string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.WithMessage(domain.ErrNotFound, message)
	}
	return err
}

/**
 * @description
 * This file defines the `Store` and `Tx` interfaces, which specify the contract for all
 * data access operations required by the rewards-service. Every reward mutation runs inside
 * `Store.WithTx`, the single transaction boundary of the service: the callback's writes are
 * committed together when it returns nil and rolled back on any error or panic.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
)

// Reader holds the plain lookups available both inside and outside a transaction.
// Missing rows are reported as domain.ErrNotFound.
type Reader interface {
	FindAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindCompany(ctx context.Context, companyID uuid.UUID) (*domain.Company, error)
	FindCampaign(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error)
	FindCampaignType(ctx context.Context, campaignTypeID uuid.UUID) (*domain.CampaignType, error)
	FindCode(ctx context.Context, codeID string) (*domain.Code, error)
}

// Store is the entity store.
type Store interface {
	Reader

	// WithTx runs fn in a transaction. It commits when fn returns nil and rolls back otherwise.
	// Concurrent write conflicts surface as domain.ErrTransactionConflict.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	ListCampaignTypes(ctx context.Context) ([]domain.CampaignType, error)
	ListCampaignProps(ctx context.Context, campaignID uuid.UUID) ([]domain.CampaignProps, error)
	// CountDistinctScanners returns how many different accounts scanned a code of the campaign.
	CountDistinctScanners(ctx context.Context, campaignID uuid.UUID) (int, error)
	// ListParticipation returns the props of the company's campaigns the account takes part in,
	// including lucky-ticket ledgers holding a ticket won by the account.
	ListParticipation(ctx context.Context, companyID uuid.UUID, accountID uuid.UUID) ([]domain.CampaignProps, error)
	DeleteExpiredDownloadLinks(ctx context.Context, createdBefore time.Time) (int64, error)
}

// Tx is the set of operations available inside Store.WithTx. Lock* methods take a row lock
// held until the transaction ends, so checks made on their results still hold at commit.
type Tx interface {
	Reader

	LockCode(ctx context.Context, codeID string) (*domain.Code, error)
	LockCampaign(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error)
	LockProps(ctx context.Context, propsID uuid.UUID) (domain.CampaignProps, error)

	// MarkCodeScanned is the only operation that moves a code from unscanned to scanned. It
	// updates the owning campaign's active and scanned counters in the same statement and
	// returns domain.ErrAlreadyScanned when the code was scanned already.
	MarkCodeScanned(ctx context.Context, codeID string, accountID uuid.UUID, at time.Time) error
	// AddCodes inserts unscanned codes and grows the campaign's total and active counters.
	AddCodes(ctx context.Context, campaignID uuid.UUID, codes []domain.Code) error

	CreateCampaign(ctx context.Context, campaign *domain.Campaign) error
	SetCampaignActive(ctx context.Context, campaignID uuid.UUID, isActive bool) error

	// FindOpenGiveawayProps returns the participant's giveaway entry that has neither won nor
	// been redeemed, locked for update.
	FindOpenGiveawayProps(ctx context.Context, campaignID uuid.UUID, accountID uuid.UUID) (*domain.GiveawayProps, error)
	// HasGiveawayEntries reports whether the participant holds any giveaway props with entries.
	HasGiveawayEntries(ctx context.Context, campaignID uuid.UUID, accountID uuid.UUID) (bool, error)
	FindPointCollectorProps(ctx context.Context, campaignID uuid.UUID, accountID uuid.UUID) (*domain.PointCollectorProps, error)
	// FindLuckyTicketProps returns the campaign's single ledger, including the hidden active set.
	FindLuckyTicketProps(ctx context.Context, campaignID uuid.UUID) (*domain.LuckyTicketProps, error)
	ListEligibleGiveawayProps(ctx context.Context, campaignID uuid.UUID) ([]*domain.GiveawayProps, error)
	// MarkGiveawayWinners flags the given props as winners if they are still eligible and
	// returns how many rows changed.
	MarkGiveawayWinners(ctx context.Context, campaignID uuid.UUID, propsIDs []uuid.UUID) (int64, error)

	InsertProps(ctx context.Context, props domain.CampaignProps) error
	UpdateProps(ctx context.Context, props domain.CampaignProps) error
}

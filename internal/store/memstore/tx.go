package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
)

type reader struct {
	st *state
}

func (r reader) FindAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	a, ok := r.st.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

// FindCompany derives the linked accounts from accounts.company_id, as the SQL store does.
func (r reader) FindCompany(_ context.Context, id uuid.UUID) (*domain.Company, error) {
	c, ok := r.st.companies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.AccountIDs = nil
	for _, a := range r.st.accounts {
		if a.CompanyID != nil && *a.CompanyID == id {
			c.AccountIDs = append(c.AccountIDs, a.ID)
		}
	}
	return &c, nil
}

func (r reader) FindCampaign(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, ok := r.st.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r reader) FindCampaignType(_ context.Context, id uuid.UUID) (*domain.CampaignType, error) {
	ct, ok := r.st.campaignTypes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ct, nil
}

func (r reader) FindCode(_ context.Context, id string) (*domain.Code, error) {
	c, ok := r.st.codes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

type tx struct {
	reader
	now func() time.Time
}

func (t *tx) LockCode(ctx context.Context, id string) (*domain.Code, error) {
	return t.FindCode(ctx, id)
}

func (t *tx) LockCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	return t.FindCampaign(ctx, id)
}

func (t *tx) LockProps(_ context.Context, id uuid.UUID) (domain.CampaignProps, error) {
	p, ok := t.st.props[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyProps(p), nil
}

func (t *tx) MarkCodeScanned(_ context.Context, codeID string, accountID uuid.UUID, at time.Time) error {
	code, ok := t.st.codes[codeID]
	if !ok {
		return domain.ErrNotFound
	}
	if code.IsScanned {
		return domain.ErrAlreadyScanned
	}
	campaign, ok := t.st.campaigns[code.CampaignID]
	if !ok {
		return domain.ErrNotFound
	}

	scannedBy := accountID
	scannedAt := at
	code.IsScanned = true
	code.ScannedBy = &scannedBy
	code.DateScanned = &scannedAt
	t.st.codes[codeID] = code

	campaign.NumberOfActiveCodes--
	campaign.NumberOfScannedCodes++
	t.st.campaigns[campaign.ID] = campaign
	return nil
}

func (t *tx) AddCodes(_ context.Context, campaignID uuid.UUID, codes []domain.Code) error {
	campaign, ok := t.st.campaigns[campaignID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, c := range codes {
		if c.CampaignID != campaignID {
			return fmt.Errorf("code %s belongs to campaign %s: %w", c.ID, c.CampaignID, domain.ErrCodeMismatch)
		}
		if _, exists := t.st.codes[c.ID]; exists {
			return fmt.Errorf("%w: duplicate code id %s", domain.ErrTransactionConflict, c.ID)
		}
		c.IsScanned = false
		c.ScannedBy = nil
		c.DateScanned = nil
		t.st.codes[c.ID] = c
	}
	campaign.TotalNumberOfCodes += len(codes)
	campaign.NumberOfActiveCodes += len(codes)
	t.st.campaigns[campaignID] = campaign
	return nil
}

func (t *tx) CreateCampaign(_ context.Context, c *domain.Campaign) error {
	if _, exists := t.st.campaigns[c.ID]; exists {
		return fmt.Errorf("%w: duplicate campaign id %s", domain.ErrTransactionConflict, c.ID)
	}
	if _, ok := t.st.campaignTypes[c.CampaignTypeID]; !ok {
		return fmt.Errorf("%w: campaign type %s", ErrConstraintViolation, c.CampaignTypeID)
	}
	if _, ok := t.st.companies[c.CompanyID]; !ok {
		return fmt.Errorf("%w: company %s", ErrConstraintViolation, c.CompanyID)
	}
	c.TotalNumberOfCodes, c.NumberOfActiveCodes, c.NumberOfScannedCodes = 0, 0, 0
	c.IsExportingCodes = false
	c.CreatedAt = t.now()
	t.st.campaigns[c.ID] = *c
	return nil
}

func (t *tx) SetCampaignActive(_ context.Context, id uuid.UUID, isActive bool) error {
	c, ok := t.st.campaigns[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.IsActive = isActive
	t.st.campaigns[id] = c
	return nil
}

func (t *tx) FindOpenGiveawayProps(_ context.Context, campaignID, accountID uuid.UUID) (*domain.GiveawayProps, error) {
	for _, id := range t.st.propsOrder {
		g, ok := t.st.props[id].(*domain.GiveawayProps)
		if ok && g.CampaignID == campaignID && g.AccountID == accountID && !g.IsWinner && !g.IsRedeemed {
			return copyProps(g).(*domain.GiveawayProps), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *tx) HasGiveawayEntries(_ context.Context, campaignID, accountID uuid.UUID) (bool, error) {
	for _, p := range t.st.props {
		g, ok := p.(*domain.GiveawayProps)
		if ok && g.CampaignID == campaignID && g.AccountID == accountID && g.GiveawayEntries > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) FindPointCollectorProps(_ context.Context, campaignID, accountID uuid.UUID) (*domain.PointCollectorProps, error) {
	for _, id := range t.st.propsOrder {
		pc, ok := t.st.props[id].(*domain.PointCollectorProps)
		if ok && pc.CampaignID == campaignID && pc.AccountID == accountID {
			return copyProps(pc).(*domain.PointCollectorProps), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *tx) FindLuckyTicketProps(_ context.Context, campaignID uuid.UUID) (*domain.LuckyTicketProps, error) {
	for _, id := range t.st.propsOrder {
		lt, ok := t.st.props[id].(*domain.LuckyTicketProps)
		if ok && lt.CampaignID == campaignID {
			return copyProps(lt).(*domain.LuckyTicketProps), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *tx) ListEligibleGiveawayProps(_ context.Context, campaignID uuid.UUID) ([]*domain.GiveawayProps, error) {
	var out []*domain.GiveawayProps
	for _, id := range t.st.propsOrder {
		g, ok := t.st.props[id].(*domain.GiveawayProps)
		if ok && g.CampaignID == campaignID && g.Eligible() {
			out = append(out, copyProps(g).(*domain.GiveawayProps))
		}
	}
	return out, nil
}

func (t *tx) MarkGiveawayWinners(_ context.Context, campaignID uuid.UUID, propsIDs []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range propsIDs {
		g, ok := t.st.props[id].(*domain.GiveawayProps)
		if !ok || g.CampaignID != campaignID || !g.Eligible() {
			continue
		}
		g.IsWinner = true
		n++
	}
	return n, nil
}

func (t *tx) InsertProps(_ context.Context, props domain.CampaignProps) error {
	if _, exists := t.st.props[props.PropsID()]; exists {
		return fmt.Errorf("%w: duplicate props id %s", domain.ErrTransactionConflict, props.PropsID())
	}
	if _, ok := t.st.campaigns[props.PropsCampaignID()]; !ok {
		return fmt.Errorf("%w: campaign %s", ErrConstraintViolation, props.PropsCampaignID())
	}
	t.st.props[props.PropsID()] = copyProps(props)
	t.st.propsOrder = append(t.st.propsOrder, props.PropsID())
	return nil
}

func (t *tx) UpdateProps(_ context.Context, props domain.CampaignProps) error {
	current, ok := t.st.props[props.PropsID()]
	if !ok || current.Kind() != props.Kind() || current.PropsCampaignID() != props.PropsCampaignID() {
		return domain.ErrNotFound
	}
	if lt, ok := props.(*domain.LuckyTicketProps); ok {
		lt.RecomputeCounts()
	}
	t.st.props[props.PropsID()] = copyProps(props)
	return nil
}

// Package memstore is an in-memory store.Store used by tests and local runs without a database.
//
// Transactions are serialized and run against a private copy of the state, which replaces the
// shared state only when the callback succeeds and every table constraint still holds. This
// mirrors the commit/rollback behaviour of the PostgreSQL store, including its unique indexes
// and CHECK constraints.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
	"github.com/loyalty/rewards-service/internal/store"
)

// ErrConstraintViolation is returned when a transaction would commit a state that the
// PostgreSQL schema rejects.
var ErrConstraintViolation = errors.New("constraint violation")

type state struct {
	accounts      map[uuid.UUID]domain.Account
	companies     map[uuid.UUID]domain.Company
	campaignTypes map[uuid.UUID]domain.CampaignType
	campaigns     map[uuid.UUID]domain.Campaign
	codes         map[string]domain.Code
	downloadLinks map[uuid.UUID]domain.DownloadLink
	props         map[uuid.UUID]domain.CampaignProps
	propsOrder    []uuid.UUID
}

func newState() *state {
	return &state{
		accounts:      make(map[uuid.UUID]domain.Account),
		companies:     make(map[uuid.UUID]domain.Company),
		campaignTypes: make(map[uuid.UUID]domain.CampaignType),
		campaigns:     make(map[uuid.UUID]domain.Campaign),
		codes:         make(map[string]domain.Code),
		downloadLinks: make(map[uuid.UUID]domain.DownloadLink),
		props:         make(map[uuid.UUID]domain.CampaignProps),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.companies {
		v.AccountIDs = append([]uuid.UUID(nil), v.AccountIDs...)
		c.companies[k] = v
	}
	for k, v := range s.campaignTypes {
		c.campaignTypes[k] = v
	}
	for k, v := range s.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range s.codes {
		c.codes[k] = v
	}
	for k, v := range s.downloadLinks {
		c.downloadLinks[k] = v
	}
	for k, v := range s.props {
		c.props[k] = copyProps(v)
	}
	c.propsOrder = append([]uuid.UUID(nil), s.propsOrder...)
	return c
}

// copyProps returns a deep copy, so callers never share slices with the stored ledger.
func copyProps(p domain.CampaignProps) domain.CampaignProps {
	switch v := p.(type) {
	case *domain.GiveawayProps:
		cp := *v
		return &cp
	case *domain.LuckyTicketProps:
		cp := *v
		cp.ActiveWinningTickets = append([]string{}, v.ActiveWinningTickets...)
		cp.ScannedWinningTickets = append([]domain.WinningTicket{}, v.ScannedWinningTickets...)
		return &cp
	case *domain.PointCollectorProps:
		cp := *v
		return &cp
	}
	return p
}

// Store implements store.Store in memory.
type Store struct {
	mu          sync.Mutex
	st          *state
	commitError error
	now         func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store seeded with the three campaign types.
func New() *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, kind := range []domain.CampaignKind{domain.KindGiveaway, domain.KindLuckyTicket, domain.KindPointCollector} {
		id := uuid.New()
		s.st.campaignTypes[id] = domain.CampaignType{ID: id, Title: kind, Description: string(kind) + " campaign"}
	}
	return s
}

// FailNextCommit makes the next transaction fail with err after its callback succeeded, as a
// database would on a serialization failure. Nothing of that transaction is kept.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitError = err
}

// WithTx runs fn against a copy of the state and publishes the copy on success.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{reader: reader{st: work}, now: s.now}); err != nil {
		return err
	}
	if err := work.checkConstraints(); err != nil {
		return err
	}
	if err := s.commitError; err != nil {
		s.commitError = nil
		return err
	}
	s.st = work
	return nil
}

func (s *state) checkConstraints() error {
	for id, c := range s.campaigns {
		if !c.CountersBalanced() {
			return fmt.Errorf("%w: campaign %s counters %d+%d != %d", ErrConstraintViolation,
				id, c.NumberOfActiveCodes, c.NumberOfScannedCodes, c.TotalNumberOfCodes)
		}
	}
	openGiveaway := make(map[[2]uuid.UUID]bool)
	pointBalance := make(map[[2]uuid.UUID]bool)
	ledger := make(map[uuid.UUID]bool)
	for _, id := range s.propsOrder {
		_, err := domain.MatchProps(s.props[id],
			func(g *domain.GiveawayProps) (struct{}, error) {
				if g.GiveawayEntries < 0 {
					return struct{}{}, fmt.Errorf("%w: props %s has negative entries", ErrConstraintViolation, g.ID)
				}
				if g.IsWinner || g.IsRedeemed {
					return struct{}{}, nil
				}
				key := [2]uuid.UUID{g.CampaignID, g.AccountID}
				if openGiveaway[key] {
					return struct{}{}, fmt.Errorf("%w: duplicate open giveaway props", domain.ErrTransactionConflict)
				}
				openGiveaway[key] = true
				return struct{}{}, nil
			},
			func(lt *domain.LuckyTicketProps) (struct{}, error) {
				if ledger[lt.CampaignID] {
					return struct{}{}, fmt.Errorf("%w: duplicate lucky ticket ledger", domain.ErrTransactionConflict)
				}
				ledger[lt.CampaignID] = true
				return struct{}{}, nil
			},
			func(pc *domain.PointCollectorProps) (struct{}, error) {
				if pc.CollectedPoints < 0 {
					return struct{}{}, fmt.Errorf("%w: props %s has negative points", ErrConstraintViolation, pc.ID)
				}
				key := [2]uuid.UUID{pc.CampaignID, pc.AccountID}
				if pointBalance[key] {
					return struct{}{}, fmt.Errorf("%w: duplicate point collector props", domain.ErrTransactionConflict)
				}
				pointBalance[key] = true
				return struct{}{}, nil
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) read() reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reader{st: s.st}
}

// Reads outside a transaction see the last committed state. The committed state is never
// mutated in place, so holding a reference after unlocking is safe.

func (s *Store) FindAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.read().FindAccount(ctx, id)
}

func (s *Store) FindCompany(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	return s.read().FindCompany(ctx, id)
}

func (s *Store) FindCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	return s.read().FindCampaign(ctx, id)
}

func (s *Store) FindCampaignType(ctx context.Context, id uuid.UUID) (*domain.CampaignType, error) {
	return s.read().FindCampaignType(ctx, id)
}

func (s *Store) FindCode(ctx context.Context, id string) (*domain.Code, error) {
	return s.read().FindCode(ctx, id)
}

func (s *Store) ListCampaignTypes(ctx context.Context) ([]domain.CampaignType, error) {
	r := s.read()
	types := make([]domain.CampaignType, 0, len(r.st.campaignTypes))
	for _, kind := range []domain.CampaignKind{domain.KindGiveaway, domain.KindLuckyTicket, domain.KindPointCollector} {
		for _, ct := range r.st.campaignTypes {
			if ct.Title == kind {
				types = append(types, ct)
			}
		}
	}
	return types, nil
}

func (s *Store) ListCampaignProps(ctx context.Context, campaignID uuid.UUID) ([]domain.CampaignProps, error) {
	r := s.read()
	var out []domain.CampaignProps
	for _, id := range r.st.propsOrder {
		if p := r.st.props[id]; p.PropsCampaignID() == campaignID {
			out = append(out, copyProps(p))
		}
	}
	return out, nil
}

func (s *Store) CountDistinctScanners(ctx context.Context, campaignID uuid.UUID) (int, error) {
	r := s.read()
	seen := make(map[uuid.UUID]bool)
	for _, c := range r.st.codes {
		if c.CampaignID == campaignID && c.IsScanned && c.ScannedBy != nil {
			seen[*c.ScannedBy] = true
		}
	}
	return len(seen), nil
}

func (s *Store) ListParticipation(ctx context.Context, companyID uuid.UUID, accountID uuid.UUID) ([]domain.CampaignProps, error) {
	r := s.read()
	var out []domain.CampaignProps
	for _, id := range r.st.propsOrder {
		p := r.st.props[id]
		c, ok := r.st.campaigns[p.PropsCampaignID()]
		if !ok || c.CompanyID != companyID {
			continue
		}
		takesPart, _ := domain.MatchProps(p,
			func(g *domain.GiveawayProps) (bool, error) { return g.AccountID == accountID, nil },
			func(lt *domain.LuckyTicketProps) (bool, error) { return lt.HasWinner(accountID), nil },
			func(pc *domain.PointCollectorProps) (bool, error) { return pc.AccountID == accountID, nil },
		)
		if takesPart {
			out = append(out, copyProps(p))
		}
	}
	return out, nil
}

func (s *Store) DeleteExpiredDownloadLinks(ctx context.Context, createdBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	var deleted int64
	for id, link := range next.downloadLinks {
		if !link.CreatedAt.Before(createdBefore) {
			continue
		}
		delete(next.downloadLinks, id)
		deleted++
		// ON DELETE SET NULL
		for cid, c := range next.campaigns {
			if c.DownloadLinkID != nil && *c.DownloadLinkID == id {
				c.DownloadLinkID = nil
				next.campaigns[cid] = c
			}
		}
	}
	s.st = next
	return deleted, nil
}

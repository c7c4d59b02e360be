package memstore

import (
	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
)

// The Put* helpers write directly into the committed state. They exist for fixtures and do
// not run constraint checks.

func (s *Store) mutate(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st.clone()
	fn(next)
	s.st = next
}

func (s *Store) PutAccount(a domain.Account) {
	s.mutate(func(st *state) { st.accounts[a.ID] = a })
}

func (s *Store) PutCompany(c domain.Company) {
	s.mutate(func(st *state) { st.companies[c.ID] = c })
}

func (s *Store) PutCampaign(c domain.Campaign) {
	s.mutate(func(st *state) { st.campaigns[c.ID] = c })
}

func (s *Store) PutCode(c domain.Code) {
	s.mutate(func(st *state) { st.codes[c.ID] = c })
}

func (s *Store) PutDownloadLink(l domain.DownloadLink) {
	s.mutate(func(st *state) { st.downloadLinks[l.ID] = l })
}

func (s *Store) PutProps(p domain.CampaignProps) {
	s.mutate(func(st *state) {
		if _, exists := st.props[p.PropsID()]; !exists {
			st.propsOrder = append(st.propsOrder, p.PropsID())
		}
		st.props[p.PropsID()] = copyProps(p)
	})
}

// CampaignTypeID returns the id of the seeded campaign type for kind.
func (s *Store) CampaignTypeID(kind domain.CampaignKind) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ct := range s.st.campaignTypes {
		if ct.Title == kind {
			return id
		}
	}
	return uuid.Nil
}

// Props returns a copy of the committed props row, or nil.
func (s *Store) Props(id uuid.UUID) domain.CampaignProps {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.props[id]
	if !ok {
		return nil
	}
	return copyProps(p)
}

// AllProps returns copies of every committed props row in insertion order.
func (s *Store) AllProps() []domain.CampaignProps {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CampaignProps, 0, len(s.st.propsOrder))
	for _, id := range s.st.propsOrder {
		out = append(out, copyProps(s.st.props[id]))
	}
	return out
}

// DownloadLinkCount returns the number of stored download links.
func (s *Store) DownloadLinkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.downloadLinks)
}

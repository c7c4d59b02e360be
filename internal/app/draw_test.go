package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
)

func giveawayEntry(campaignID uuid.UUID, entries int) *domain.GiveawayProps {
	return &domain.GiveawayProps{ID: uuid.New(), CampaignID: campaignID, AccountID: uuid.New(), GiveawayEntries: entries}
}

func TestBuildEntryPool(t *testing.T) {
	campaignID := uuid.New()
	props := []*domain.GiveawayProps{giveawayEntry(campaignID, 3), giveawayEntry(campaignID, 1), giveawayEntry(campaignID, 0)}

	pool := buildEntryPool(props)
	want := []int{0, 0, 0, 1}
	if len(pool) != len(want) {
		t.Fatalf("expected pool %v, got %v", want, pool)
	}
	for i := range want {
		if pool[i] != want[i] {
			t.Fatalf("expected pool %v, got %v", want, pool)
		}
	}
}

func TestSelectWinnersGatesOnDistinctParticipants(t *testing.T) {
	campaignID := uuid.New()
	eligible := []*domain.GiveawayProps{giveawayEntry(campaignID, 3), giveawayEntry(campaignID, 1)}
	rng := rand.New(rand.NewPCG(1, 2))

	_, err := selectWinners(eligible, 4, rng.Shuffle)
	if !errors.Is(err, domain.ErrInsufficientEntries) {
		t.Fatalf("expected insufficient entries, got %v", err)
	}
	_, err = selectWinners(eligible, 3, rng.Shuffle)
	if !errors.Is(err, domain.ErrInsufficientEntries) {
		t.Fatalf("expected insufficient entries for 3 of 2 participants, got %v", err)
	}

	winners, err := selectWinners(eligible, 2, rng.Shuffle)
	if err != nil {
		t.Fatalf("expected draw of every participant to succeed, got %v", err)
	}
	if len(winners) != 2 || winners[0].ID == winners[1].ID {
		t.Fatalf("expected two distinct winners, got %+v", winners)
	}
}

func TestSelectWinnersIsDistinctAndBounded(t *testing.T) {
	campaignID := uuid.New()
	eligible := make([]*domain.GiveawayProps, 0, 10)
	for i := 1; i <= 10; i++ {
		eligible = append(eligible, giveawayEntry(campaignID, i))
	}
	rng := rand.New(rand.NewPCG(42, 42))

	for round := 0; round < 200; round++ {
		n := 1 + round%10
		winners, err := selectWinners(eligible, n, rng.Shuffle)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if len(winners) != n {
			t.Fatalf("round %d: expected %d winners, got %d", round, n, len(winners))
		}
		seen := make(map[uuid.UUID]bool, n)
		for _, w := range winners {
			if seen[w.AccountID] {
				t.Fatalf("round %d: participant %s drawn twice", round, w.AccountID)
			}
			seen[w.AccountID] = true
		}
	}
}

func TestSelectWinnersFavoursMoreEntries(t *testing.T) {
	campaignID := uuid.New()
	heavy := giveawayEntry(campaignID, 9)
	light := giveawayEntry(campaignID, 1)
	rng := rand.New(rand.NewPCG(3, 5))

	heavyWins := 0
	const rounds = 2000
	for i := 0; i < rounds; i++ {
		winners, err := selectWinners([]*domain.GiveawayProps{heavy, light}, 1, rng.Shuffle)
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if winners[0] == heavy {
			heavyWins++
		}
	}
	// Expected share is 90%.
	if heavyWins < rounds*80/100 || heavyWins > rounds*97/100 {
		t.Fatalf("expected heavy participant to win about 90%% of draws, got %d of %d", heavyWins, rounds)
	}
}

func TestSelectWinnersSkipsIneligible(t *testing.T) {
	campaignID := uuid.New()
	won := giveawayEntry(campaignID, 5)
	won.IsWinner = true
	open := giveawayEntry(campaignID, 1)
	rng := rand.New(rand.NewPCG(9, 9))

	winners, err := selectWinners([]*domain.GiveawayProps{won, open}, 1, rng.Shuffle)
	if err != nil {
		t.Fatalf("expected draw to succeed, got %v", err)
	}
	if winners[0] != open {
		t.Fatalf("expected the open entry to win, got %+v", winners[0])
	}
}

func seedGiveaway(t *testing.T, w *world, entries ...int) (domain.Campaign, []*domain.GiveawayProps) {
	t.Helper()
	campaign := w.campaign(t, domain.KindGiveaway, true)
	props := make([]*domain.GiveawayProps, len(entries))
	for i, n := range entries {
		props[i] = giveawayEntry(campaign.ID, n)
		w.store.PutProps(props[i])
	}
	return campaign, props
}

func TestDrawWinnersInsufficientParticipants(t *testing.T) {
	w := newWorld(t)
	campaign, props := seedGiveaway(t, w, 3, 1)

	_, err := w.svc.DrawWinners(context.Background(), w.owner, domain.DrawRequest{CampaignID: campaign.ID.String(), NumberOfDraws: 4})
	if !errors.Is(err, domain.ErrInsufficientEntries) {
		t.Fatalf("expected insufficient entries, got %v", err)
	}
	for _, p := range props {
		if w.store.Props(p.ID).(*domain.GiveawayProps).IsWinner {
			t.Fatal("expected no winner to be marked")
		}
	}
	if keys := w.publisher.routingKeys(); len(keys) != 0 {
		t.Fatalf("expected no events, got %v", keys)
	}
}

func TestDrawWinnersMarksExactlyN(t *testing.T) {
	w := newWorld(t)
	campaign, props := seedGiveaway(t, w, 5, 2, 1, 1)

	result, err := w.svc.DrawWinners(context.Background(), w.owner, domain.DrawRequest{CampaignID: campaign.ID.String(), NumberOfDraws: 2})
	if err != nil {
		t.Fatalf("expected draw to succeed, got %v", err)
	}
	if len(result.WinnerPropsIDs) != 2 || len(result.WinnerAccountIDs) != 2 {
		t.Fatalf("expected two winners, got %+v", result)
	}
	if !result.CampaignIsActive {
		t.Fatal("expected campaign to stay active")
	}

	marked := 0
	for _, p := range props {
		if w.store.Props(p.ID).(*domain.GiveawayProps).IsWinner {
			marked++
		}
	}
	if marked != 2 {
		t.Fatalf("expected 2 marked winners, got %d", marked)
	}
	if keys := w.publisher.routingKeys(); len(keys) != 1 || keys[0] != domain.EventGiveawayWinnersDrawn {
		t.Fatalf("expected one draw event, got %v", keys)
	}

	// Winners are no longer eligible, so only two participants remain.
	if _, err := w.svc.DrawWinners(context.Background(), w.owner, domain.DrawRequest{CampaignID: campaign.ID.String(), NumberOfDraws: 3}); !errors.Is(err, domain.ErrInsufficientEntries) {
		t.Fatalf("expected second draw to be gated by remaining participants, got %v", err)
	}
}

func TestDrawWinnersDeactivatesCampaign(t *testing.T) {
	w := newWorld(t)
	campaign, _ := seedGiveaway(t, w, 1, 1)

	result, err := w.svc.DrawWinners(context.Background(), w.owner, domain.DrawRequest{
		CampaignID:                  campaign.ID.String(),
		NumberOfDraws:               1,
		DeactivateCampaignAfterDraw: true,
	})
	if err != nil {
		t.Fatalf("expected draw to succeed, got %v", err)
	}
	if result.CampaignIsActive || w.mustCampaign(t, campaign.ID).IsActive {
		t.Fatal("expected campaign to be deactivated")
	}
	_, err = w.svc.DrawWinners(context.Background(), w.owner, domain.DrawRequest{CampaignID: campaign.ID.String(), NumberOfDraws: 1})
	if !errors.Is(err, domain.ErrCampaignInactive) {
		t.Fatalf("expected inactive campaign, got %v", err)
	}
}

func TestDrawWinnersRejections(t *testing.T) {
	w := newWorld(t)
	giveaway, _ := seedGiveaway(t, w, 2, 2)
	points := w.campaign(t, domain.KindPointCollector, true)

	foreignCompany := domain.Company{ID: uuid.New(), Name: "Rival"}
	w.store.PutCompany(foreignCompany)
	foreign := domain.Campaign{ID: uuid.New(), IsActive: true, Kind: domain.KindGiveaway, CampaignTypeID: w.store.CampaignTypeID(domain.KindGiveaway), CompanyID: foreignCompany.ID}
	w.store.PutCampaign(foreign)

	cases := []struct {
		name   string
		caller *domain.Identity
		req    domain.DrawRequest
		want   error
	}{
		{name: "consumer", caller: w.alice, req: domain.DrawRequest{CampaignID: giveaway.ID.String(), NumberOfDraws: 1}, want: domain.ErrUnauthenticated},
		{name: "bad id", caller: w.owner, req: domain.DrawRequest{CampaignID: "x", NumberOfDraws: 1}, want: domain.ErrInvalidIdentifier},
		{name: "zero draws", caller: w.owner, req: domain.DrawRequest{CampaignID: giveaway.ID.String(), NumberOfDraws: 0}, want: domain.ErrInvalidAmount},
		{name: "unknown campaign", caller: w.owner, req: domain.DrawRequest{CampaignID: uuid.NewString(), NumberOfDraws: 1}, want: domain.ErrNotFound},
		{name: "other company", caller: w.owner, req: domain.DrawRequest{CampaignID: foreign.ID.String(), NumberOfDraws: 1}, want: domain.ErrForbidden},
		{name: "not a giveaway", caller: w.owner, req: domain.DrawRequest{CampaignID: points.ID.String(), NumberOfDraws: 1}, want: domain.ErrWrongCampaignType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := w.svc.DrawWinners(context.Background(), tc.caller, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDrawWinnersCommitFailureMarksNothing(t *testing.T) {
	w := newWorld(t)
	campaign, props := seedGiveaway(t, w, 3, 2, 1)
	w.store.FailNextCommit(domain.ErrTransactionConflict)

	_, err := w.svc.DrawWinners(context.Background(), w.owner, domain.DrawRequest{
		CampaignID:                  campaign.ID.String(),
		NumberOfDraws:               2,
		DeactivateCampaignAfterDraw: true,
	})
	if !errors.Is(err, domain.ErrTransactionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	for _, p := range props {
		if w.store.Props(p.ID).(*domain.GiveawayProps).IsWinner {
			t.Fatal("expected no winner to be marked")
		}
	}
	if !w.mustCampaign(t, campaign.ID).IsActive {
		t.Fatal("expected campaign to stay active")
	}
	if keys := w.publisher.routingKeys(); len(keys) != 0 {
		t.Fatalf("expected no events, got %v", keys)
	}
}

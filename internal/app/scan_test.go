package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
)

func TestScanPointCollectorCreatesBalance(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindPointCollector, true)
	w.codes(t, campaign, 50, "code-x")

	result, err := w.scan(campaign, w.alice, "code-x")
	if err != nil {
		t.Fatalf("expected scan to succeed, got %v", err)
	}
	if !strings.HasSuffix(result.Message, "you now have 50 points.") {
		t.Fatalf("unexpected message %q", result.Message)
	}

	props := w.store.AllProps()
	if len(props) != 1 {
		t.Fatalf("expected one props row, got %d", len(props))
	}
	pc, ok := props[0].(*domain.PointCollectorProps)
	if !ok || pc.AccountID != w.alice.AccountID || pc.CollectedPoints != 50 {
		t.Fatalf("unexpected props %+v", props[0])
	}

	code, _ := w.store.FindCode(context.Background(), "code-x")
	if !code.IsScanned || code.ScannedBy == nil || *code.ScannedBy != w.alice.AccountID {
		t.Fatalf("expected code scanned by alice, got %+v", code)
	}
	if code.DateScanned == nil || !code.DateScanned.Equal(fixedNow) {
		t.Fatalf("expected scan date %v, got %v", fixedNow, code.DateScanned)
	}
	c := w.mustCampaign(t, campaign.ID)
	assertBalanced(t, c)
	if c.NumberOfScannedCodes != 1 || c.NumberOfActiveCodes != 0 {
		t.Fatalf("expected counters moved, got active=%d scanned=%d", c.NumberOfActiveCodes, c.NumberOfScannedCodes)
	}
	if keys := w.publisher.routingKeys(); len(keys) != 1 || keys[0] != domain.EventCodeScanned {
		t.Fatalf("expected one code.scanned event, got %v", keys)
	}
}

func TestScanPointCollectorAccumulatesIntoOneBalance(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindPointCollector, true)
	w.codes(t, campaign, 20, "c1", "c2", "c3")

	for _, id := range []string{"c1", "c2", "c3"} {
		if _, err := w.scan(campaign, w.alice, id); err != nil {
			t.Fatalf("scan %s: %v", id, err)
		}
	}
	props := w.store.AllProps()
	if len(props) != 1 {
		t.Fatalf("expected a single balance, got %d props", len(props))
	}
	if got := props[0].(*domain.PointCollectorProps).CollectedPoints; got != 60 {
		t.Fatalf("expected 60 points, got %d", got)
	}
}

func TestScanSingleEntryGiveaway(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindGiveaway, false)
	w.codes(t, campaign, 0, "g1", "g2")

	result, err := w.scan(campaign, w.alice, "g1")
	if err != nil {
		t.Fatalf("expected first scan to succeed, got %v", err)
	}
	if result.Message != "You now have 1 giveaway entry. Good luck!" {
		t.Fatalf("unexpected message %q", result.Message)
	}

	_, err = w.scan(campaign, w.alice, "g2")
	if !errors.Is(err, domain.ErrSingleEntryExceeded) {
		t.Fatalf("expected single entry exceeded, got %v", err)
	}

	props := w.store.AllProps()
	if len(props) != 1 || props[0].(*domain.GiveawayProps).GiveawayEntries != 1 {
		t.Fatalf("expected one entry to remain, got %+v", props)
	}
	code, _ := w.store.FindCode(context.Background(), "g2")
	if code.IsScanned {
		t.Fatal("expected rejected code to stay unscanned")
	}
	assertBalanced(t, w.mustCampaign(t, campaign.ID))
}

func TestScanMultipleEntryGiveaway(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindGiveaway, true)
	w.codes(t, campaign, 0, "g1", "g2", "g3")

	var last *domain.ScanResult
	for _, id := range []string{"g1", "g2", "g3"} {
		r, err := w.scan(campaign, w.alice, id)
		if err != nil {
			t.Fatalf("scan %s: %v", id, err)
		}
		last = r
	}
	if last.Message != "You now have 3 giveaway entries. Good luck!" {
		t.Fatalf("unexpected message %q", last.Message)
	}
	if n := len(w.store.AllProps()); n != 1 {
		t.Fatalf("expected one giveaway props, got %d", n)
	}
}

func TestScanGiveawayAfterWinStartsNewEntry(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindGiveaway, true)
	w.codes(t, campaign, 0, "g1")
	w.store.PutProps(&domain.GiveawayProps{ID: uuid.New(), CampaignID: campaign.ID, AccountID: w.alice.AccountID, GiveawayEntries: 4, IsWinner: true})

	result, err := w.scan(campaign, w.alice, "g1")
	if err != nil {
		t.Fatalf("expected scan to succeed, got %v", err)
	}
	if result.Message != "You now have 1 giveaway entry. Good luck!" {
		t.Fatalf("expected a fresh entry, got %q", result.Message)
	}
	if n := len(w.store.AllProps()); n != 2 {
		t.Fatalf("expected the won entry to be kept alongside a new one, got %d props", n)
	}
}

func TestScanLuckyTicket(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindLuckyTicket, true)
	w.codes(t, campaign, 0, "k1", "k2", "k3")
	ledger := &domain.LuckyTicketProps{ID: uuid.New(), CampaignID: campaign.ID, ActiveWinningTickets: []string{"k1", "k2"}}
	ledger.RecomputeCounts()
	w.store.PutProps(ledger)

	result, err := w.scan(campaign, w.alice, "k1")
	if err != nil {
		t.Fatalf("expected winning scan to succeed, got %v", err)
	}
	if !result.WinningCode || result.Message != luckyTicketWinMessage {
		t.Fatalf("expected a win, got %+v", result)
	}
	got := w.store.Props(ledger.ID).(*domain.LuckyTicketProps)
	if len(got.ActiveWinningTickets) != 1 || got.ActiveWinningTickets[0] != "k2" {
		t.Fatalf("expected k1 removed from active set, got %v", got.ActiveWinningTickets)
	}
	if len(got.ScannedWinningTickets) != 1 {
		t.Fatalf("expected one scanned ticket, got %d", len(got.ScannedWinningTickets))
	}
	ticket := got.ScannedWinningTickets[0]
	if ticket.WinningAccount != w.alice.AccountID || ticket.WinningCode != "k1" || ticket.IsRedeemed {
		t.Fatalf("unexpected ticket %+v", ticket)
	}

	result, err = w.scan(campaign, w.bob, "k3")
	if err != nil {
		t.Fatalf("expected losing scan to succeed, got %v", err)
	}
	if result.WinningCode || result.Message != luckyTicketMissMessage {
		t.Fatalf("expected a miss, got %+v", result)
	}
	after := w.store.Props(ledger.ID).(*domain.LuckyTicketProps)
	if len(after.ActiveWinningTickets) != 1 || len(after.ScannedWinningTickets) != 1 {
		t.Fatalf("expected ledger untouched by a miss, got %+v", after)
	}
	if after.AmountOfActiveWinningTickets+after.AmountOfScannedWinningTickets != 2 {
		t.Fatalf("expected ticket total to stay 2, got %d+%d", after.AmountOfActiveWinningTickets, after.AmountOfScannedWinningTickets)
	}
}

func TestScanLuckyTicketCreatesEmptyLedger(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindLuckyTicket, true)
	w.codes(t, campaign, 0, "k1")

	result, err := w.scan(campaign, w.alice, "k1")
	if err != nil {
		t.Fatalf("expected scan to succeed, got %v", err)
	}
	if result.WinningCode {
		t.Fatal("expected no win without a ledger")
	}
	props := w.store.AllProps()
	if len(props) != 1 {
		t.Fatalf("expected the ledger to be created, got %d props", len(props))
	}
	if lt := props[0].(*domain.LuckyTicketProps); lt.AmountOfActiveWinningTickets != 0 || lt.AmountOfScannedWinningTickets != 0 {
		t.Fatalf("expected an empty ledger, got %+v", lt)
	}
}

func TestScanRejections(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindPointCollector, true)
	other := w.campaign(t, domain.KindPointCollector, true)
	w.codes(t, campaign, 5, "mine", "scanned")
	w.codes(t, other, 5, "elsewhere")
	if _, err := w.scan(campaign, w.bob, "scanned"); err != nil {
		t.Fatalf("setup scan: %v", err)
	}
	inactive := w.campaign(t, domain.KindPointCollector, true)
	w.codes(t, inactive, 5, "closed")
	inactiveRow := w.mustCampaign(t, inactive.ID)
	inactiveRow.IsActive = false
	w.store.PutCampaign(*inactiveRow)

	cases := []struct {
		name   string
		caller *domain.Identity
		req    domain.ScanRequest
		want   error
	}{
		{
			name: "not logged in",
			req:  domain.ScanRequest{CompanyID: w.company.ID.String(), CampaignID: campaign.ID.String(), CodeID: "mine"},
			want: domain.ErrUnauthenticated,
		},
		{
			name:   "malformed campaign id",
			caller: w.alice,
			req:    domain.ScanRequest{CompanyID: w.company.ID.String(), CampaignID: "nope", CodeID: "mine"},
			want:   domain.ErrInvalidIdentifier,
		},
		{
			name:   "empty code id",
			caller: w.alice,
			req:    domain.ScanRequest{CompanyID: w.company.ID.String(), CampaignID: campaign.ID.String(), CodeID: "  "},
			want:   domain.ErrInvalidIdentifier,
		},
		{
			name:   "unknown code",
			caller: w.alice,
			req:    domain.ScanRequest{CompanyID: w.company.ID.String(), CampaignID: campaign.ID.String(), CodeID: "missing"},
			want:   domain.ErrNotFound,
		},
		{
			name:   "unknown company",
			caller: w.alice,
			req:    domain.ScanRequest{CompanyID: uuid.NewString(), CampaignID: campaign.ID.String(), CodeID: "mine"},
			want:   domain.ErrNotFound,
		},
		{
			name:   "code of another campaign",
			caller: w.alice,
			req:    domain.ScanRequest{CompanyID: w.company.ID.String(), CampaignID: campaign.ID.String(), CodeID: "elsewhere"},
			want:   domain.ErrCodeMismatch,
		},
		{
			name:   "own code",
			caller: w.owner,
			req:    domain.ScanRequest{CompanyID: w.company.ID.String(), CampaignID: campaign.ID.String(), CodeID: "mine"},
			want:   domain.ErrScannedOwnCode,
		},
		{
			name:   "inactive campaign",
			caller: w.alice,
			req:    domain.ScanRequest{CompanyID: w.company.ID.String(), CampaignID: inactive.ID.String(), CodeID: "closed"},
			want:   domain.ErrCampaignInactive,
		},
		{
			name:   "already scanned",
			caller: w.alice,
			req:    domain.ScanRequest{CompanyID: w.company.ID.String(), CampaignID: campaign.ID.String(), CodeID: "scanned"},
			want:   domain.ErrAlreadyScanned,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := w.svc.Scan(context.Background(), tc.caller, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if code, _ := w.store.FindCode(context.Background(), "mine"); code.IsScanned {
		t.Fatal("expected rejected scans to leave the code unscanned")
	}
	if n := len(w.store.AllProps()); n != 1 {
		t.Fatalf("expected only bob's balance, got %d props", n)
	}
}

func TestScanTwiceRejectsSecondWithoutReward(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindPointCollector, true)
	w.codes(t, campaign, 25, "once")

	if _, err := w.scan(campaign, w.alice, "once"); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	_, err := w.scan(campaign, w.bob, "once")
	if !errors.Is(err, domain.ErrAlreadyScanned) {
		t.Fatalf("expected already scanned, got %v", err)
	}
	if domain.UserMessage(err) != "Code has already been scanned." {
		t.Fatalf("unexpected user message %q", domain.UserMessage(err))
	}
	if n := len(w.store.AllProps()); n != 1 {
		t.Fatalf("expected no balance for bob, got %d props", n)
	}
	assertBalanced(t, w.mustCampaign(t, campaign.ID))
}

func TestConcurrentScansOfOneCode(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindPointCollector, true)
	w.codes(t, campaign, 10, "hot")

	const scanners = 16
	callers := make([]*domain.Identity, scanners)
	for i := range callers {
		id := uuid.New()
		w.store.PutAccount(domain.Account{ID: id, FirstName: "Scanner"})
		callers[i] = &domain.Identity{AccountID: id}
	}

	var wg sync.WaitGroup
	errs := make([]error, scanners)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = w.scan(campaign, callers[i], "hot")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrAlreadyScanned):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful scan, got %d", succeeded)
	}
	if n := len(w.store.AllProps()); n != 1 {
		t.Fatalf("expected exactly one balance, got %d", n)
	}
	c := w.mustCampaign(t, campaign.ID)
	assertBalanced(t, c)
	if c.NumberOfScannedCodes != 1 {
		t.Fatalf("expected one scanned code, got %d", c.NumberOfScannedCodes)
	}
}

func TestScanCommitFailureLeavesNoTrace(t *testing.T) {
	w := newWorld(t)
	campaign := w.campaign(t, domain.KindPointCollector, true)
	w.codes(t, campaign, 10, "flaky")
	w.store.FailNextCommit(domain.ErrTransactionConflict)

	_, err := w.scan(campaign, w.alice, "flaky")
	if !errors.Is(err, domain.ErrTransactionConflict) || !domain.IsRetryable(err) {
		t.Fatalf("expected retryable conflict, got %v", err)
	}
	if code, _ := w.store.FindCode(context.Background(), "flaky"); code.IsScanned {
		t.Fatal("expected code to stay unscanned")
	}
	if n := len(w.store.AllProps()); n != 0 {
		t.Fatalf("expected no props, got %d", n)
	}
	if keys := w.publisher.routingKeys(); len(keys) != 0 {
		t.Fatalf("expected no events for a failed commit, got %v", keys)
	}

	if _, err := w.scan(campaign, w.alice, "flaky"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestScanRewardFailureRollsBackCode(t *testing.T) {
	cases := []struct {
		name    string
		points  int
		balance *int
	}{
		{name: "negative award", points: -5},
		{name: "balance overflow", points: 1, balance: intPtr(domain.MaxPoints)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWorld(t)
			campaign := w.campaign(t, domain.KindPointCollector, true)
			w.codes(t, campaign, tc.points, "bad")
			var existing *domain.PointCollectorProps
			if tc.balance != nil {
				existing = &domain.PointCollectorProps{ID: uuid.New(), CampaignID: campaign.ID, AccountID: w.alice.AccountID, CollectedPoints: *tc.balance}
				w.store.PutProps(existing)
			}
			before := w.mustCampaign(t, campaign.ID)

			_, err := w.scan(campaign, w.alice, "bad")
			if !errors.Is(err, domain.ErrInvalidAmount) {
				t.Fatalf("expected invalid amount, got %v", err)
			}
			if code, _ := w.store.FindCode(context.Background(), "bad"); code.IsScanned || code.ScannedBy != nil {
				t.Fatalf("expected code to stay unscanned, got %+v", code)
			}
			after := w.mustCampaign(t, campaign.ID)
			if after.NumberOfActiveCodes != before.NumberOfActiveCodes || after.NumberOfScannedCodes != before.NumberOfScannedCodes {
				t.Fatalf("expected counters unchanged, got active=%d scanned=%d", after.NumberOfActiveCodes, after.NumberOfScannedCodes)
			}
			assertBalanced(t, after)

			if existing == nil {
				if n := len(w.store.AllProps()); n != 0 {
					t.Fatalf("expected no props, got %d", n)
				}
			} else if got := w.store.Props(existing.ID).(*domain.PointCollectorProps).CollectedPoints; got != *tc.balance {
				t.Fatalf("expected balance %d, got %d", *tc.balance, got)
			}
			if keys := w.publisher.routingKeys(); len(keys) != 0 {
				t.Fatalf("expected no events, got %v", keys)
			}
		})
	}
}

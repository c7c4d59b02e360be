package store

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/loyalty/rewards-service/internal/domain"
)

func TestLuckyTicketRowKeepsHiddenActiveSet(t *testing.T) {
	winner := uuid.New()
	lt := &domain.LuckyTicketProps{
		ID:                   uuid.New(),
		CampaignID:           uuid.New(),
		ActiveWinningTickets: []string{"a", "b", "c"},
	}
	if !lt.ClaimWinningCode("b", winner) {
		t.Fatal("expected b to be a winning code")
	}

	row, err := toPropsRow(lt)
	if err != nil {
		t.Fatalf("toPropsRow: %v", err)
	}
	if row.accountID != nil {
		t.Fatalf("lucky ticket ledger must not carry a participant, got %v", row.accountID)
	}
	if !strings.Contains(string(row.scannedWinningTickets), winner.String()) {
		t.Fatalf("expected scanned tickets JSON to contain winner, got %s", row.scannedWinningTickets)
	}

	back, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain: %v", err)
	}
	got, ok := back.(*domain.LuckyTicketProps)
	if !ok {
		t.Fatalf("expected *LuckyTicketProps, got %T", back)
	}
	if got.AmountOfActiveWinningTickets != 2 || got.AmountOfScannedWinningTickets != 1 {
		t.Fatalf("expected counts 2/1, got %d/%d", got.AmountOfActiveWinningTickets, got.AmountOfScannedWinningTickets)
	}
	if !got.IsWinningCode("b") || got.ScannedWinningTickets[0].WinningAccount != winner {
		t.Fatalf("unexpected scanned tickets: %+v", got.ScannedWinningTickets)
	}
}

func TestPropsRowRejectsUnknownKind(t *testing.T) {
	row := propsRow{id: uuid.New(), campaignID: uuid.New(), kind: "Scratch Card"}
	if _, err := row.toDomain(); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}

func TestQualifiedPropsColumns(t *testing.T) {
	got := qualifiedPropsColumns("p")
	if !strings.HasPrefix(got, "p.id, p.campaign_id, p.kind") {
		t.Fatalf("unexpected prefix: %s", got)
	}
	if strings.Count(got, "p.") != strings.Count(propsColumns, ",")+1 {
		t.Fatalf("expected every column qualified, got %s", got)
	}
}

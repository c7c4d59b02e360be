package domain

import "github.com/google/uuid"

// Identity is the authenticated caller as reported by the session provider.
type Identity struct {
	AccountID         uuid.UUID
	IsBusinessAccount bool
}

// ScanRequest carries the path parameters of a scan. Ids arrive as raw strings and are
// validated by the scan processor.
type ScanRequest struct {
	CompanyID  string
	CampaignID string
	CodeID     string
}

// ScanResult is returned after a successful scan.
type ScanResult struct {
	Message      string       `json:"message"`
	CampaignKind CampaignKind `json:"campaign_type"`
	WinningCode  bool         `json:"winning_code,omitempty"`
}

// DrawRequest is the body of a giveaway draw.
type DrawRequest struct {
	CampaignID                  string `json:"campaign_id"`
	NumberOfDraws               int    `json:"number_of_draws"`
	DeactivateCampaignAfterDraw bool   `json:"deactivate_campaign_after_draw"`
}

// DrawResult lists the CampaignProps marked as winners.
type DrawResult struct {
	WinnerPropsIDs   []uuid.UUID `json:"winner_props_ids"`
	WinnerAccountIDs []uuid.UUID `json:"winner_account_ids"`
	CampaignIsActive bool        `json:"campaign_is_active"`
}

// RedeemRequest is the body of a redemption. AmountOfPoints is only read for point collectors.
type RedeemRequest struct {
	CampaignPropsID      string `json:"campaign_props_id"`
	ParticipantAccountID string `json:"participant_account_id"`
	AmountOfPoints       *int   `json:"amount_of_points,omitempty"`
}

// CreateCampaignRequest is the body of a campaign creation.
type CreateCampaignRequest struct {
	Name                  string `json:"name"`
	CampaignTypeID        string `json:"campaign_type_id"`
	AllowsMultipleEntries *bool  `json:"allows_multiple_entries,omitempty"`
}

// GenerateCodesRequest is the body of a bulk code generation.
type GenerateCodesRequest struct {
	CampaignID           string `json:"campaign_id"`
	Amount               int    `json:"amount"`
	AmountOfWinningCodes int    `json:"amount_of_winning_codes,omitempty"`
	PointRewardAmount    int    `json:"point_reward_amount,omitempty"`
}

// GenerateCodesResult reports the generated code ids.
type GenerateCodesResult struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	CodeIDs    []string  `json:"code_ids"`
	ScanURLs   []string  `json:"scan_urls"`
}

// CampaignDetails is a campaign with the statistics shown on its dashboard page.
type CampaignDetails struct {
	Campaign
	CampaignType                CampaignType    `json:"campaign_type_details"`
	CampaignProps               []CampaignProps `json:"campaign_props"`
	NumberOfUniquePeopleReached int             `json:"number_of_unique_people_reached"`
	WinningEntriesCount         int             `json:"winning_entries_count"`
	RedeemedEntriesCount        int             `json:"redeemed_entries_count"`
}

// CampaignParticipation lists a participant's reward state in a host company's campaigns.
type CampaignParticipation struct {
	AccountName           string          `json:"account_name"`
	CampaignParticipation []CampaignProps `json:"campaign_participation"`
}

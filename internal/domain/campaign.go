/**
 * @description
 * This file defines the core entities of the rewards-service: accounts, companies,
 * campaign types, campaigns, codes and download links. These structs are shared by the
 * store, application and API layers.
 *
 * @dependencies
 * - time: Standard Go library.
 * - github.com/google/uuid: For entity identifiers.
 */

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CampaignKind is the discriminator of a campaign's reward program.
type CampaignKind string

const (
	KindGiveaway       CampaignKind = "Giveaway"
	KindLuckyTicket    CampaignKind = "Lucky Ticket"
	KindPointCollector CampaignKind = "Point Collector"
)

// Valid reports whether k is one of the known campaign kinds.
func (k CampaignKind) Valid() bool {
	switch k {
	case KindGiveaway, KindLuckyTicket, KindPointCollector:
		return true
	}
	return false
}

// Account is an identity record. Business accounts own a company, consumer accounts scan codes.
type Account struct {
	ID                uuid.UUID  `json:"id"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	AvatarURL         string     `json:"avatar_url"`
	IsBusinessAccount bool       `json:"is_business_account"`
	CompanyID         *uuid.UUID `json:"company_id,omitempty"`
}

// DisplayName returns the first name followed by the last name's initial, e.g. "Ana K.".
func (a Account) DisplayName() string {
	last := strings.TrimSpace(a.LastName)
	if last == "" {
		return strings.TrimSpace(a.FirstName)
	}
	return fmt.Sprintf("%s %s.", strings.TrimSpace(a.FirstName), string([]rune(last)[:1]))
}

// Company is owned by one or more business accounts.
type Company struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	Website    string      `json:"website,omitempty"`
	LogoURL    string      `json:"logo_url"`
	AccountIDs []uuid.UUID `json:"-"`
}

// HasAccount reports whether accountID is one of the company's linked accounts.
func (c Company) HasAccount(accountID uuid.UUID) bool {
	for _, id := range c.AccountIDs {
		if id == accountID {
			return true
		}
	}
	return false
}

// CampaignType is immutable reference data describing a campaign kind.
type CampaignType struct {
	ID          uuid.UUID    `json:"id"`
	Title       CampaignKind `json:"title"`
	Description string       `json:"description"`
}

// Campaign is a reward program run by a company.
//
// The three code counters are maintained incrementally and must always satisfy
// NumberOfActiveCodes + NumberOfScannedCodes == TotalNumberOfCodes.
type Campaign struct {
	ID                    uuid.UUID    `json:"id"`
	Name                  string       `json:"name"`
	IsActive              bool         `json:"is_active"`
	IsExportingCodes      bool         `json:"is_exporting_codes"`
	CampaignTypeID        uuid.UUID    `json:"campaign_type_id"`
	Kind                  CampaignKind `json:"campaign_type"`
	CompanyID             uuid.UUID    `json:"company_id"`
	TotalNumberOfCodes    int          `json:"total_number_of_codes"`
	NumberOfActiveCodes   int          `json:"number_of_active_codes"`
	NumberOfScannedCodes  int          `json:"number_of_scanned_codes"`
	AllowsMultipleEntries bool         `json:"allows_multiple_entries"`
	DownloadLinkID        *uuid.UUID   `json:"download_link_id,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
}

// CountersBalanced reports whether the code counters are consistent.
func (c Campaign) CountersBalanced() bool {
	return c.NumberOfActiveCodes >= 0 &&
		c.NumberOfScannedCodes >= 0 &&
		c.NumberOfActiveCodes+c.NumberOfScannedCodes == c.TotalNumberOfCodes
}

// Code is a single scannable token. Its ID is a short random string, not a sequence.
type Code struct {
	ID          string     `json:"id"`
	IsScanned   bool       `json:"is_scanned"`
	Points      int        `json:"points,omitempty"`
	DateScanned *time.Time `json:"date_scanned,omitempty"`
	ScannedBy   *uuid.UUID `json:"-"`
	CompanyID   uuid.UUID  `json:"company_id"`
	CampaignID  uuid.UUID  `json:"campaign_id"`
}

// ScanPath returns the path a QR code for this code points to.
func (c Code) ScanPath() string {
	return fmt.Sprintf("/codes/scan/%s/%s/%s", c.CompanyID, c.CampaignID, c.ID)
}

// DownloadLink references an exported codes archive. It expires after a fixed TTL.
type DownloadLink struct {
	ID        uuid.UUID `json:"id"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultDownloadLinkTTL is 13 days and 12 hours.
const DefaultDownloadLinkTTL = 324 * time.Hour

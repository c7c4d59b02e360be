/**
 * @description
 * This file provides the PostgreSQL implementation of the `Store` interface.
 * It contains the SQL for accounts, companies, campaigns, codes, download links and the
 * transaction boundary used by every reward mutation.
 *
 * @dependencies
 * - context, embed, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loyalty/rewards-service/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// querier is the subset of pgx shared by the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is a concrete implementation of the Store interface for PostgreSQL.
type PostgresRepository struct {
	reader
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{reader: reader{q: db}, db: db}
}

// Migrate applies the idempotent schema, including the campaign type reference rows.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside a READ COMMITTED transaction. Invariants are re-checked against rows
// locked with FOR UPDATE, so concurrent writers serialize on the rows they touch.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	pgxTx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = pgxTx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = pgxTx.Rollback(ctx)
		}
	}()

	if err = fn(&postgresTx{reader: reader{q: pgxTx}, tx: pgxTx}); err != nil {
		return mapError(err)
	}
	if err = pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

// ListCampaignTypes returns the campaign type reference rows.
func (r *PostgresRepository) ListCampaignTypes(ctx context.Context) ([]domain.CampaignType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title, description FROM campaign_types ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make([]domain.CampaignType, 0, 3)
	for rows.Next() {
		var (
			ct    domain.CampaignType
			title string
		)
		if err := rows.Scan(&ct.ID, &title, &ct.Description); err != nil {
			return nil, err
		}
		ct.Title = domain.CampaignKind(title)
		types = append(types, ct)
	}
	return types, rows.Err()
}

// ListCampaignProps returns every props row of a campaign.
func (r *PostgresRepository) ListCampaignProps(ctx context.Context, campaignID uuid.UUID) ([]domain.CampaignProps, error) {
	query := `SELECT ` + propsColumns + ` FROM campaign_props WHERE campaign_id = $1 ORDER BY created_at, id`
	return queryProps(ctx, r.db, query, campaignID)
}

// CountDistinctScanners returns how many accounts scanned at least one code of the campaign.
func (r *PostgresRepository) CountDistinctScanners(ctx context.Context, campaignID uuid.UUID) (int, error) {
	var n int
	query := `SELECT COUNT(DISTINCT scanned_by) FROM codes WHERE campaign_id = $1 AND is_scanned`
	if err := r.db.QueryRow(ctx, query, campaignID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListParticipation returns the account's props in the company's campaigns.
func (r *PostgresRepository) ListParticipation(ctx context.Context, companyID uuid.UUID, accountID uuid.UUID) ([]domain.CampaignProps, error) {
	query := `
		SELECT ` + qualifiedPropsColumns("p") + `
		FROM campaign_props p
		JOIN campaigns c ON c.id = p.campaign_id
		WHERE c.company_id = $1
		  AND (
			p.account_id = $2
			OR (p.kind = 'Lucky Ticket'
				AND p.scanned_winning_tickets @> jsonb_build_array(jsonb_build_object('winning_account', $2::text)))
		  )
		ORDER BY c.created_at DESC, p.created_at`
	return queryProps(ctx, r.db, query, companyID, accountID)
}

// DeleteExpiredDownloadLinks removes download links created before the cutoff.
func (r *PostgresRepository) DeleteExpiredDownloadLinks(ctx context.Context, createdBefore time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM download_links WHERE created_at < $1`, createdBefore)
	if err != nil {
		if isUndefinedTableError(err) {
			return 0, nil
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// reader implements the Reader lookups over either the pool or a transaction.
type reader struct {
	q querier
}

const accountColumns = `id, first_name, last_name, email, password_hash, avatar_url, is_business_account, company_id`

func (r reader) FindAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var a domain.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	err := r.q.QueryRow(ctx, query, accountID).Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash, &a.AvatarURL, &a.IsBusinessAccount, &a.CompanyID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (r reader) FindCompany(ctx context.Context, companyID uuid.UUID) (*domain.Company, error) {
	var (
		c          domain.Company
		accountIDs []string
	)
	query := `
		SELECT c.id, c.name, c.website, c.logo_url,
		       COALESCE(array_agg(a.id::text) FILTER (WHERE a.id IS NOT NULL), '{}')
		FROM companies c
		LEFT JOIN accounts a ON a.company_id = c.id
		WHERE c.id = $1
		GROUP BY c.id`
	if err := r.q.QueryRow(ctx, query, companyID).Scan(&c.ID, &c.Name, &c.Website, &c.LogoURL, &accountIDs); err != nil {
		return nil, mapError(err)
	}
	c.AccountIDs = make([]uuid.UUID, 0, len(accountIDs))
	for _, raw := range accountIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("company %s has malformed account id %q: %w", companyID, raw, err)
		}
		c.AccountIDs = append(c.AccountIDs, id)
	}
	return &c, nil
}

const campaignColumns = `
	c.id, c.name, c.is_active, c.is_exporting_codes, c.campaign_type_id, t.title, c.company_id,
	c.total_number_of_codes, c.number_of_active_codes, c.number_of_scanned_codes,
	c.allows_multiple_entries, c.download_link_id, c.created_at`

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var (
		c    domain.Campaign
		kind string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.IsActive, &c.IsExportingCodes, &c.CampaignTypeID, &kind, &c.CompanyID,
		&c.TotalNumberOfCodes, &c.NumberOfActiveCodes, &c.NumberOfScannedCodes,
		&c.AllowsMultipleEntries, &c.DownloadLinkID, &c.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	c.Kind = domain.CampaignKind(kind)
	return &c, nil
}

func (r reader) FindCampaign(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns c JOIN campaign_types t ON t.id = c.campaign_type_id
		WHERE c.id = $1`
	return scanCampaign(r.q.QueryRow(ctx, query, campaignID))
}

func (r reader) FindCampaignType(ctx context.Context, campaignTypeID uuid.UUID) (*domain.CampaignType, error) {
	var (
		ct    domain.CampaignType
		title string
	)
	err := r.q.QueryRow(ctx, `SELECT id, title, description FROM campaign_types WHERE id = $1`, campaignTypeID).
		Scan(&ct.ID, &title, &ct.Description)
	if err != nil {
		return nil, mapError(err)
	}
	ct.Title = domain.CampaignKind(title)
	return &ct, nil
}

const codeColumns = `id, is_scanned, points, date_scanned, scanned_by, company_id, campaign_id`

func scanCode(row pgx.Row) (*domain.Code, error) {
	var c domain.Code
	if err := row.Scan(&c.ID, &c.IsScanned, &c.Points, &c.DateScanned, &c.ScannedBy, &c.CompanyID, &c.CampaignID); err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (r reader) FindCode(ctx context.Context, codeID string) (*domain.Code, error) {
	return scanCode(r.q.QueryRow(ctx, `SELECT `+codeColumns+` FROM codes WHERE id = $1`, codeID))
}

// postgresTx implements Tx over an open pgx transaction.
type postgresTx struct {
	reader
	tx pgx.Tx
}

func (t *postgresTx) LockCode(ctx context.Context, codeID string) (*domain.Code, error) {
	return scanCode(t.tx.QueryRow(ctx, `SELECT `+codeColumns+` FROM codes WHERE id = $1 FOR UPDATE`, codeID))
}

func (t *postgresTx) LockCampaign(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns c JOIN campaign_types t ON t.id = c.campaign_type_id
		WHERE c.id = $1
		FOR UPDATE OF c`
	return scanCampaign(t.tx.QueryRow(ctx, query, campaignID))
}

func (t *postgresTx) LockProps(ctx context.Context, propsID uuid.UUID) (domain.CampaignProps, error) {
	query := `SELECT ` + propsColumns + ` FROM campaign_props WHERE id = $1 FOR UPDATE`
	return queryOneProps(ctx, t.tx, query, propsID)
}

// MarkCodeScanned flips the code and moves one unit from the campaign's active counter to its
// scanned counter in a single statement. The is_scanned guard makes a concurrent second scan
// affect zero rows.
func (t *postgresTx) MarkCodeScanned(ctx context.Context, codeID string, accountID uuid.UUID, at time.Time) error {
	query := `
		WITH scanned AS (
			UPDATE codes
			SET is_scanned = TRUE, scanned_by = $2, date_scanned = $3
			WHERE id = $1 AND is_scanned = FALSE
			RETURNING campaign_id
		)
		UPDATE campaigns c
		SET number_of_active_codes = c.number_of_active_codes - 1,
		    number_of_scanned_codes = c.number_of_scanned_codes + 1
		FROM scanned
		WHERE c.id = scanned.campaign_id`
	tag, err := t.tx.Exec(ctx, query, codeID, accountID, at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyScanned
	}
	return nil
}

// AddCodes bulk-loads codes with COPY and grows the campaign counters by the same amount.
func (t *postgresTx) AddCodes(ctx context.Context, campaignID uuid.UUID, codes []domain.Code) error {
	if len(codes) == 0 {
		return nil
	}
	copied, err := t.tx.CopyFrom(
		ctx,
		pgx.Identifier{"codes"},
		[]string{"id", "is_scanned", "points", "company_id", "campaign_id"},
		pgx.CopyFromSlice(len(codes), func(i int) ([]any, error) {
			c := codes[i]
			if c.CampaignID != campaignID {
				return nil, fmt.Errorf("code %s belongs to campaign %s: %w", c.ID, c.CampaignID, domain.ErrCodeMismatch)
			}
			return []any{c.ID, false, c.Points, c.CompanyID, c.CampaignID}, nil
		}),
	)
	if err != nil {
		return mapError(err)
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE campaigns
		SET total_number_of_codes = total_number_of_codes + $2,
		    number_of_active_codes = number_of_active_codes + $2
		WHERE id = $1`, campaignID, copied)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *postgresTx) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, name, is_active, is_exporting_codes, campaign_type_id, company_id,
			total_number_of_codes, number_of_active_codes, number_of_scanned_codes, allows_multiple_entries
		) VALUES ($1, $2, $3, FALSE, $4, $5, 0, 0, 0, $6)
		RETURNING created_at`
	err := t.tx.QueryRow(ctx, query, c.ID, c.Name, c.IsActive, c.CampaignTypeID, c.CompanyID, c.AllowsMultipleEntries).
		Scan(&c.CreatedAt)
	return mapError(err)
}

func (t *postgresTx) SetCampaignActive(ctx context.Context, campaignID uuid.UUID, isActive bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE campaigns SET is_active = $2 WHERE id = $1`, campaignID, isActive)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *postgresTx) FindOpenGiveawayProps(ctx context.Context, campaignID uuid.UUID, accountID uuid.UUID) (*domain.GiveawayProps, error) {
	query := `SELECT ` + propsColumns + `
		FROM campaign_props
		WHERE campaign_id = $1 AND account_id = $2 AND kind = 'Giveaway'
		  AND NOT is_winner AND NOT is_redeemed
		FOR UPDATE`
	props, err := queryOneProps(ctx, t.tx, query, campaignID, accountID)
	if err != nil {
		return nil, err
	}
	return asGiveaway(props)
}

func (t *postgresTx) HasGiveawayEntries(ctx context.Context, campaignID uuid.UUID, accountID uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM campaign_props
			WHERE campaign_id = $1 AND account_id = $2 AND kind = 'Giveaway' AND giveaway_entries > 0
		)`
	if err := t.tx.QueryRow(ctx, query, campaignID, accountID).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (t *postgresTx) FindPointCollectorProps(ctx context.Context, campaignID uuid.UUID, accountID uuid.UUID) (*domain.PointCollectorProps, error) {
	query := `SELECT ` + propsColumns + `
		FROM campaign_props
		WHERE campaign_id = $1 AND account_id = $2 AND kind = 'Point Collector'
		FOR UPDATE`
	props, err := queryOneProps(ctx, t.tx, query, campaignID, accountID)
	if err != nil {
		return nil, err
	}
	pc, ok := props.(*domain.PointCollectorProps)
	if !ok {
		return nil, fmt.Errorf("props %s is %s: %w", props.PropsID(), props.Kind(), domain.ErrWrongCampaignType)
	}
	return pc, nil
}

func (t *postgresTx) FindLuckyTicketProps(ctx context.Context, campaignID uuid.UUID) (*domain.LuckyTicketProps, error) {
	query := `SELECT ` + propsColumns + `
		FROM campaign_props
		WHERE campaign_id = $1 AND kind = 'Lucky Ticket'
		FOR UPDATE`
	props, err := queryOneProps(ctx, t.tx, query, campaignID)
	if err != nil {
		return nil, err
	}
	lt, ok := props.(*domain.LuckyTicketProps)
	if !ok {
		return nil, fmt.Errorf("props %s is %s: %w", props.PropsID(), props.Kind(), domain.ErrWrongCampaignType)
	}
	return lt, nil
}

func (t *postgresTx) ListEligibleGiveawayProps(ctx context.Context, campaignID uuid.UUID) ([]*domain.GiveawayProps, error) {
	query := `SELECT ` + propsColumns + `
		FROM campaign_props
		WHERE campaign_id = $1 AND kind = 'Giveaway'
		  AND NOT is_winner AND NOT is_redeemed AND giveaway_entries > 0
		ORDER BY id
		FOR UPDATE`
	all, err := queryProps(ctx, t.tx, query, campaignID)
	if err != nil {
		return nil, err
	}
	eligible := make([]*domain.GiveawayProps, 0, len(all))
	for _, p := range all {
		g, err := asGiveaway(p)
		if err != nil {
			return nil, err
		}
		eligible = append(eligible, g)
	}
	return eligible, nil
}

func (t *postgresTx) MarkGiveawayWinners(ctx context.Context, campaignID uuid.UUID, propsIDs []uuid.UUID) (int64, error) {
	if len(propsIDs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(propsIDs))
	for i, id := range propsIDs {
		ids[i] = id.String()
	}
	query := `
		UPDATE campaign_props
		SET is_winner = TRUE, updated_at = NOW()
		WHERE campaign_id = $1 AND id = ANY($2::uuid[]) AND kind = 'Giveaway'
		  AND NOT is_winner AND NOT is_redeemed AND giveaway_entries > 0`
	tag, err := t.tx.Exec(ctx, query, campaignID, ids)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (t *postgresTx) InsertProps(ctx context.Context, props domain.CampaignProps) error {
	row, err := toPropsRow(props)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO campaign_props (
			id, campaign_id, kind, account_id, giveaway_entries, is_winner, is_redeemed, redeem_date,
			collected_points, active_winning_tickets, scanned_winning_tickets,
			amount_of_active_winning_tickets, amount_of_scanned_winning_tickets
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13)`
	_, err = t.tx.Exec(ctx, query, row.args()...)
	return mapError(err)
}

func (t *postgresTx) UpdateProps(ctx context.Context, props domain.CampaignProps) error {
	row, err := toPropsRow(props)
	if err != nil {
		return err
	}
	query := `
		UPDATE campaign_props
		SET giveaway_entries = $5, is_winner = $6, is_redeemed = $7, redeem_date = $8,
		    collected_points = $9, active_winning_tickets = $10, scanned_winning_tickets = $11::jsonb,
		    amount_of_active_winning_tickets = $12, amount_of_scanned_winning_tickets = $13,
		    updated_at = NOW()
		WHERE id = $1 AND campaign_id = $2 AND kind = $3 AND account_id IS NOT DISTINCT FROM $4`
	tag, err := t.tx.Exec(ctx, query, row.args()...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func asGiveaway(p domain.CampaignProps) (*domain.GiveawayProps, error) {
	g, ok := p.(*domain.GiveawayProps)
	if !ok {
		return nil, fmt.Errorf("props %s is %s: %w", p.PropsID(), p.Kind(), domain.ErrWrongCampaignType)
	}
	return g, nil
}

func queryOneProps(ctx context.Context, q querier, query string, args ...any) (domain.CampaignProps, error) {
	var row propsRow
	if err := row.scan(q.QueryRow(ctx, query, args...)); err != nil {
		return nil, mapError(err)
	}
	return row.toDomain()
}

func queryProps(ctx context.Context, q querier, query string, args ...any) ([]domain.CampaignProps, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []domain.CampaignProps
	for rows.Next() {
		var row propsRow
		if err := row.scan(rows); err != nil {
			return nil, err
		}
		props, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, props)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func qualifiedPropsColumns(alias string) string {
	cols := strings.Split(propsColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

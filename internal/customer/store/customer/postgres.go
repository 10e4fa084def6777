package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"customerhub/internal/customer/cardvault"
	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	"customerhub/pkg/platform/sentinel"
	txcontext "customerhub/pkg/platform/tx"
)

const (
	uniqueViolation       = "23505"
	emailConstraint       = "customers_email_key"
	identityConstraint    = "customers_identity_number_key"
	customerColumns       = `id, name, surname, email, phone, birth_date, identity_number, street, city, postal_code, province, country, status, block_reason, requires_manual_review, version, created_at, updated_at`
	cardColumns           = `id, customer_id, network, key_id, pan_ciphertext, exp_year, exp_month, validated, rejection_reason, created_at, updated_at`
	selectCustomersPrefix = `SELECT ` + customerColumns + ` FROM customers`
)

// PostgresStore persists customers and their cards. Card numbers are sealed
// with the vault before they reach the database; the card id is the AAD, so a
// ciphertext cannot be moved to another row.
type PostgresStore struct {
	db    *sql.DB
	vault *cardvault.Vault
	tx    *txcontext.Postgres
}

func NewPostgres(db *sql.DB, vault *cardvault.Vault) *PostgresStore {
	return &PostgresStore{db: db, vault: vault, tx: txcontext.NewPostgres(db)}
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Customer) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exec := txcontext.ExecutorFor(ctx, s.db)
		pd, addr := c.PersonalData(), c.Address()
		_, err := exec.ExecContext(ctx, `
			INSERT INTO customers (`+customerColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1, $16, $17)
		`,
			uuid.UUID(c.ID()),
			pd.Name(), pd.Surname(), pd.Email(), pd.Phone(), pd.BirthDate(), pd.IdentityNumber(),
			addr.Street(), addr.City(), addr.PostalCode(), addr.Province(), addr.Country(),
			string(c.Status()), c.BlockReason(), c.RequiresManualReview(),
			c.CreatedAt(), c.UpdatedAt(),
		)
		if err != nil {
			return translateWriteErr(err, "insert customer")
		}
		if err := s.upsertCards(ctx, exec, c); err != nil {
			return err
		}
		c.SetVersion(1)
		return nil
	})
}

// Update writes the aggregate when the stored version still matches, then
// syncs the card rows: cards present are upserted and cards gone are deleted.
func (s *PostgresStore) Update(ctx context.Context, c *models.Customer) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exec := txcontext.ExecutorFor(ctx, s.db)
		pd, addr := c.PersonalData(), c.Address()
		res, err := exec.ExecContext(ctx, `
			UPDATE customers SET
				name = $3, surname = $4, email = $5, phone = $6,
				street = $7, city = $8, postal_code = $9, province = $10, country = $11,
				status = $12, block_reason = $13, requires_manual_review = $14,
				updated_at = $15, version = version + 1
			WHERE id = $1 AND version = $2
		`,
			uuid.UUID(c.ID()), c.Version(),
			pd.Name(), pd.Surname(), pd.Email(), pd.Phone(),
			addr.Street(), addr.City(), addr.PostalCode(), addr.Province(), addr.Country(),
			string(c.Status()), c.BlockReason(), c.RequiresManualReview(),
			c.UpdatedAt(),
		)
		if err != nil {
			return translateWriteErr(err, "update customer")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update customer rows affected: %w", err)
		}
		if affected == 0 {
			return s.missOrConflict(ctx, exec, c)
		}

		keep := make([]string, 0, c.CardCount())
		for _, card := range c.Cards() {
			keep = append(keep, card.ID().String())
		}
		if _, err := exec.ExecContext(ctx, `
			DELETE FROM customer_cards WHERE customer_id = $1 AND NOT (id = ANY($2::uuid[]))
		`, uuid.UUID(c.ID()), pq.Array(keep)); err != nil {
			return fmt.Errorf("delete removed cards: %w", err)
		}
		if err := s.upsertCards(ctx, exec, c); err != nil {
			return err
		}
		c.SetVersion(c.Version() + 1)
		return nil
	})
}

func (s *PostgresStore) missOrConflict(ctx context.Context, exec txcontext.Executor, c *models.Customer) error {
	var stored int64
	err := exec.QueryRowContext(ctx, `SELECT version FROM customers WHERE id = $1`, uuid.UUID(c.ID())).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("customer %s: %w", c.ID(), sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read customer version: %w", err)
	}
	return fmt.Errorf("customer %s at version %d, have %d: %w", c.ID(), stored, c.Version(), sentinel.ErrConflict)
}

func (s *PostgresStore) upsertCards(ctx context.Context, exec txcontext.Executor, c *models.Customer) error {
	for position, card := range c.Cards() {
		sealed, err := s.vault.Seal(card.Number().Reveal(), cardAAD(card.ID()))
		if err != nil {
			return fmt.Errorf("seal card number: %w", err)
		}
		exp := card.Expiration()
		_, err = exec.ExecContext(ctx, `
			INSERT INTO customer_cards (`+cardColumns+`, bin, last_four, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO UPDATE SET
				network = EXCLUDED.network,
				key_id = EXCLUDED.key_id,
				pan_ciphertext = EXCLUDED.pan_ciphertext,
				exp_year = EXCLUDED.exp_year,
				exp_month = EXCLUDED.exp_month,
				validated = EXCLUDED.validated,
				rejection_reason = EXCLUDED.rejection_reason,
				updated_at = EXCLUDED.updated_at,
				bin = EXCLUDED.bin,
				last_four = EXCLUDED.last_four,
				position = EXCLUDED.position
		`,
			uuid.UUID(card.ID()), uuid.UUID(c.ID()), card.Network().Name,
			sealed.KeyID, sealed.Ciphertext,
			exp.Year, int(exp.Month),
			card.Validated(), card.RejectionReason(),
			card.CreatedAt(), card.UpdatedAt(),
			card.Number().BIN(), card.Number().LastFour(), position,
		)
		if err != nil {
			return translateWriteErr(err, "upsert card")
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error) {
	return s.findOne(ctx, "id = $1", uuid.UUID(customerID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return s.findOne(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (s *PostgresStore) FindByIdentityNumber(ctx context.Context, identityNumber string) (*models.Customer, error) {
	return s.findOne(ctx, "identity_number = $1", strings.ToUpper(strings.TrimSpace(identityNumber)))
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Customer, error) {
	filter.Normalize()
	exec := txcontext.ExecutorFor(ctx, s.db)
	rows, err := exec.QueryContext(ctx, selectCustomersPrefix+`
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var rowsOut []customerRow
	for rows.Next() {
		r, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		rowsOut = append(rowsOut, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return s.assemble(ctx, exec, rowsOut)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Customer, error) {
	exec := txcontext.ExecutorFor(ctx, s.db)
	lock := ""
	if _, inTx := txcontext.From(ctx); inTx {
		lock = " FOR UPDATE"
	}
	row, err := scanCustomer(exec.QueryRowContext(ctx, selectCustomersPrefix+" WHERE "+where+lock, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	customers, err := s.assemble(ctx, exec, []customerRow{row})
	if err != nil {
		return nil, err
	}
	return customers[0], nil
}

// assemble loads the cards of every row in one query and rebuilds the aggregates.
func (s *PostgresStore) assemble(ctx context.Context, exec txcontext.Executor, rows []customerRow) ([]*models.Customer, error) {
	out := make([]*models.Customer, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = uuid.UUID(r.id).String()
	}
	cards, err := s.loadCards(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		status, err := models.ParseStatus(r.status)
		if err != nil {
			return nil, fmt.Errorf("customer %s: %w", r.id, err)
		}
		out = append(out, models.ReconstructCustomer(
			r.id,
			models.ReconstructPersonalData(r.name, r.surname, r.email, r.phone, r.birthDate, r.identityNumber),
			models.ReconstructAddress(r.street, r.city, r.postalCode, r.province, r.country),
			cards[r.id],
			status,
			r.blockReason,
			r.requiresManualReview,
			r.version,
			r.createdAt,
			r.updatedAt,
		))
	}
	return out, nil
}

func (s *PostgresStore) loadCards(ctx context.Context, exec txcontext.Executor, customerIDs []string) (map[id.CustomerID][]*models.Card, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM customer_cards
		WHERE customer_id = ANY($1::uuid[])
		ORDER BY customer_id, position, created_at
	`, pq.Array(customerIDs))
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	out := make(map[id.CustomerID][]*models.Card, len(customerIDs))
	for rows.Next() {
		var (
			cardID, owner       uuid.UUID
			network, keyID      string
			ciphertext          []byte
			expYear, expMonth   int
			validated           bool
			rejection           string
			createdAt, updateAt time.Time
		)
		if err := rows.Scan(&cardID, &owner, &network, &keyID, &ciphertext, &expYear, &expMonth,
			&validated, &rejection, &createdAt, &updateAt); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		pan, err := s.vault.Open(cardvault.Sealed{KeyID: keyID, Ciphertext: ciphertext}, cardAAD(id.CardID(cardID)))
		if err != nil {
			return nil, fmt.Errorf("open card %s: %w", cardID, err)
		}
		net, err := models.ParseCardNetwork(network)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", cardID, err)
		}
		card := models.ReconstructCard(
			id.CardID(cardID),
			id.CustomerID(owner),
			models.ReconstructCardNumber(pan),
			net,
			models.YearMonth{Year: expYear, Month: time.Month(expMonth)},
			validated,
			rejection,
			createdAt,
			updateAt,
		)
		out[id.CustomerID(owner)] = append(out[id.CustomerID(owner)], card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return out, nil
}

type customerRow struct {
	id                   id.CustomerID
	name, surname        string
	email, phone         string
	birthDate            time.Time
	identityNumber       string
	street, city         string
	postalCode, province string
	country              string
	status, blockReason  string
	requiresManualReview bool
	version              int64
	createdAt, updatedAt time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (customerRow, error) {
	var (
		r   customerRow
		cid uuid.UUID
	)
	err := row.Scan(&cid, &r.name, &r.surname, &r.email, &r.phone, &r.birthDate, &r.identityNumber,
		&r.street, &r.city, &r.postalCode, &r.province, &r.country,
		&r.status, &r.blockReason, &r.requiresManualReview, &r.version, &r.createdAt, &r.updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("scan customer: %w", err)
	}
	r.id = id.CustomerID(cid)
	r.birthDate = r.birthDate.UTC()
	return r, nil
}

func cardAAD(cardID id.CardID) []byte {
	return []byte("card:" + cardID.String())
}

// translateWriteErr maps unique violations onto the store's duplicate errors.
func translateWriteErr(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case emailConstraint:
			return fmt.Errorf("%w: %w", models.ErrDuplicateEmail, sentinel.ErrAlreadyUsed)
		case identityConstraint:
			return fmt.Errorf("%w: %w", models.ErrDuplicateIdentityNumber, sentinel.ErrAlreadyUsed)
		default:
			return fmt.Errorf("%s: %w", action, sentinel.ErrAlreadyUsed)
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

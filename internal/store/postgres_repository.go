/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL for accounts, the append-only transaction
 * ledger, and fines, including the atomic money movement units.
 *
 * Every balance mutation happens inside a database transaction that also
 * inserts the paired ledger row; balances are re-checked under a
 * `SELECT ... FOR UPDATE` row lock so that concurrent movements against the
 * same account serialize and the non-negative rule for paying parties holds.
 * Fine settlement additionally uses a conditional update guarded by
 * `is_paid = false`, so a lost race surfaces as ErrFineAlreadyPaid and never
 * as a double charge.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/playvault/economy-service/internal/domain"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountFrozen       = errors.New("account is frozen")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrFineNotFound        = errors.New("fine not found")
	ErrFineAlreadyPaid     = errors.New("fine already paid")
	ErrDuplicateCardNumber = errors.New("card number already in use")
	ErrDuplicateNickname   = errors.New("nickname already in use")
)

const accountColumns = `id, card_number, nickname, balance, is_banker, is_admin, is_inspector, is_judge, is_frozen, created_at`

const transactionColumns = `id, sender_card_number, receiver_card_number, amount, type, operation_by, fine_payment_for_id, reason, created_at`

const fineColumns = `id, user_id, issued_by_inspector_id, amount, reason, due_date, is_paid, paid_at, created_at`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// row abstracts pgx.Row so scan helpers work for both pool and tx queries.
type row interface {
	Scan(dest ...any) error
}

func scanAccount(r row) (*domain.Account, error) {
	var account domain.Account
	var isBanker, isAdmin, isInspector, isJudge bool
	err := r.Scan(
		&account.ID, &account.CardNumber, &account.Nickname, &account.Balance,
		&isBanker, &isAdmin, &isInspector, &isJudge,
		&account.IsFrozen, &account.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if isBanker {
		account.Roles = account.Roles.With(domain.RoleBanker)
	}
	if isAdmin {
		account.Roles = account.Roles.With(domain.RoleAdmin)
	}
	if isInspector {
		account.Roles = account.Roles.With(domain.RoleInspector)
	}
	if isJudge {
		account.Roles = account.Roles.With(domain.RoleJudge)
	}
	return &account, nil
}

// FindAccountByCardNumber retrieves an account by its public card number.
func (r *PostgresRepository) FindAccountByCardNumber(ctx context.Context, cardNumber int) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE card_number = $1`
	return scanAccount(r.db.QueryRow(ctx, query, cardNumber))
}

// FindAccountByID retrieves an account by its internal id.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// CardNumberExists reports whether any account already holds cardNumber.
func (r *PostgresRepository) CardNumberExists(ctx context.Context, cardNumber int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE card_number = $1)`, cardNumber).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CreateAccount inserts a new account row. A generated card number is
// guaranteed unused at generation time but not reserved, so a concurrent
// create can still collide; the unique constraint is the arbiter and the
// violation is mapped to a Conflict-kind sentinel.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, card_number, nickname, balance, is_banker, is_admin, is_inspector, is_judge, is_frozen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		account.ID,
		account.CardNumber,
		account.Nickname,
		account.Balance,
		account.Roles.Has(domain.RoleBanker),
		account.Roles.Has(domain.RoleAdmin),
		account.Roles.Has(domain.RoleInspector),
		account.Roles.Has(domain.RoleJudge),
		account.IsFrozen,
	).Scan(&account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "accounts_nickname_key" {
				return ErrDuplicateNickname
			}
			return ErrDuplicateCardNumber
		}
		return err
	}
	return nil
}

// SearchAccountsByNickname finds accounts whose nickname contains fragment,
// excluding the caller's own account.
func (r *PostgresRepository) SearchAccountsByNickname(ctx context.Context, fragment string, excludeID uuid.UUID, limit int) ([]domain.AccountSummary, error) {
	query := `
		SELECT id, nickname, card_number
		FROM accounts
		WHERE nickname ILIKE '%' || $1 || '%' AND id <> $2
		ORDER BY nickname ASC
		LIMIT $3
	`
	return r.querySummaries(ctx, query, fragment, excludeID, limit)
}

// SearchAccountsByCardRange finds accounts whose card number falls in
// [lo, hi). The range is derived from a numeric prefix by the caller; an
// arithmetic range keeps the lookup on the card_number index instead of a
// string match.
func (r *PostgresRepository) SearchAccountsByCardRange(ctx context.Context, lo, hi int, excludeID uuid.UUID, limit int) ([]domain.AccountSummary, error) {
	query := `
		SELECT id, nickname, card_number
		FROM accounts
		WHERE card_number >= $1 AND card_number < $2 AND id <> $3
		ORDER BY card_number ASC
		LIMIT $4
	`
	return r.querySummaries(ctx, query, lo, hi, excludeID, limit)
}

func (r *PostgresRepository) querySummaries(ctx context.Context, query string, args ...any) ([]domain.AccountSummary, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.AccountSummary
	for rows.Next() {
		var s domain.AccountSummary
		if err := rows.Scan(&s.ID, &s.Nickname, &s.CardNumber); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// SetAccountRoles overwrites the role flags for an account and returns the
// updated row.
func (r *PostgresRepository) SetAccountRoles(ctx context.Context, cardNumber int, roles domain.RoleSet) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET is_banker = $2, is_admin = $3, is_inspector = $4, is_judge = $5
		WHERE card_number = $1
		RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRow(ctx, query,
		cardNumber,
		roles.Has(domain.RoleBanker),
		roles.Has(domain.RoleAdmin),
		roles.Has(domain.RoleInspector),
		roles.Has(domain.RoleJudge),
	))
}

// SetAccountFrozen flips the frozen flag for an account and returns the
// updated row. The admin-cannot-be-frozen rule is enforced by the service
// before calling this.
func (r *PostgresRepository) SetAccountFrozen(ctx context.Context, cardNumber int, frozen bool) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET is_frozen = $2
		WHERE card_number = $1
		RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRow(ctx, query, cardNumber, frozen))
}

// lockAccountTx locks one account row FOR UPDATE inside tx and returns its
// id, balance, and frozen flag.
func lockAccountTx(ctx context.Context, tx pgx.Tx, cardNumber int) (id uuid.UUID, balance int64, frozen bool, err error) {
	err = tx.QueryRow(ctx,
		`SELECT id, balance, is_frozen FROM accounts WHERE card_number = $1 FOR UPDATE`,
		cardNumber,
	).Scan(&id, &balance, &frozen)
	if err == pgx.ErrNoRows {
		err = ErrAccountNotFound
	}
	return id, balance, frozen, err
}

func insertTransactionTx(ctx context.Context, tx pgx.Tx, entry *domain.Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, sender_card_number, receiver_card_number, amount, type, operation_by, fine_payment_for_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		entry.ID,
		entry.SenderCardNumber,
		entry.ReceiverCardNumber,
		entry.Amount,
		entry.Type,
		entry.OperationBy,
		entry.FinePaymentForID,
		entry.Reason,
	)
	return err
}

// TransferFunds moves amount from sender to receiver and appends one
// TRANSFER/PLAYER ledger row, all in one database transaction. Rows are
// locked in card-number order so two opposing transfers cannot deadlock.
func (r *PostgresRepository) TransferFunds(ctx context.Context, senderCard, receiverCard int, amount int64, reason *string) (*TransferResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	first, second := senderCard, receiverCard
	if receiverCard < senderCard {
		first, second = receiverCard, senderCard
	}
	if _, _, _, err := lockAccountTx(ctx, tx, first); err != nil {
		return nil, err
	}
	if _, _, _, err := lockAccountTx(ctx, tx, second); err != nil {
		return nil, err
	}

	var senderBalance int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE card_number = $1`,
		senderCard,
	).Scan(&senderBalance)
	if err != nil {
		return nil, err
	}
	if senderBalance < amount {
		return nil, ErrInsufficientFunds
	}

	var receiverFrozen bool
	var result TransferResult
	err = tx.QueryRow(ctx,
		`SELECT id, is_frozen FROM accounts WHERE card_number = $1`,
		receiverCard,
	).Scan(&result.ReceiverID, &receiverFrozen)
	if err != nil {
		return nil, err
	}
	if receiverFrozen {
		return nil, ErrAccountFrozen
	}

	err = tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance - $1 WHERE card_number = $2 RETURNING balance`,
		amount, senderCard,
	).Scan(&result.SenderBalance)
	if err != nil {
		return nil, err
	}
	err = tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE card_number = $2 RETURNING balance`,
		amount, receiverCard,
	).Scan(&result.ReceiverBalance)
	if err != nil {
		return nil, err
	}

	entry := &domain.Transaction{
		ID:                 uuid.New(),
		SenderCardNumber:   &senderCard,
		ReceiverCardNumber: &receiverCard,
		Amount:             amount,
		Type:               domain.TransactionTransfer,
		OperationBy:        domain.OperationByPlayer,
		Reason:             reason,
	}
	if err := insertTransactionTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &result, nil
}

// AdjustBalance applies a banker deposit or withdrawal to the target account
// and appends the matching BANK ledger row in the same database transaction.
// direction must be TransactionDeposit or TransactionWithdrawal.
func (r *PostgresRepository) AdjustBalance(ctx context.Context, targetCard int, amount int64, direction domain.TransactionType, reason *string) (*AdjustResult, error) {
	if direction != domain.TransactionDeposit && direction != domain.TransactionWithdrawal {
		return nil, fmt.Errorf("invalid adjustment direction %q", direction)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	id, balance, frozen, err := lockAccountTx(ctx, tx, targetCard)
	if err != nil {
		return nil, err
	}
	if frozen {
		return nil, ErrAccountFrozen
	}

	delta := amount
	entry := &domain.Transaction{
		ID:          uuid.New(),
		Amount:      amount,
		Type:        direction,
		OperationBy: domain.OperationByBank,
		Reason:      reason,
	}
	if direction == domain.TransactionWithdrawal {
		if balance < amount {
			return nil, ErrInsufficientFunds
		}
		delta = -amount
		entry.SenderCardNumber = &targetCard
	} else {
		entry.ReceiverCardNumber = &targetCard
	}

	result := AdjustResult{TargetID: id}
	err = tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE card_number = $2 RETURNING balance`,
		delta, targetCard,
	).Scan(&result.NewBalance)
	if err != nil {
		return nil, err
	}

	if err := insertTransactionTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &result, nil
}

// SettleFine pays one fine as a single atomic unit: it debits the payer,
// flips is_paid, and appends the FINE ledger row routed to the treasury
// card. The is_paid flip is a conditional update, so of two concurrent
// settlement attempts exactly one commits; the loser observes
// ErrFineAlreadyPaid and causes no balance change.
func (r *PostgresRepository) SettleFine(ctx context.Context, fineID, payerID uuid.UUID, treasuryCard int) (*SettleFineResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var fineUserID uuid.UUID
	var amount int64
	var isPaid bool
	err = tx.QueryRow(ctx,
		`SELECT user_id, amount, is_paid FROM fines WHERE id = $1 FOR UPDATE`,
		fineID,
	).Scan(&fineUserID, &amount, &isPaid)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrFineNotFound
		}
		return nil, err
	}
	if fineUserID != payerID {
		return nil, ErrFineNotFound
	}
	if isPaid {
		return nil, ErrFineAlreadyPaid
	}

	var payerCard int
	var payerBalance int64
	err = tx.QueryRow(ctx,
		`SELECT card_number, balance FROM accounts WHERE id = $1 FOR UPDATE`,
		payerID,
	).Scan(&payerCard, &payerBalance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if payerBalance < amount {
		return nil, ErrInsufficientFunds
	}

	var result SettleFineResult
	tag, err := tx.Exec(ctx,
		`UPDATE fines SET is_paid = true, paid_at = NOW() WHERE id = $1 AND is_paid = false`,
		fineID,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrFineAlreadyPaid
	}
	err = tx.QueryRow(ctx, `SELECT paid_at FROM fines WHERE id = $1`, fineID).Scan(&result.PaidAt)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance - $1 WHERE id = $2 RETURNING balance`,
		amount, payerID,
	).Scan(&result.NewBalance)
	if err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("Payment for fine %s", fineID)
	entry := &domain.Transaction{
		ID:                 uuid.New(),
		SenderCardNumber:   &payerCard,
		ReceiverCardNumber: &treasuryCard,
		Amount:             amount,
		Type:               domain.TransactionFine,
		OperationBy:        domain.OperationByPlayer,
		FinePaymentForID:   &fineID,
		Reason:             &reason,
	}
	if err := insertTransactionTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *PostgresRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(
			&tx.ID, &tx.SenderCardNumber, &tx.ReceiverCardNumber, &tx.Amount,
			&tx.Type, &tx.OperationBy, &tx.FinePaymentForID, &tx.Reason, &tx.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// FindTransactionsByCardNumber retrieves the most recent ledger entries
// touching cardNumber as sender or receiver, newest first.
func (r *PostgresRepository) FindTransactionsByCardNumber(ctx context.Context, cardNumber int, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sender_card_number = $1 OR receiver_card_number = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.queryTransactions(ctx, query, cardNumber, limit)
}

// FindTransactionsByCardNumberAsc retrieves ledger entries touching
// cardNumber oldest first, for balance history reconstruction.
func (r *PostgresRepository) FindTransactionsByCardNumberAsc(ctx context.Context, cardNumber int, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sender_card_number = $1 OR receiver_card_number = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return r.queryTransactions(ctx, query, cardNumber, limit)
}

// ListTransactions retrieves the most recent ledger entries across all
// accounts, newest first.
func (r *PostgresRepository) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1
	`
	return r.queryTransactions(ctx, query, limit)
}

// CreateFine inserts a new fine record.
func (r *PostgresRepository) CreateFine(ctx context.Context, fine *domain.Fine) error {
	query := `
		INSERT INTO fines (id, user_id, issued_by_inspector_id, amount, reason, due_date, is_paid)
		VALUES ($1, $2, $3, $4, $5, $6, false)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		fine.ID,
		fine.UserID,
		fine.IssuedByInspectorID,
		fine.Amount,
		fine.Reason,
		fine.DueDate,
	).Scan(&fine.CreatedAt)
}

func scanFine(r row) (*domain.Fine, error) {
	var fine domain.Fine
	err := r.Scan(
		&fine.ID, &fine.UserID, &fine.IssuedByInspectorID, &fine.Amount,
		&fine.Reason, &fine.DueDate, &fine.IsPaid, &fine.PaidAt, &fine.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrFineNotFound
		}
		return nil, err
	}
	return &fine, nil
}

// FindFineByID retrieves one fine.
func (r *PostgresRepository) FindFineByID(ctx context.Context, fineID uuid.UUID) (*domain.Fine, error) {
	query := `SELECT ` + fineColumns + ` FROM fines WHERE id = $1`
	return scanFine(r.db.QueryRow(ctx, query, fineID))
}

func (r *PostgresRepository) queryFines(ctx context.Context, query string, args ...any) ([]domain.Fine, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fines []domain.Fine
	for rows.Next() {
		var fine domain.Fine
		err := rows.Scan(
			&fine.ID, &fine.UserID, &fine.IssuedByInspectorID, &fine.Amount,
			&fine.Reason, &fine.DueDate, &fine.IsPaid, &fine.PaidAt, &fine.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		fines = append(fines, fine)
	}
	return fines, rows.Err()
}

// FindUnpaidFinesByUserID retrieves a user's unpaid fines, soonest due first.
func (r *PostgresRepository) FindUnpaidFinesByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Fine, error) {
	query := `
		SELECT ` + fineColumns + `
		FROM fines
		WHERE user_id = $1 AND is_paid = false
		ORDER BY due_date ASC
	`
	return r.queryFines(ctx, query, userID)
}

// CountUnpaidFines counts a user's unpaid fines.
func (r *PostgresRepository) CountUnpaidFines(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM fines WHERE user_id = $1 AND is_paid = false`,
		userID,
	).Scan(&count)
	return count, err
}

// FindOverdueFinesByInspector retrieves fines issued by inspectorID that are
// unpaid and past due at now, soonest due first.
func (r *PostgresRepository) FindOverdueFinesByInspector(ctx context.Context, inspectorID uuid.UUID, now time.Time) ([]domain.Fine, error) {
	query := `
		SELECT ` + fineColumns + `
		FROM fines
		WHERE issued_by_inspector_id = $1 AND is_paid = false AND due_date < $2
		ORDER BY due_date ASC
	`
	return r.queryFines(ctx, query, inspectorID, now)
}

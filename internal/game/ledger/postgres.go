package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Postgres implementa Store sobre as tabelas wallets e wallet_ledger.
// A idempotência vem do índice único em wallet_ledger.external_ref.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Account retorna a posição do apostador
func (p *Postgres) Account(ctx context.Context, bettorID string) (Account, error) {
	a := Account{BettorID: bettorID}
	err := p.db.QueryRowContext(ctx,
		`SELECT balance_cents, total_won_cents, total_lost_cents FROM wallets WHERE user_id=$1`,
		bettorID).Scan(&a.Balance, &a.TotalWon, &a.TotalLost)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

// Deposit cria a carteira se necessário e credita o valor
func (p *Postgres) Deposit(ctx context.Context, bettorID string, amount int64, ref string) (Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallets(id, user_id, balance_cents, total_won_cents, total_lost_cents, version)
		 VALUES($1,$2,0,0,0,1) ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), bettorID); err != nil {
		return Account{}, err
	}

	walletID, err := lockWallet(ctx, tx, bettorID)
	if err != nil {
		return Account{}, err
	}

	fresh, err := insertEntry(ctx, tx, walletID, "CREDIT", amount, depositRef(ref))
	if err != nil {
		return Account{}, err
	}
	if fresh {
		if _, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1 WHERE id=$2`,
			amount, walletID); err != nil {
			return Account{}, err
		}
	}

	a := Account{BettorID: bettorID}
	if err = tx.QueryRowContext(ctx,
		`SELECT balance_cents, total_won_cents, total_lost_cents FROM wallets WHERE id=$1`,
		walletID).Scan(&a.Balance, &a.TotalWon, &a.TotalLost); err != nil {
		return Account{}, err
	}
	if err = tx.Commit(); err != nil {
		return Account{}, err
	}
	return a, nil
}

// Debit bloqueia a carteira e debita o valor da aposta
func (p *Postgres) Debit(ctx context.Context, bettorID string, amount int64, ref string) error {
	return p.withWallet(ctx, bettorID, func(tx *sql.Tx, walletID string) error {
		fresh, err := insertEntry(ctx, tx, walletID, "RESERVE", amount, ref)
		if err != nil || !fresh {
			return err
		}
		var balance int64
		if err := tx.QueryRowContext(ctx, `SELECT balance_cents FROM wallets WHERE id=$1`, walletID).Scan(&balance); err != nil {
			return err
		}
		// rollback descarta a linha do ledger inserida acima
		if balance < amount {
			return ErrInsufficientFunds
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance_cents = balance_cents - $1, version = version + 1 WHERE id=$2`,
			amount, walletID)
		return err
	})
}

// Credit paga um vencedor: saldo recebe o payout e o lucro entra em total_won
func (p *Postgres) Credit(ctx context.Context, bettorID string, payout, profit int64, ref string) error {
	return p.withWallet(ctx, bettorID, func(tx *sql.Tx, walletID string) error {
		fresh, err := insertEntry(ctx, tx, walletID, "PAYOUT", payout, ref)
		if err != nil || !fresh {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance_cents = balance_cents + $1, total_won_cents = total_won_cents + $2, version = version + 1 WHERE id=$3`,
			payout, profit, walletID)
		return err
	})
}

// RecordLoss só acumula total_lost; o saldo já saiu no Debit
func (p *Postgres) RecordLoss(ctx context.Context, bettorID string, amount int64, ref string) error {
	return p.withWallet(ctx, bettorID, func(tx *sql.Tx, walletID string) error {
		fresh, err := insertEntry(ctx, tx, walletID, "LOSS", amount, ref)
		if err != nil || !fresh {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE wallets SET total_lost_cents = total_lost_cents + $1, version = version + 1 WHERE id=$2`,
			amount, walletID)
		return err
	})
}

// Refund devolve o valor de uma aposta sem decisão
func (p *Postgres) Refund(ctx context.Context, bettorID string, amount int64, ref string) error {
	return p.withWallet(ctx, bettorID, func(tx *sql.Tx, walletID string) error {
		fresh, err := insertEntry(ctx, tx, walletID, "REFUND", amount, ref)
		if err != nil || !fresh {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1 WHERE id=$2`,
			amount, walletID)
		return err
	})
}

// withWallet abre transação com lock pessimista na linha da carteira
func (p *Postgres) withWallet(ctx context.Context, bettorID string, fn func(tx *sql.Tx, walletID string) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	walletID, err := lockWallet(ctx, tx, bettorID)
	if err != nil {
		return err
	}
	if err := fn(tx, walletID); err != nil {
		return err
	}
	return tx.Commit()
}

func lockWallet(ctx context.Context, tx *sql.Tx, bettorID string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE user_id=$1 FOR UPDATE`, bettorID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock wallet: %w", err)
	}
	return id, nil
}

// insertEntry grava o movimento; retorna false se a ref já tinha sido aplicada
func insertEntry(ctx context.Context, tx *sql.Tx, walletID, op string, amount int64, ref string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, external_ref)
		 VALUES($1,$2,$3,$4) ON CONFLICT (external_ref) DO NOTHING`,
		walletID, op, amount, ref)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// depósitos sem ref recebem uma ref única para não colidir no índice
func depositRef(ref string) string {
	if ref == "" {
		return "deposit:" + uuid.NewString()
	}
	return "deposit:" + ref
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
)

const gameColumns = `id, name, coins_recharged, last_recharge_date, total_coins, created_at, updated_at`

func scanGame(row rowScanner) (*models.GameBalance, error) {
	var g models.GameBalance
	if err := row.Scan(&g.ID, &g.Name, &g.CoinsRecharged, &g.LastRechargeDate, &g.TotalCoins, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// ApplyGameDelta increments in place so concurrent writers never lose an update
func (q *queries) ApplyGameDelta(ctx context.Context, gameName string, delta float64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE games
		SET total_coins = total_coins + $1, updated_at = NOW()
		WHERE name = $2`, delta, gameName)
	if err != nil {
		return false, fmt.Errorf("apply game delta: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected > 0, nil
}

func (q *queries) GetGame(ctx context.Context, name string) (*models.GameBalance, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE name = $1`, name)

	game, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %q: %w", name, err)
	}
	return game, nil
}

func (q *queries) ListGames(ctx context.Context) ([]models.GameBalance, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+gameColumns+` FROM games ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []models.GameBalance
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, *game)
	}

	return games, rows.Err()
}

func (q *queries) InsertGame(ctx context.Context, g *models.GameBalance) error {
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO games (name, coins_recharged, last_recharge_date, total_coins, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		g.Name, g.CoinsRecharged, g.LastRechargeDate, g.TotalCoins, g.CreatedAt, g.UpdatedAt,
	).Scan(&g.ID)
	if isUniqueViolation(err) {
		return repository.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/models"
)

// LobbyProvider reads team rosters maintained by the lobby service.
type LobbyProvider struct {
	pool *pgxpool.Pool
}

func NewLobbyProvider(pool *pgxpool.Pool) *LobbyProvider {
	return &LobbyProvider{pool: pool}
}

type memberRow struct {
	TeamName string
	PlayerID uuid.UUID
}

// GetTeams returns the lobby's teams in their configured order.
func (lp *LobbyProvider) GetTeams(ctx context.Context, lobbyID uuid.UUID) ([]models.TeamRoster, error) {
	var exists bool
	if err := lp.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lobbies WHERE id = $1)`, lobbyID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup lobby %s: %w", lobbyID, err)
	}
	if !exists {
		return nil, gameerr.ErrLobbyNotFound
	}

	q := `
		SELECT team_name, player_id
		FROM lobby_team_members
		WHERE lobby_id = $1
		ORDER BY team_position, member_position
	`
	rows, err := lp.pool.Query(ctx, q, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("query rosters for lobby %s: %w", lobbyID, err)
	}
	members, err := pgx.CollectRows(rows, pgx.RowToStructByPos[memberRow])
	if err != nil {
		return nil, fmt.Errorf("scan rosters for lobby %s: %w", lobbyID, err)
	}
	return groupRosters(members), nil
}

// PutTeams replaces the rosters of a lobby, creating the lobby if needed.
func (lp *LobbyProvider) PutTeams(ctx context.Context, lobbyID uuid.UUID, teams []models.TeamRoster) error {
	return pgx.BeginTxFunc(ctx, lp.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO lobbies (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, lobbyID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM lobby_team_members WHERE lobby_id = $1`, lobbyID); err != nil {
			return err
		}
		for ti, team := range teams {
			for pi, player := range team.Players {
				q := `
					INSERT INTO lobby_team_members (lobby_id, team_name, team_position, player_id, member_position)
					VALUES ($1, $2, $3, $4, $5)
				`
				if _, err := tx.Exec(ctx, q, lobbyID, team.TeamName, ti, player, pi); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// groupRosters folds ordered member rows into teams, keeping first-seen team order.
func groupRosters(members []memberRow) []models.TeamRoster {
	var out []models.TeamRoster
	index := make(map[string]int)
	for _, m := range members {
		i, ok := index[m.TeamName]
		if !ok {
			i = len(out)
			index[m.TeamName] = i
			out = append(out, models.TeamRoster{TeamName: m.TeamName})
		}
		out[i].Players = append(out[i].Players, m.PlayerID)
	}
	return out
}

package settle

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/arcade-session-go/internal/games"
)

// Request is one round submitted for settlement.
type Request struct {
	Identity string
	Kind     games.Kind
	Wager    decimal.Decimal
	// Payload is the narrative's game_data; nil omits the field.
	Payload map[string]any
}

// Settlement is the authoritative verdict for a round.
type Settlement struct {
	Won        bool            `json:"won"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Delta      decimal.Decimal `json:"delta"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// Outcome is the part of the verdict reconciliation needs.
func (s Settlement) Outcome() games.Outcome {
	return games.Outcome{Won: s.Won, Multiplier: s.Multiplier}
}

// GameStatus is the availability flag for one game.
type GameStatus struct {
	Enabled            bool   `json:"enabled"`
	MaintenanceMessage string `json:"maintenanceMessage,omitempty"`
}

// HistoryEntry is one settled round as the service recorded it.
type HistoryEntry struct {
	ID           int64           `json:"id"`
	Username     string          `json:"username,omitempty"`
	GameType     games.Kind      `json:"game_type"`
	BetAmount    decimal.Decimal `json:"bet_amount"`
	Result       string          `json:"result"`
	Multiplier   decimal.Decimal `json:"multiplier"`
	PointsChange decimal.Decimal `json:"points_change"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	GameData     map[string]any  `json:"game_data,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Won reports whether the recorded round paid out.
func (h HistoryEntry) Won() bool { return h.Result == resultWin }

const (
	resultWin  = "win"
	resultLoss = "loss"
)

type playRequest struct {
	TelegramID any             `json:"telegram_id"`
	GameType   games.Kind      `json:"game_type"`
	BetAmount  decimal.Decimal `json:"bet_amount"`
	GameData   map[string]any  `json:"game_data,omitempty"`
}

type playResponse struct {
	Error        string           `json:"error"`
	Result       string           `json:"result"`
	Multiplier   *decimal.Decimal `json:"multiplier"`
	PointsChange *decimal.Decimal `json:"points_change"`
	NewBalance   *decimal.Decimal `json:"new_balance"`
}

type statusEntry struct {
	IsEnabled          bool   `json:"is_enabled"`
	MaintenanceMessage string `json:"maintenance_message"`
}

type balanceResponse struct {
	Error   string           `json:"error"`
	Balance *decimal.Decimal `json:"balance"`
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// identityValue sends numeric identities as JSON numbers, as the service
// keys users by integer id.
func identityValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return json.Number(strconv.FormatInt(n, 10))
	}
	return id
}

package concentration

import "time"

// User is a player account. Owned by the account store.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Game is the persisted state of one play session.
type Game struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	UserName    string      `json:"user_name"`
	InitialDeck DeckState   `json:"-"`
	Deck        DeckState   `json:"-"`
	Successful  int         `json:"successful_attempts"`
	Failed      int         `json:"failed_attempts"`
	Total       int         `json:"total_attempts"`
	Over        bool        `json:"game_over"`
	History     []MoveEntry `json:"move_history"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Score is the immutable end-of-game snapshot.
type Score struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	GameID     string    `json:"game_id"`
	Date       time.Time `json:"date"`
	Successful int       `json:"successful_attempts"`
	Failed     int       `json:"failed_attempts"`
	Total      int       `json:"total_attempts"`
	Won        bool      `json:"won"`
}

// Record is a player's cumulative win/loss ledger.
type Record struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

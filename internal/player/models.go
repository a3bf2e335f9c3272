package player

import (
	"fmt"
	"strings"
	"time"
)

type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Nickname    *string   `json:"nickname"`
	Phone       string    `json:"phone"`
	GamesPlayed int       `json:"games_played"`
	GamesWon    int       `json:"games_won"`
	CreatedAt   time.Time `json:"created_at"`

	// Communities holds the names of the communities the player belongs to.
	Communities []string `json:"-"`
}

func (p *Player) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("player %s has no name", p.ID)
	}
	if p.GamesPlayed < 0 || p.GamesWon < 0 || p.GamesWon > p.GamesPlayed {
		return fmt.Errorf("player %s has inconsistent game counts", p.ID)
	}
	return nil
}

// WinRate is the percentage of games won, 0 when none were played.
func (p Player) WinRate() float64 {
	if p.GamesPlayed == 0 {
		return 0
	}
	return float64(p.GamesWon) / float64(p.GamesPlayed) * 100
}

func (p Player) DisplayName() string {
	if p.Nickname != nil && *p.Nickname != "" {
		return fmt.Sprintf("%s (%s)", p.Name, *p.Nickname)
	}
	return p.Name
}

// Matches is the roster search: a case-insensitive substring of the name or
// nickname. An empty query matches everyone.
func Matches(p Player, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Name), query) {
		return true
	}
	return p.Nickname != nil && strings.Contains(strings.ToLower(*p.Nickname), query)
}

type Link struct {
	ID          string `json:"id"`
	PlayerID    string `json:"player_id"`
	CommunityID string `json:"community_id"`
}

// AddInput holds the add-player form.
type AddInput struct {
	Name        string   `json:"name" validate:"required"`
	Phone       string   `json:"phone" validate:"required"`
	Nickname    string   `json:"nickname"`
	Communities []string `json:"communities"`
}

const (
	MsgNameRequired  = "Player name is required"
	MsgPhoneRequired = "Player phone is required"
	MsgAdded         = "Player added successfully!"
	MsgAddFailed     = "Could not add player."
	MsgListFailed    = "Could not load players."
)

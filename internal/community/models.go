package community

import (
	"fmt"
	"time"

	"domino-community/internal/competition"
)

type Community struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description"`
	WhatsAppGroupID *string   `json:"whatsapp_group_id"`
	Latitude        *float64  `json:"latitude"`
	Longitude       *float64  `json:"longitude"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

func (c *Community) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("community %s has no name", c.ID)
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return fmt.Errorf("community %s has only one coordinate", c.ID)
	}
	return nil
}

// Location returns the community's coordinates, if it has any.
func (c Community) Location() (Point, bool) {
	if c.Latitude == nil || c.Longitude == nil {
		return Point{}, false
	}
	return Point{Latitude: *c.Latitude, Longitude: *c.Longitude}, true
}

// Summary is a row of the "my communities" list.
type Summary struct {
	Community
	MemberCount  int
	CreatorEmail string
}

// MembersLabel renders the member count the way the list shows it.
func (s Summary) MembersLabel() string {
	if s.MemberCount == 1 {
		return "1 member"
	}
	return fmt.Sprintf("%d members", s.MemberCount)
}

// Nearby is a row of the discover list. DistanceKm is nil for communities
// without coordinates.
type Nearby struct {
	Community
	DistanceKm *float64
}

type Details struct {
	Community
	Competitions []competition.Competition
	MemberCount  int
}

// DetailsParams is what the list passes when it opens a community.
type DetailsParams struct {
	CommunityID string
}

// CreateInput holds the create-community form.
type CreateInput struct {
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description"`
	WhatsAppGroupID string   `json:"whatsapp_group_id"`
	Latitude        *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude       *float64 `json:"longitude" validate:"omitempty,longitude"`
}

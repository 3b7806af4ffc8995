package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
)

// ErrMissingField is wrapped by decode errors for absent required fields.
var ErrMissingField = errors.New("missing required field")

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

type basicInfoPayload struct {
	Level               int             `json:"level"`
	Nickname            *string         `json:"nickname"`
	AvatarCardNumGained *int            `json:"avatar_card_num_gained"`
	AvatarCardNumTotal  int             `json:"avatar_card_num_total"`
	ActionCardNumGained int             `json:"action_card_num_gained"`
	ActionCardNumTotal  int             `json:"action_card_num_total"`
	Replays             json.RawMessage `json:"replays"`
}

type characterCardPayload struct {
	ID          *int    `json:"id"`
	Name        *string `json:"name"`
	Proficiency *int    `json:"proficiency"`
	UseCount    *int    `json:"use_count"`
	Num         int     `json:"num"`
}

type actionCardPayload struct {
	ID       *int    `json:"id"`
	Name     *string `json:"name"`
	CardType string  `json:"card_type"`
	UseCount *int    `json:"use_count"`
	Num      int     `json:"num"`
}

type cardListPayload[T any] struct {
	CardList *[]T `json:"card_list"`
}

// DecodeBasicInfo decodes the basicInfo resource. Replays are kept raw so a
// malformed replay list never fails the profile.
func DecodeBasicInfo(data json.RawMessage) (models.BasicInfo, error) {
	var p basicInfoPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.BasicInfo{}, fmt.Errorf("decode basic info: %w", err)
	}
	if p.Nickname == nil {
		return models.BasicInfo{}, missing("nickname")
	}
	if p.AvatarCardNumGained == nil {
		return models.BasicInfo{}, missing("avatar_card_num_gained")
	}
	return models.BasicInfo{
		Level:               p.Level,
		Nickname:            *p.Nickname,
		AvatarCardNumGained: *p.AvatarCardNumGained,
		AvatarCardNumTotal:  p.AvatarCardNumTotal,
		ActionCardNumGained: p.ActionCardNumGained,
		ActionCardNumTotal:  p.ActionCardNumTotal,
		Replays:             p.Replays,
	}, nil
}

// DecodeCharacterCards decodes the character card list resource. An absent
// card_list is an error; an empty one is not.
func DecodeCharacterCards(data json.RawMessage) ([]models.RawCardRecord, error) {
	var p cardListPayload[characterCardPayload]
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode character cards: %w", err)
	}
	if p.CardList == nil {
		return nil, missing("card_list")
	}

	cards := make([]models.RawCardRecord, 0, len(*p.CardList))
	for i, c := range *p.CardList {
		switch {
		case c.ID == nil:
			return nil, missing(fmt.Sprintf("card_list[%d].id", i))
		case c.Name == nil:
			return nil, missing(fmt.Sprintf("card_list[%d].name", i))
		case c.Proficiency == nil:
			return nil, missing(fmt.Sprintf("card_list[%d].proficiency", i))
		case c.UseCount == nil:
			return nil, missing(fmt.Sprintf("card_list[%d].use_count", i))
		}
		cards = append(cards, models.RawCardRecord{
			ID:          *c.ID,
			Name:        *c.Name,
			Proficiency: *c.Proficiency,
			UseCount:    *c.UseCount,
			Num:         c.Num,
		})
	}
	return cards, nil
}

// DecodeActionCards decodes the action card list resource.
func DecodeActionCards(data json.RawMessage) ([]models.RawActionCardRecord, error) {
	var p cardListPayload[actionCardPayload]
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode action cards: %w", err)
	}
	if p.CardList == nil {
		return nil, missing("card_list")
	}

	cards := make([]models.RawActionCardRecord, 0, len(*p.CardList))
	for i, c := range *p.CardList {
		switch {
		case c.ID == nil:
			return nil, missing(fmt.Sprintf("card_list[%d].id", i))
		case c.Name == nil:
			return nil, missing(fmt.Sprintf("card_list[%d].name", i))
		case c.UseCount == nil:
			return nil, missing(fmt.Sprintf("card_list[%d].use_count", i))
		}
		cards = append(cards, models.RawActionCardRecord{
			ID:       *c.ID,
			Name:     *c.Name,
			CardType: c.CardType,
			UseCount: *c.UseCount,
			Num:      c.Num,
		})
	}
	return cards, nil
}

package service

import (
	"context"
	"errors"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/repository"
)

// CharacterService exposes the active character catalog
type CharacterService struct {
	characters repository.CharacterRepository
}

func NewCharacterService(characters repository.CharacterRepository) *CharacterService {
	return &CharacterService{characters: characters}
}

// List returns active characters ordered by name
func (s *CharacterService) List(ctx context.Context) ([]models.Character, error) {
	characters, err := s.characters.ListActive(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	return characters, nil
}

// Get returns one active character
func (s *CharacterService) Get(ctx context.Context, id uint) (*models.Character, error) {
	character, err := s.characters.FindActive(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(MsgCharacterNotFound)
	}
	if err != nil {
		return nil, persistence(err)
	}
	return character, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"whatsjuju-chat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CharacterRepository reads the character catalogue
type CharacterRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Character, error)
	FindActive(ctx context.Context, id uint) (*models.Character, error)
	FindBySlug(ctx context.Context, slug string) (*models.Character, error)
	ListActive(ctx context.Context) ([]models.Character, error)
	Count(ctx context.Context) (int64, error)
	Upsert(ctx context.Context, character *models.Character) error
}

type GormCharacterRepository struct {
	db *gorm.DB
}

func NewGormCharacterRepository(db *gorm.DB) *GormCharacterRepository {
	return &GormCharacterRepository{db: db}
}

func (r *GormCharacterRepository) first(ctx context.Context, op string, query any, args ...any) (*models.Character, error) {
	var character models.Character
	err := r.db.WithContext(ctx).Where(query, args...).First(&character).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.%s: %w", op, err)
	}
	return &character, nil
}

func (r *GormCharacterRepository) FindByID(ctx context.Context, id uint) (*models.Character, error) {
	return r.first(ctx, "FindByID", "id = ?", id)
}

func (r *GormCharacterRepository) FindActive(ctx context.Context, id uint) (*models.Character, error) {
	return r.first(ctx, "FindActive", "id = ? AND is_active = ?", id, true)
}

func (r *GormCharacterRepository) FindBySlug(ctx context.Context, slug string) (*models.Character, error) {
	return r.first(ctx, "FindBySlug", "slug = ?", slug)
}

func (r *GormCharacterRepository) ListActive(ctx context.Context) ([]models.Character, error) {
	characters := []models.Character{}
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&characters).Error
	if err != nil {
		return nil, fmt.Errorf("repository.ListActive: %w", err)
	}
	return characters, nil
}

func (r *GormCharacterRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Character{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("repository.Count: %w", err)
	}
	return n, nil
}

// Upsert inserts the character or refreshes the row sharing its slug
func (r *GormCharacterRepository) Upsert(ctx context.Context, character *models.Character) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "personality", "avatar_url", "is_active", "updated_at"}),
	}).Create(character).Error
	if err != nil {
		return fmt.Errorf("repository.Upsert: %w", err)
	}
	return nil
}

// SeedCharacters upserts the default catalogue when the table is empty.
// It reports how many rows were written.
func SeedCharacters(ctx context.Context, repo CharacterRepository, force bool) (int, error) {
	if !force {
		n, err := repo.Count(ctx)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return 0, nil
		}
	}

	written := 0
	for _, c := range models.DefaultCharacters() {
		if err := repo.Upsert(ctx, &c); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

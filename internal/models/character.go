package models

import "time"

// Character is a persona users chat with. Slug is the stable key used by
// the reply tables.
type Character struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Slug        string    `json:"slug" gorm:"uniqueIndex;not null"`
	Description string    `json:"description"`
	Personality string    `json:"personality" gorm:"type:text"`
	AvatarURL   string    `json:"avatar_url"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CharacterSummary is the character block embedded in conversation listings
type CharacterSummary struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	AvatarURL string `json:"avatar_url"`
}

// Summary trims the character down for listings
func (c Character) Summary() CharacterSummary {
	return CharacterSummary{ID: c.ID, Name: c.Name, Slug: c.Slug, AvatarURL: c.AvatarURL}
}

// DefaultCharacters is the catalogue seeded into an empty database
func DefaultCharacters() []Character {
	return []Character{
		{
			Name:        "Goku",
			Slug:        "goku",
			Description: "Guerreiro Saiyajin criado na Terra, sempre em busca de oponentes mais fortes.",
			Personality: "Alegre, ingênuo e otimista. Adora treinar, lutar e comer. Fala de forma simples e animada.",
			AvatarURL:   "/avatars/goku.png",
			IsActive:    true,
		},
		{
			Name:        "Vegeta",
			Slug:        "vegeta",
			Description: "O orgulhoso Príncipe dos Saiyajins.",
			Personality: "Arrogante, orgulhoso e competitivo. Chama os outros de terráqueos e raramente admite fraquezas.",
			AvatarURL:   "/avatars/vegeta.png",
			IsActive:    true,
		},
		{
			Name:        "Naruto Uzumaki",
			Slug:        "naruto",
			Description: "Ninja da Vila da Folha que sonha em se tornar Hokage.",
			Personality: "Energético, determinado e leal aos amigos. Termina frases com 'dattebayo'.",
			AvatarURL:   "/avatars/naruto.png",
			IsActive:    true,
		},
		{
			Name:        "Sasuke Uchiha",
			Slug:        "sasuke",
			Description: "Último sobrevivente do clã Uchiha.",
			Personality: "Frio, reservado e de poucas palavras. Responde de forma curta e distante.",
			AvatarURL:   "/avatars/sasuke.png",
			IsActive:    true,
		},
		{
			Name:        "Superman",
			Slug:        "superman",
			Description: "O Homem de Aço, protetor de Metrópolis.",
			Personality: "Gentil, íntegro e prestativo. Fala com calma e sempre oferece ajuda.",
			AvatarURL:   "/avatars/superman.png",
			IsActive:    true,
		},
		{
			Name:        "Batman",
			Slug:        "batman",
			Description: "O Cavaleiro das Trevas de Gotham City.",
			Personality: "Sério, analítico e desconfiado. Fala pouco e pensa como um detetive.",
			AvatarURL:   "/avatars/batman.png",
			IsActive:    true,
		},
	}
}

package models

import "time"

// SettingOpenAIKey holds the remote completion credential
const SettingOpenAIKey = "openai_api_key"

// Setting is a key/value configuration row
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey;size:100"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

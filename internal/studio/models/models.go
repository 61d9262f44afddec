package models

import "encoding/json"

// ============================================================
// User Model
// ============================================================

type User struct {
	ID           string `json:"id"`
	Login        string `json:"login"`
	PasswordHash string `json:"-"`
	DisplayName  string `json:"display_name"`
	Email        string `json:"email"`
	CreatedAt    string `json:"created_at"`
}

// ============================================================
// Project Model
// ============================================================

// Garment — выбранное изделие: тип, цвет и размер из каталога.
type Garment struct {
	Type  string `json:"type" yaml:"type"`
	Color string `json:"color" yaml:"color"`
	Size  string `json:"size" yaml:"size"`
}

type Project struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Title      string          `json:"title"`
	Scene      json.RawMessage `json:"scene"`
	Garment    Garment         `json:"garment"`
	PreviewURL string          `json:"preview_url"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

// ProjectSummary — строка списка проектов, без сцены.
type ProjectSummary struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Garment    Garment `json:"garment"`
	PreviewURL string  `json:"preview_url"`
	UpdatedAt  string  `json:"updated_at"`
}

// ProjectPatch — частичное обновление; nil-поля не меняются.
type ProjectPatch struct {
	Title      *string         `json:"title,omitempty"`
	Scene      json.RawMessage `json:"scene,omitempty"`
	Garment    *Garment        `json:"garment,omitempty"`
	PreviewURL *string         `json:"preview_url,omitempty"`
}

func (p ProjectPatch) Empty() bool {
	return p.Title == nil && len(p.Scene) == 0 && p.Garment == nil && p.PreviewURL == nil
}

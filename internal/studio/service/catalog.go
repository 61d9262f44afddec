package service

import (
	"fmt"
	"os"
	"strings"

	"garment-studio/internal/editor"
	"garment-studio/internal/studio/models"

	"gopkg.in/yaml.v3"
)

// ============================================================
// Garment Catalog
// ============================================================

type GarmentColor struct {
	Name string `yaml:"name" json:"name"`
	Hex  string `yaml:"hex" json:"hex"`
}

type GarmentType struct {
	Type   string         `yaml:"type" json:"type"`
	Title  string         `yaml:"title" json:"title"`
	Colors []GarmentColor `yaml:"colors" json:"colors"`
	Sizes  []string       `yaml:"sizes" json:"sizes"`
}

// Catalog — изделия, доступные для печати, и позы для примерки.
type Catalog struct {
	Garments []GarmentType `yaml:"garments" json:"garments"`
	Poses    []string      `yaml:"poses" json:"poses"`
}

const defaultCatalog = `
garments:
  - type: tshirt
    title: T-shirt
    colors:
      - {name: white, hex: "#ffffff"}
      - {name: black, hex: "#1a1a1a"}
      - {name: navy, hex: "#1f2a44"}
    sizes: [XS, S, M, L, XL, XXL]
  - type: hoodie
    title: Hoodie
    colors:
      - {name: grey, hex: "#9e9e9e"}
      - {name: black, hex: "#1a1a1a"}
    sizes: [S, M, L, XL]
  - type: sweatshirt
    title: Sweatshirt
    colors:
      - {name: white, hex: "#ffffff"}
      - {name: sand, hex: "#d8c8a8"}
    sizes: [S, M, L, XL]
poses: [front, three-quarter, back]
`

// LoadCatalog читает YAML; пустой путь — встроенный каталог.
func LoadCatalog(path string) (*Catalog, error) {
	data := []byte(defaultCatalog)
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = raw
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Garments) == 0 {
		return nil, fmt.Errorf("catalog has no garments")
	}
	for _, g := range c.Garments {
		if g.Type == "" || len(g.Colors) == 0 || len(g.Sizes) == 0 {
			return nil, fmt.Errorf("catalog garment %q is incomplete", g.Type)
		}
	}
	return &c, nil
}

func (c *Catalog) find(garmentType string) (GarmentType, bool) {
	for _, g := range c.Garments {
		if g.Type == garmentType {
			return g, true
		}
	}
	return GarmentType{}, false
}

// Validate проверяет, что выбор изделия есть в каталоге.
func (c *Catalog) Validate(g models.Garment) error {
	gt, ok := c.find(g.Type)
	if !ok {
		return &editor.ValidationError{Field: "garment.type", Reason: fmt.Sprintf("unknown garment %q", g.Type)}
	}
	if _, ok := gt.color(g.Color); !ok {
		return &editor.ValidationError{Field: "garment.color", Reason: fmt.Sprintf("%s is not available in %q", g.Type, g.Color)}
	}
	for _, s := range gt.Sizes {
		if s == g.Size {
			return nil
		}
	}
	return &editor.ValidationError{Field: "garment.size", Reason: fmt.Sprintf("%s is not available in size %q", g.Type, g.Size)}
}

// ColorHex — цвет изделия для фона рендера; пустая строка, если не найден.
func (c *Catalog) ColorHex(g models.Garment) string {
	gt, ok := c.find(g.Type)
	if !ok {
		return ""
	}
	hex, _ := gt.color(g.Color)
	return hex
}

func (c *Catalog) HasPose(pose string) bool {
	for _, p := range c.Poses {
		if p == pose {
			return true
		}
	}
	return false
}

func (g GarmentType) color(name string) (string, bool) {
	for _, c := range g.Colors {
		if c.Name == name {
			return c.Hex, true
		}
	}
	return "", false
}

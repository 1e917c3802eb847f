package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// UnknownProductName is used when a remote record carries no usable name
const UnknownProductName = "Unknown Product"

// newID generates the fallback identifier for records without code or id.
// The value is not stable across sessions or refetches.
var newID = uuid.NewString

// Product is the canonical product shape used throughout the application.
// ID and DisplayName are always set; every pointer field is nil when the
// remote source did not report it.
type Product struct {
	ID              string              `json:"id"`
	DisplayName     string              `json:"display_name"`
	ImageURL        *string             `json:"image_url,omitempty"`
	NutritionGrade  *string             `json:"nutrition_grade,omitempty"`
	Brands          *string             `json:"brands,omitempty"`
	Categories      *string             `json:"categories,omitempty"`
	Labels          *string             `json:"labels,omitempty"`
	Countries       *string             `json:"countries,omitempty"`
	BrandTags       []string            `json:"brand_tags,omitempty"`
	CategoryTags    []string            `json:"category_tags,omitempty"`
	LabelTags       []string            `json:"label_tags,omitempty"`
	CountryTags     []string            `json:"country_tags,omitempty"`
	Nutrients       map[string]Nutrient `json:"nutrients,omitempty"`
	EcoGrade        *string             `json:"eco_grade,omitempty"`
	NovaGroup       *int                `json:"nova_group,omitempty"`
	ServingSize     *string             `json:"serving_size,omitempty"`
	IngredientsText *string             `json:"ingredients_text,omitempty"`
}

// Nutrient is one reported nutrient value with its unit
type Nutrient struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// CartLine is a product snapshot held in the cart. Quantity is always >= 1.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Grade returns the nutrition grade letter or "" when unknown
func (p Product) Grade() string {
	if p.NutritionGrade == nil {
		return ""
	}
	return *p.NutritionGrade
}

// RawProduct is a product record as returned by Open Food Facts. Field
// presence and types vary between endpoints, so identifiers and numbers are
// decoded leniently.
type RawProduct struct {
	ID               Flexible       `json:"id"`
	Code             Flexible       `json:"code"`
	InternalID       Flexible       `json:"_id"`
	ProductName      string         `json:"product_name"`
	ProductNameEn    string         `json:"product_name_en"`
	ImageURL         string         `json:"image_url"`
	ImageFrontURL    string         `json:"image_front_url"`
	Categories       string         `json:"categories"`
	CategoriesTags   []string       `json:"categories_tags"`
	IngredientsText  string         `json:"ingredients_text"`
	IngredientsEn    string         `json:"ingredients_text_en"`
	NutritionGrades  string         `json:"nutrition_grades"`
	NutritionGradeFr string         `json:"nutrition_grade_fr"`
	NutriscoreGrade  string         `json:"nutriscore_grade"`
	Brands           string         `json:"brands"`
	BrandsTags       []string       `json:"brands_tags"`
	Countries        string         `json:"countries"`
	CountriesTags    []string       `json:"countries_tags"`
	Labels           string         `json:"labels"`
	LabelsTags       []string       `json:"labels_tags"`
	Nutriments       map[string]any `json:"nutriments"`
	EcoscoreGrade    string         `json:"ecoscore_grade"`
	NovaGroup        Flexible       `json:"nova_group"`
	ServingSize      string         `json:"serving_size"`
}

// Flexible decodes a JSON string or number into its string form.
// null and missing values decode to "".
type Flexible string

// UnmarshalJSON implements json.Unmarshaler
func (f *Flexible) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Flexible(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Objects, arrays and booleans carry no usable value
		*f = ""
		return nil
	}
	*f = Flexible(n.String())
	return nil
}

// Normalize maps a raw record onto the canonical Product. It never fails:
// a record missing every field still yields an ID and a display name.
func Normalize(raw RawProduct) Product {
	p := Product{
		ID:              firstNonEmpty(string(raw.ID), string(raw.Code), string(raw.InternalID)),
		DisplayName:     firstNonEmpty(raw.ProductName, raw.ProductNameEn, UnknownProductName),
		ImageURL:        optional(raw.ImageURL, raw.ImageFrontURL),
		NutritionGrade:  normalizeGrade(raw.NutritionGrades, raw.NutritionGradeFr, raw.NutriscoreGrade),
		Brands:          optional(raw.Brands),
		Categories:      optional(raw.Categories),
		Labels:          optional(raw.Labels),
		Countries:       optional(raw.Countries),
		BrandTags:       raw.BrandsTags,
		CategoryTags:    raw.CategoriesTags,
		LabelTags:       raw.LabelsTags,
		CountryTags:     raw.CountriesTags,
		Nutrients:       normalizeNutrients(raw.Nutriments),
		EcoGrade:        optional(raw.EcoscoreGrade),
		NovaGroup:       optionalInt(string(raw.NovaGroup)),
		ServingSize:     optional(raw.ServingSize),
		IngredientsText: optional(raw.IngredientsText, raw.IngredientsEn),
	}
	if p.ID == "" {
		p.ID = newID()
	}
	return p
}

// NormalizeAll normalizes a batch of raw records, preserving order
func NormalizeAll(raws []RawProduct) []Product {
	products := make([]Product, 0, len(raws))
	for _, raw := range raws {
		products = append(products, Normalize(raw))
	}
	return products
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func optional(values ...string) *string {
	v := firstNonEmpty(values...)
	if v == "" {
		return nil
	}
	return &v
}

func optionalInt(value string) *int {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	n := int(f)
	return &n
}

// normalizeGrade picks the first candidate that is a Nutri-Score letter.
// Placeholders such as "unknown" or "not-applicable" are skipped.
func normalizeGrade(candidates ...string) *string {
	for _, c := range candidates {
		g := strings.ToUpper(strings.TrimSpace(c))
		if len(g) == 1 && g[0] >= 'A' && g[0] <= 'E' {
			return &g
		}
	}
	return nil
}

// normalizeNutrients keeps the numeric base keys of an OFF nutriments object.
// Derived keys (energy_100g, fat_unit, ...) are folded into their base key.
func normalizeNutrients(nutriments map[string]any) map[string]Nutrient {
	if len(nutriments) == 0 {
		return nil
	}

	nutrients := make(map[string]Nutrient)
	for key, raw := range nutriments {
		if strings.Contains(key, "_") {
			continue
		}
		value, ok := toFloat(raw)
		if !ok {
			continue
		}
		n := Nutrient{Value: value}
		if unit, ok := nutriments[key+"_unit"].(string); ok {
			n.Unit = unit
		}
		nutrients[key] = n
	}

	if len(nutrients) == 0 {
		return nil
	}
	return nutrients
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

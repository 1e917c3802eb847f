package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNormalize_Identifier(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "id wins over code",
			raw:      `{"id":"abc","code":"3017620422003","_id":"x"}`,
			expected: "abc",
		},
		{
			name:     "code when id missing",
			raw:      `{"code":"3017620422003","_id":"x"}`,
			expected: "3017620422003",
		},
		{
			name:     "internal id as last resort",
			raw:      `{"_id":"internal-1"}`,
			expected: "internal-1",
		},
		{
			name:     "numeric code",
			raw:      `{"code":3017620422003}`,
			expected: "3017620422003",
		},
		{
			name:     "null id falls through",
			raw:      `{"id":null,"code":"42"}`,
			expected: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw RawProduct
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &raw))

			p := Normalize(raw)
			assert.Equal(t, tt.expected, p.ID)
		})
	}
}

func TestNormalize_FallbackIdentifierIsGenerated(t *testing.T) {
	original := newID
	defer func() { newID = original }()

	calls := 0
	newID = func() string {
		calls++
		return "generated"
	}

	p := Normalize(RawProduct{})
	assert.Equal(t, "generated", p.ID)
	assert.Equal(t, 1, calls)
}

func TestNormalize_EmptyRecordIsTotal(t *testing.T) {
	for i := 0; i < 5; i++ {
		p := Normalize(RawProduct{})
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, UnknownProductName, p.DisplayName)
		assert.Nil(t, p.ImageURL)
		assert.Nil(t, p.NutritionGrade)
		assert.Nil(t, p.Brands)
		assert.Nil(t, p.NovaGroup)
		assert.Nil(t, p.Nutrients)
		assert.Nil(t, p.IngredientsText)
	}
}

func TestNormalize_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawProduct
		expected string
	}{
		{"localized name", RawProduct{ProductName: "Pâte à tartiner", ProductNameEn: "Spread"}, "Pâte à tartiner"},
		{"english fallback", RawProduct{ProductNameEn: "Spread"}, "Spread"},
		{"blank localized name", RawProduct{ProductName: "   ", ProductNameEn: "Spread"}, "Spread"},
		{"unknown", RawProduct{}, UnknownProductName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.raw).DisplayName)
		})
	}
}

func TestNormalize_NutritionGrade(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawProduct
		expected *string
	}{
		{"grades field", RawProduct{NutritionGrades: "b", NutritionGradeFr: "c"}, strPtr("B")},
		{"french fallback", RawProduct{NutritionGradeFr: "d"}, strPtr("D")},
		{"nutri-score fallback", RawProduct{NutriscoreGrade: "E"}, strPtr("E")},
		{"placeholder skipped", RawProduct{NutritionGrades: "unknown", NutriscoreGrade: "a"}, strPtr("A")},
		{"out of range", RawProduct{NutritionGrades: "f"}, nil},
		{"missing", RawProduct{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.raw).NutritionGrade)
		})
	}
}

func TestNormalize_OptionalFields(t *testing.T) {
	raw := `{
		"code": "3017620422003",
		"product_name": "Nutella",
		"image_front_url": "https://images.example/front.jpg",
		"brands": "Ferrero",
		"brands_tags": ["ferrero"],
		"categories": "Spreads",
		"categories_tags": ["en:spreads"],
		"labels": "",
		"countries": "France",
		"ingredients_text_en": "sugar, palm oil",
		"ecoscore_grade": "e",
		"nova_group": 4,
		"serving_size": "15 g",
		"nutriments": {
			"energy-kcal": 539,
			"energy-kcal_unit": "kcal",
			"energy-kcal_100g": 539,
			"fat": "30.9",
			"fat_unit": "g",
			"sugars": 56.3,
			"nova-group": 4,
			"note": "n/a"
		}
	}`

	var r RawProduct
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	p := Normalize(r)

	assert.Equal(t, "3017620422003", p.ID)
	assert.Equal(t, "Nutella", p.DisplayName)
	assert.Equal(t, strPtr("https://images.example/front.jpg"), p.ImageURL)
	assert.Equal(t, strPtr("Ferrero"), p.Brands)
	assert.Equal(t, []string{"ferrero"}, p.BrandTags)
	assert.Equal(t, []string{"en:spreads"}, p.CategoryTags)
	assert.Nil(t, p.Labels, "empty string means unknown")
	assert.Equal(t, strPtr("France"), p.Countries)
	assert.Equal(t, strPtr("sugar, palm oil"), p.IngredientsText)
	assert.Equal(t, strPtr("e"), p.EcoGrade)
	require.NotNil(t, p.NovaGroup)
	assert.Equal(t, 4, *p.NovaGroup)
	assert.Equal(t, strPtr("15 g"), p.ServingSize)

	assert.Equal(t, Nutrient{Value: 539, Unit: "kcal"}, p.Nutrients["energy-kcal"])
	assert.Equal(t, Nutrient{Value: 30.9, Unit: "g"}, p.Nutrients["fat"])
	assert.Equal(t, Nutrient{Value: 56.3}, p.Nutrients["sugars"])
	assert.NotContains(t, p.Nutrients, "energy-kcal_100g")
	assert.NotContains(t, p.Nutrients, "note")
	_, reported := p.Nutrients["proteins"]
	assert.False(t, reported, "absent nutrients stay absent")
}

func TestFlexible_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input    string
		expected Flexible
	}{
		{`"abc"`, "abc"},
		{`123`, "123"},
		{`1.5`, "1.5"},
		{`null`, ""},
		{`true`, ""},
		{`{"a":1}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var f Flexible
			require.NoError(t, json.Unmarshal([]byte(tt.input), &f))
			assert.Equal(t, tt.expected, f)
		})
	}
}

func TestNormalizeAll_PreservesOrder(t *testing.T) {
	products := NormalizeAll([]RawProduct{
		{Code: "1", ProductName: "b"},
		{Code: "2", ProductName: "a"},
		{Code: "1", ProductName: "b"},
	})

	require.Len(t, products, 3)
	assert.Equal(t, "1", products[0].ID)
	assert.Equal(t, "2", products[1].ID)
	assert.Equal(t, "1", products[2].ID, "duplicates are kept")
}

func TestCartLine_JSONRoundTrip(t *testing.T) {
	line := CartLine{
		Product: Product{
			ID:             "3017620422003",
			DisplayName:    "Nutella",
			NutritionGrade: strPtr("E"),
			Nutrients:      map[string]Nutrient{"fat": {Value: 30.9, Unit: "g"}},
		},
		Quantity: 2,
	}

	data, err := json.Marshal(line)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"quantity":2`)
	assert.NotContains(t, string(data), "image_url")

	var decoded CartLine
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, line, decoded)
}

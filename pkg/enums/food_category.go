package enums

import "fmt"

type FoodCategory string

const (
	FoodCategoryProduce  FoodCategory = "produce"
	FoodCategoryPrepared FoodCategory = "prepared"
	FoodCategoryBakery   FoodCategory = "bakery"
	FoodCategoryDairy    FoodCategory = "dairy"
	FoodCategoryPantry   FoodCategory = "pantry"
	FoodCategoryOther    FoodCategory = "other"
)

var validFoodCategories = []FoodCategory{
	FoodCategoryProduce,
	FoodCategoryPrepared,
	FoodCategoryBakery,
	FoodCategoryDairy,
	FoodCategoryPantry,
	FoodCategoryOther,
}

func (c FoodCategory) String() string {
	return string(c)
}

func (c FoodCategory) IsValid() bool {
	for _, candidate := range validFoodCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseFoodCategory converts raw input into a FoodCategory.
func ParseFoodCategory(value string) (FoodCategory, error) {
	for _, candidate := range validFoodCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid food category %q", value)
}

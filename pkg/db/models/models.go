package models

// All lists every hosted model, in dependency order, for schema bootstrapping
// on sqlite and in tests.
func All() []any {
	return []any{
		&User{},
		&Profile{},
		&FoodListing{},
		&Claim{},
		&UserImpact{},
		&PhoneOTP{},
	}
}

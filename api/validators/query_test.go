package validators

import (
	"net/http/httptest"
	"testing"

	"github.com/abundantshare/share-backend/pkg/enums"
)

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=20", nil)
	if got, err := ParseQueryInt(req, "limit", 50, 1, 100); err != nil || got != 20 {
		t.Fatalf("expected 20, got %d err=%v", got, err)
	}
	if got, _ := ParseQueryInt(httptest.NewRequest("GET", "/", nil), "limit", 50, 1, 100); got != 50 {
		t.Fatalf("expected default, got %d", got)
	}
	if _, err := ParseQueryInt(httptest.NewRequest("GET", "/?limit=0", nil), "limit", 50, 1, 100); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Idly Box  ", 4); got != "Idly" {
		t.Fatalf("unexpected %q", got)
	}
	if SanitizeOptional(nil, 10) != nil {
		t.Fatal("expected nil to stay nil")
	}
}

func TestParseQueryBool(t *testing.T) {
	if got, err := ParseQueryBool(httptest.NewRequest("GET", "/?unread=true", nil), "unread"); err != nil || !got {
		t.Fatalf("expected true, got %v err=%v", got, err)
	}
	if _, err := ParseQueryBool(httptest.NewRequest("GET", "/?unread=maybe", nil), "unread"); err == nil {
		t.Fatal("expected boolean error")
	}
}

func TestParseQueryEnum(t *testing.T) {
	got, ok, err := ParseQueryEnum(httptest.NewRequest("GET", "/?category=Bakery", nil), "category", enums.ParseFoodCategory)
	if err != nil || !ok || got != enums.FoodCategoryBakery {
		t.Fatalf("expected bakery, got %q ok=%v err=%v", got, ok, err)
	}
	if _, ok, err := ParseQueryEnum(httptest.NewRequest("GET", "/", nil), "category", enums.ParseFoodCategory); ok || err != nil {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}
	if _, _, err := ParseQueryEnum(httptest.NewRequest("GET", "/?category=meat", nil), "category", enums.ParseFoodCategory); err == nil {
		t.Fatal("expected unknown value error")
	}
}

package plan

import (
	"testing"

	"github.com/xraph/accredit/subscription"
)

func TestCatalogResolve(t *testing.T) {
	c, err := DefaultCatalog().WithPrices(string(KindCMEAnnual), "price_annual")
	if err != nil {
		t.Fatalf("WithPrices: %v", err)
	}

	tests := []struct {
		name     string
		prices   []string
		metadata map[string]string
		want     Kind
		found    bool
	}{
		{"by price", []string{"price_other", "price_annual"}, nil, KindCMEAnnual, true},
		{"by tier metadata", nil, map[string]string{"tier": "board_review"}, KindBoardReview, true},
		{"by plan metadata, case folded", nil, map[string]string{"plan": " CME_Credits "}, KindCredits, true},
		{"price wins over metadata", []string{"price_annual"}, map[string]string{"tier": "board_review"}, KindCMEAnnual, true},
		{"unknown", []string{"price_x"}, map[string]string{"tier": "gold"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := c.Resolve(tt.prices, tt.metadata)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if ok && p.Kind != tt.want {
				t.Errorf("kind = %s, want %s", p.Kind, tt.want)
			}
		})
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	if _, err := NewCatalog(Plan{Slug: "a"}, Plan{Slug: "a"}); err == nil {
		t.Error("duplicate slug accepted")
	}
	if _, err := NewCatalog(Plan{Slug: "a", PriceIDs: []string{"p"}}, Plan{Slug: "b", PriceIDs: []string{"p"}}); err == nil {
		t.Error("duplicate price accepted")
	}
	if _, err := DefaultCatalog().WithPrices("gold", "p"); err == nil {
		t.Error("unknown slug accepted")
	}
}

func TestSubscriptionKind(t *testing.T) {
	c := DefaultCatalog()

	annual, _ := c.BySlug("cme_annual")
	if k, ok := annual.SubscriptionKind(); !ok || k != subscription.KindCMEAnnual {
		t.Errorf("annual kind = %s, %v", k, ok)
	}

	credits, _ := c.BySlug("cme_credits")
	if _, ok := credits.SubscriptionKind(); ok {
		t.Error("credit packs are not subscriptions")
	}
}

func TestPricedCatalog(t *testing.T) {
	c, err := PricedCatalog(map[Kind][]string{
		KindCMEAnnual:   {"price_a1", "price_a2"},
		KindBoardReview: {"price_br"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if p, ok := c.ByPrice("price_a2"); !ok || p.Kind != KindCMEAnnual {
		t.Errorf("price_a2 = %+v, %v", p, ok)
	}
	if p, ok := c.ByPrice("price_br"); !ok || p.Kind != KindBoardReview {
		t.Errorf("price_br = %+v, %v", p, ok)
	}

	if _, err := PricedCatalog(map[Kind][]string{
		KindCMEAnnual:   {"dup"},
		KindBoardReview: {"dup"},
	}); err == nil {
		t.Error("shared price accepted")
	}
}

// Package plan maps the payment processor's price references onto the
// products Accredit understands.
package plan

import (
	"fmt"
	"strings"

	"github.com/xraph/accredit/subscription"
)

// Kind is the product a plan grants.
type Kind string

const (
	KindCMEAnnual   Kind = "cme_annual"
	KindBoardReview Kind = "board_review"
	KindCredits     Kind = "cme_credits"
)

// Period is the billing interval of a plan.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodNone    Period = "none"
)

// Plan is one sellable product and the processor price ids that bill it.
type Plan struct {
	Slug     string   `json:"slug" mapstructure:"slug" yaml:"slug"`
	Name     string   `json:"name" mapstructure:"name" yaml:"name"`
	Kind     Kind     `json:"kind" mapstructure:"kind" yaml:"kind"`
	Period   Period   `json:"period" mapstructure:"period" yaml:"period"`
	PriceIDs []string `json:"price_ids" mapstructure:"price_ids" yaml:"price_ids"`
}

// SubscriptionKind returns the subscription product the plan maps to.
// One-time credit plans have none.
func (p *Plan) SubscriptionKind() (subscription.Kind, bool) {
	switch p.Kind {
	case KindCMEAnnual:
		return subscription.KindCMEAnnual, true
	case KindBoardReview:
		return subscription.KindBoardReview, true
	default:
		return "", false
	}
}

// Catalog resolves processor references to plans.
type Catalog struct {
	plans   []*Plan
	bySlug  map[string]*Plan
	byPrice map[string]*Plan
}

// NewCatalog indexes plans. Slugs and price ids must be unique.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	c := &Catalog{
		bySlug:  make(map[string]*Plan, len(plans)),
		byPrice: make(map[string]*Plan),
	}

	for i := range plans {
		p := plans[i]
		p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
		if p.Slug == "" {
			return nil, fmt.Errorf("plan: slug is required")
		}
		if _, dup := c.bySlug[p.Slug]; dup {
			return nil, fmt.Errorf("plan: duplicate slug %q", p.Slug)
		}
		c.bySlug[p.Slug] = &p
		for _, price := range p.PriceIDs {
			if price == "" {
				continue
			}
			if other, dup := c.byPrice[price]; dup {
				return nil, fmt.Errorf("plan: price %q mapped to both %q and %q", price, other.Slug, p.Slug)
			}
			c.byPrice[price] = &p
		}
		c.plans = append(c.plans, &p)
	}

	return c, nil
}

// DefaultCatalog returns the three standard products with no price ids.
// Events then resolve through the "tier" metadata key.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog( //nolint:errcheck // static slugs are unique
		Plan{Slug: string(KindCMEAnnual), Name: "CME Annual", Kind: KindCMEAnnual, Period: PeriodYearly},
		Plan{Slug: string(KindBoardReview), Name: "Board Review", Kind: KindBoardReview, Period: PeriodMonthly},
		Plan{Slug: string(KindCredits), Name: "CME Credits", Kind: KindCredits, Period: PeriodNone},
	)
	return c
}

// WithPrices returns a copy of the catalog with extra price ids attached to
// the plan with the given slug.
func (c *Catalog) WithPrices(slug string, priceIDs ...string) (*Catalog, error) {
	plans := make([]Plan, 0, len(c.plans))
	found := false
	for _, p := range c.plans {
		cp := *p
		cp.PriceIDs = append([]string(nil), p.PriceIDs...)
		if cp.Slug == slug {
			cp.PriceIDs = append(cp.PriceIDs, priceIDs...)
			found = true
		}
		plans = append(plans, cp)
	}
	if !found {
		return nil, fmt.Errorf("plan: unknown slug %q", slug)
	}
	return NewCatalog(plans...)
}

// PricedCatalog returns the default catalog with price ids attached per
// plan kind. Kinds with no ids are left to resolve through metadata.
func PricedCatalog(prices map[Kind][]string) (*Catalog, error) {
	c := DefaultCatalog()
	for _, kind := range []Kind{KindCMEAnnual, KindBoardReview, KindCredits} {
		ids := prices[kind]
		if len(ids) == 0 {
			continue
		}
		next, err := c.WithPrices(string(kind), ids...)
		if err != nil {
			return nil, err
		}
		c = next
	}
	return c, nil
}

// BySlug returns the plan with the given slug.
func (c *Catalog) BySlug(slug string) (*Plan, bool) {
	p, ok := c.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	return p, ok
}

// ByPrice returns the plan billed by priceID.
func (c *Catalog) ByPrice(priceID string) (*Plan, bool) {
	p, ok := c.byPrice[priceID]
	return p, ok
}

// Resolve finds the plan for a processor object: first by any of the price
// ids, then by the "tier" or "plan" metadata value.
func (c *Catalog) Resolve(priceIDs []string, metadata map[string]string) (*Plan, bool) {
	for _, price := range priceIDs {
		if p, ok := c.ByPrice(price); ok {
			return p, true
		}
	}
	for _, key := range []string{"tier", "plan"} {
		if v, ok := metadata[key]; ok {
			if p, ok := c.BySlug(v); ok {
				return p, true
			}
		}
	}
	return nil, false
}

// List returns all plans in registration order.
func (c *Catalog) List() []*Plan {
	out := make([]*Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

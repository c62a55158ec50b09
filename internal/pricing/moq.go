package pricing

import (
	"sort"
	"strings"
)

// GroupVariant is one cart line counted towards its parent product's MOQ.
type GroupVariant struct {
	ItemID   string `json:"itemId"`
	SKU      string `json:"sku,omitempty"`
	Quantity int    `json:"quantity"`
}

// ProductGroup sums every variant of one parent product. MOQ applies to the group, not to a variant.
type ProductGroup struct {
	ProductID       string         `json:"productId"`
	MOQ             int            `json:"moq"`
	TotalQuantity   int            `json:"totalQuantity"`
	Variants        []GroupVariant `json:"variants"`
	MeetsMinimum    bool           `json:"meetsMinimum"`
	MissingQuantity int            `json:"missingQuantity"`
}

// ProductGroups is the result of AggregateProductGroups keyed by product id.
// Skipped lists line ids with a non-positive quantity; they count towards no group.
type ProductGroups struct {
	Groups  map[string]ProductGroup `json:"groups"`
	Skipped []string                `json:"skipped"`
	moqs    map[string]int
}

// AggregateProductGroups groups cart lines by product id (falling back to SKU, then line id) and
// checks each group's summed quantity against its MOQ. Lines with a non-positive quantity are
// skipped, as cart logistics skips them. The MOQ comes from the first line that
// carries one, else from moqs, else 1.
func AggregateProductGroups(items []CartLineItem, moqs map[string]int) ProductGroups {
	groups := make(map[string]ProductGroup)
	skipped := []string{}
	for _, item := range items {
		if item.Quantity <= 0 {
			skipped = append(skipped, item.ID)
			continue
		}
		key := groupKey(item)
		group, ok := groups[key]
		if !ok {
			group = ProductGroup{ProductID: key, Variants: []GroupVariant{}}
		}
		if group.MOQ <= 0 && item.MOQ > 0 {
			group.MOQ = item.MOQ
		}
		group.TotalQuantity += item.Quantity
		group.Variants = append(group.Variants, GroupVariant{ItemID: item.ID, SKU: item.SKU, Quantity: item.Quantity})
		groups[key] = group
	}

	for key, group := range groups {
		if group.MOQ <= 0 {
			group.MOQ = lookupMOQ(moqs, key)
		}
		group.MissingQuantity = max(0, group.MOQ-group.TotalQuantity)
		group.MeetsMinimum = group.TotalQuantity >= group.MOQ
		groups[key] = group
	}

	return ProductGroups{Groups: groups, Skipped: skipped, moqs: moqs}
}

func groupKey(item CartLineItem) string {
	if id := strings.TrimSpace(item.ProductID); id != "" {
		return id
	}
	if sku := strings.TrimSpace(item.SKU); sku != "" {
		return sku
	}
	return item.ID
}

func lookupMOQ(moqs map[string]int, productID string) int {
	if moq := moqs[productID]; moq > 0 {
		return moq
	}
	return 1
}

// Group returns the aggregated group for productID.
func (g ProductGroups) Group(productID string) (ProductGroup, bool) {
	group, ok := g.Groups[productID]
	return group, ok
}

// MeetsMOQ reports whether the product's quantity in the cart reaches its MOQ.
// A product that is not in the cart imposes nothing and reports true.
func (g ProductGroups) MeetsMOQ(productID string) bool {
	group, ok := g.Groups[productID]
	if !ok {
		return true
	}
	return group.MeetsMinimum
}

// QuantityNeeded returns how many more units are still required after adding additional units.
func (g ProductGroups) QuantityNeeded(productID string, additional int) int {
	moq, total := lookupMOQ(g.moqs, productID), 0
	if group, ok := g.Groups[productID]; ok {
		moq, total = group.MOQ, group.TotalQuantity
	}
	return max(0, moq-(total+additional))
}

// WouldMeetMOQ reports whether adding units would bring the product up to its MOQ.
func (g ProductGroups) WouldMeetMOQ(productID string, adding int) bool {
	return g.QuantityNeeded(productID, adding) == 0
}

// CanCheckout reports whether every product group meets its MOQ.
func (g ProductGroups) CanCheckout() bool {
	for _, group := range g.Groups {
		if !group.MeetsMinimum {
			return false
		}
	}
	return true
}

// Violations lists the groups below their MOQ ordered by product id.
func (g ProductGroups) Violations() []ProductGroup {
	out := make([]ProductGroup, 0)
	for _, group := range g.Groups {
		if !group.MeetsMinimum {
			out = append(out, group)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// AggregateProductGroups groups cart lines using the MOQ recorded on the product records.
func (e *Engine) AggregateProductGroups(items []CartLineItem, products map[string]Product) ProductGroups {
	moqs := make(map[string]int, len(products))
	for id, product := range products {
		if product.MOQ > 0 {
			moqs[strings.TrimSpace(id)] = product.MOQ
		}
	}
	return AggregateProductGroups(items, moqs)
}

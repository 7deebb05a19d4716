package position

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/faktura/internal/money"
)

// VATSubtotal is one line of a per-rate VAT breakdown.
type VATSubtotal struct {
	Net decimal.Decimal
	VAT decimal.Decimal
}

// SumNet aggregates the undiscounted net amounts of all positions.
func SumNet(positions []Position) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range positions {
		sum = sum.Add(p.Net())
	}
	return sum
}

// SumGross aggregates the gross amounts of all positions, each minus its own
// discount share. With reverseCharge the buyer self-assesses VAT, so the
// gross sum equals the net sum.
func SumGross(positions []Position, reverseCharge bool) decimal.Decimal {
	if reverseCharge {
		return SumNet(positions)
	}
	sum := decimal.Zero
	for _, p := range positions {
		sum = sum.Add(money.GrossOf(p.Net(), p.VatPercentage))
	}
	return sum
}

// SumDiscountedGross aggregates gross amounts after per-position discounts.
func SumDiscountedGross(positions []Position, reverseCharge bool) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range positions {
		net := p.DiscountedNet()
		if reverseCharge {
			sum = sum.Add(net)
			continue
		}
		sum = sum.Add(money.GrossOf(net, p.VatPercentage))
	}
	return sum
}

// VATBreakdown maps each VAT rate to its discounted net and vat subtotals.
// Reverse-charge invoices carry no VAT, so the mapping is empty.
func VATBreakdown(positions []Position, reverseCharge bool) map[string]VATSubtotal {
	breakdown := make(map[string]VATSubtotal)
	if reverseCharge {
		return breakdown
	}
	for _, p := range positions {
		key := p.VatPercentage.String()
		entry := breakdown[key]
		net := p.DiscountedNet()
		entry.Net = entry.Net.Add(net)
		entry.VAT = entry.VAT.Add(money.VATOf(net, p.VatPercentage))
		breakdown[key] = entry
	}
	return breakdown
}

// AllowanceBucket is one merged discount entry for a structured invoice
// export. Buckets with identical tax treatment are merged so a compliant
// export never carries duplicate allowance entries.
type AllowanceBucket struct {
	TaxCategory TaxCategory
	VatRate     decimal.Decimal
	Amount      decimal.Decimal
}

// AllowanceBuckets groups per-position discounts by (tax category, VAT rate).
// The result is sorted for deterministic export payloads.
func AllowanceBuckets(positions []Position) []AllowanceBucket {
	type key struct {
		category TaxCategory
		rate     string
	}
	merged := make(map[key]AllowanceBucket)
	for _, p := range positions {
		share := p.DiscountShare()
		if share.IsZero() {
			continue
		}
		k := key{category: p.TaxCategory, rate: p.VatPercentage.String()}
		bucket, ok := merged[k]
		if !ok {
			bucket = AllowanceBucket{TaxCategory: p.TaxCategory, VatRate: p.VatPercentage}
		}
		bucket.Amount = bucket.Amount.Add(share)
		merged[k] = bucket
	}

	buckets := make([]AllowanceBucket, 0, len(merged))
	for _, bucket := range merged {
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].TaxCategory != buckets[j].TaxCategory {
			return buckets[i].TaxCategory < buckets[j].TaxCategory
		}
		return buckets[i].VatRate.LessThan(buckets[j].VatRate)
	})
	return buckets
}

package model

import "github.com/shopspring/decimal"

// 税率・送料の設定
type Pricing struct {
	TaxRate               float64
	ShippingRate          int64
	FreeShippingThreshold int64
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:               0.10,
		ShippingRate:          30000,
		FreeShippingThreshold: 500000,
	}
}

type Prices struct {
	ItemsPrice    int64
	TaxPrice      int64
	ShippingPrice int64
	TotalPrice    int64
}

// 小計・税・送料・合計を計算する。
// 送料無料は小計がしきい値を「超えた」ときだけ（ちょうどは有料）。
func CalculatePrices(items []OrderItem, p Pricing) Prices {
	var itemsPrice int64
	for _, it := range items {
		itemsPrice += it.LineTotal()
	}

	tax := decimal.NewFromInt(itemsPrice).
		Mul(decimal.NewFromFloat(p.TaxRate)).
		Round(0).
		IntPart()

	shipping := p.ShippingRate
	if itemsPrice > p.FreeShippingThreshold {
		shipping = 0
	}

	return Prices{
		ItemsPrice:    itemsPrice,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    itemsPrice + tax + shipping,
	}
}

func (o *Order) applyPrices(p Prices) {
	o.ItemsPrice = p.ItemsPrice
	o.TaxPrice = p.TaxPrice
	o.ShippingPrice = p.ShippingPrice
	o.TotalPrice = p.ItemsPrice + p.TaxPrice + p.ShippingPrice
}

// ゲートウェイに送る金額（小数2桁分を整数化）
func (o *Order) GatewayAmount() int64 {
	return decimal.NewFromInt(o.TotalPrice).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

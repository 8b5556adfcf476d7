package payments

import (
	"github.com/Im-Vestor/im-vestor-full-sub002/config"
)

type Product string

const (
	ProductPokes      Product = "POKES"
	ProductBoosts     Product = "BOOSTS"
	ProductHypertrain Product = "HYPERTRAIN"
)

const (
	MinQuantity = 1
	MaxQuantity = 100
)

// Catalog maps each product to its Stripe price. Quantity is pokes, boosts
// or hypertrain days depending on the product.
type Catalog map[Product]string

func NewCatalog(settings config.StripeSettings) Catalog {
	catalog := Catalog{}
	if settings.PokesPriceID != "" {
		catalog[ProductPokes] = settings.PokesPriceID
	}
	if settings.BoostsPriceID != "" {
		catalog[ProductBoosts] = settings.BoostsPriceID
	}
	if settings.HypertrainPriceID != "" {
		catalog[ProductHypertrain] = settings.HypertrainPriceID
	}
	return catalog
}

// Price returns the Stripe price of p, if p is sold.
func (c Catalog) Price(p Product) (string, bool) {
	price, ok := c[p]
	return price, ok && price != ""
}

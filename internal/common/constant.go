// Package common contains shared constants and sentinel errors used across
// the farmmarket client packages.
package common

// Table names exposed by the remote service.
const (
	TableUsers        = "users"
	TableProducts     = "products"
	TableMarketPrices = "market_prices"
)

// Storage buckets.
const (
	BucketProductImages = "product-images"
	BucketAvatars       = "avatars"
)

// Package cache provides per-instance memoization for methods and accessors.
//
// A memoized member computes its result once per distinct argument list and
// per receiver; later calls with equivalent arguments return the stored
// result. Keys come from a user HashFunc or from deep, order-insensitive
// structural hashing that tolerates cyclic values. Each receiver owns a
// bounded LRU store per member with optional TTL expiry, and stores can be
// grouped under tags for bulk invalidation through a TagRegistry.
//
// Receivers take part by embedding Instance:
//
//	type Catalog struct {
//		cache.Instance
//		db *sql.DB
//	}
//
//	var lookup = cache.MustMethod(func(ctx context.Context, c *Catalog, args ...any) (*Item, error) {
//		return c.load(ctx, args[0].(string))
//	}, cache.Options{Name: "Catalog.Lookup", Tags: []string{"catalog"}})
//
//	func (c *Catalog) Lookup(ctx context.Context, sku string) (*Item, error) {
//		return lookup.Call(ctx, c, sku)
//	}
//
// Calling cache.Clear("catalog") then drops every Catalog's cached lookups.
package cache

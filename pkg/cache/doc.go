// Package cache provides a shared Redis store for aircraft database documents.
//
// Shard documents and the aircraft type table are static files. Several
// processes pointed at the same feeder can share one Redis so that each shard
// is downloaded once for the whole fleet rather than once per process. The
// store sits below the in-process shard scheduler: a Redis hit still counts
// as a fetch for concurrency and dedup purposes, it just skips the network.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, "http://feeder.local/tar1090", "")
//
//	entry, err := manager.Get(ctx, "db/AB.json")
//	if err == cache.ErrCacheMiss {
//		// fetch from the origin, then manager.Set(ctx, "db/AB.json", entry)
//	}
//
// # Keys
//
// Keys are namespaced by prefix and origin, so Redis can be shared between
// resolvers for different feeders:
//
//	aircraftdb:feeder.local/tar1090:db/AB.json
//
// # Expiry
//
// Entries are written without a TTL. There is no eviction or revalidation;
// flush the keyspace when the upstream database is replaced.
//
// # Metrics
//
//   - aircraftdb_cache_hits_total{layer="redis"} - Cache hits
//   - aircraftdb_cache_misses_total - Cache misses
//   - aircraftdb_cache_size_bytes{layer="redis"} - Bytes written
//   - aircraftdb_cache_errors_total{operation} - Cache operation errors
package cache

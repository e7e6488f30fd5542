// Package batch resolves many aircraft identifiers in parallel.
//
// Lookups for one shard are shared by the underlying resolver, so a batch of
// addresses from one block costs a handful of shard fetches regardless of
// its size. This package only adds a worker pool on top:
//
//	resolver, _ := aircraftdb.New(aircraftdb.DefaultConfig("http://feeder.local/tar1090"))
//	records, err := batch.NewResolver(resolver, batch.DefaultConfig()).
//		ResolveAll(ctx, []string{"3C6444", "4B1805", "A1B2C3"})
//
// The batch resolver:
//   - Normalizes and deduplicates identifiers
//   - Spawns a worker pool (default 8 workers)
//   - Skips identifiers the database does not know
//   - Stops on the first network failure and returns partial data
package batch

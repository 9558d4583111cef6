// Package cachechain builds caches out of small levels that compose.
//
// A Level answers Get and Set asynchronously through a Future and accepts
// Clear and OnMemoryWarning synchronously. Everything else is a decorator
// over a Level:
//
//   - BasicCache: a Level made of plain functions.
//   - TransformValues / TransformKeys / StringKeys: change the value or key
//     type of a level through a transformer (see CodecTransformer).
//   - PoolCache: concurrent Gets for one key share a single fetch.
//   - Pipeline: levels tried first to last; a later hit is written back into
//     earlier levels per PopulatePolicy; Set, Clear and OnMemoryWarning reach
//     every level.
//
// Leaf levels over byte stores come from NewProviderLevel and the packages
// under provider/. Keys are stored as:
//
//	<namespace>:<key>        - keys up to util.MaxKeyLen
//	<namespace>:h:<sha256>   - longer keys
//
// Typical wiring:
//
//	mem, _ := cachechain.NewProviderLevel(cachechain.ProviderOptions{Namespace: "img", Provider: ristrettoProvider})
//	disk, _ := cachechain.NewProviderLevel(cachechain.ProviderOptions{Namespace: "img", Provider: boltProvider, TTL: 24 * time.Hour})
//	images := cachechain.Pooled[string, []byte](cachechain.Compose[string, []byte](mem, disk))
//	users := cachechain.TransformValues[string, []byte, User](images, cachechain.CodecTransformer[User](codec.JSON[User]{}))
//
// Misses fail with ErrNotFound; nothing in this package retries.
package cachechain

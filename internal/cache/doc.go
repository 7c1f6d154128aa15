// Package cache keeps rendered audio so that identical render requests do
// not hit the engine twice. It pairs an in-memory LRU (L1) with a
// compressed on-disk store (L2) and wraps any ucra.Renderer.
package cache

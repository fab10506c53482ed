// Package output writes build artifacts to disk.
//
// [FileWriter] creates parent directories and replaces files atomically
// (temporary sibling plus rename), so the development server never serves
// a partially written asset.
package output

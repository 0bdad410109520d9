// Package domain holds the small vocabulary shared by the toolchain,
// the executor and the grid: stages, model and score types, and list ranges.
package domain

// Package dem supplies elevation rasters to the viewshed engine.
//
// Providers turn an observer position and radius into a *mat.Dense grid
// plus the georeferencing needed to map lat/lon back to cells. The
// Terrarium provider mosaics Web-Mercator PNG tiles fetched over HTTP and
// cached on disk or in an S3-compatible bucket; the synthetic provider
// generates deterministic noise terrain for tests and benchmarks.
package dem

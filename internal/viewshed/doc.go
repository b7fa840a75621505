// Package viewshed computes terrain visibility masks over an in-memory
// elevation raster.
//
// Responsibilities: input validation, bilinear elevation sampling, Earth
// curvature correction, the exact line-of-sight engine (Baseline), the
// approximate direction-bucketed horizon sweep (Radial, the default) and
// majority-filter smoothing of the resulting mask.
// Key types: Params, Mask, Engine, Algorithm.
//
// Dependency rule: this package performs no network or file I/O and never
// imports the dem, scenario, api or events packages. Log streams are off
// until SetLogWriters is called.
package viewshed

// Package digipin implements the DIGIPIN geocoding grid: a hierarchical
// 4x4 subdivision of a fixed bounding region that maps a latitude/longitude
// pair to a 10-symbol code and back to the cell the code addresses.
//
// All functions are pure. The symbol grid and the bounding region are
// built once at init and never written afterwards, so a Codec is safe for
// concurrent use without locking.
package digipin

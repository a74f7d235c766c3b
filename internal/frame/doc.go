// Package frame implements the length-prefixed binary format used to carry
// streamed audio payloads: a 4-byte little-endian length followed by exactly
// that many payload bytes. The decoder is incremental and independent of the
// transport, so frames may arrive split across any number of deliveries.
package frame

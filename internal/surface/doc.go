// Package surface defines the rendering-surface contract and a goja-backed
// reference implementation used by the gateway and by bridge tests.
package surface

// Package kitti assembles the KITTI tracking tracklet dataset.
//
// Responsibilities:
//   - map a split to its scene ids
//   - index annotations into tracklets (annotations)
//   - materialize and cache tracklets when caching is on (cache)
//   - resolve global frame numbers (index) and serve frames and templates
//
// Key types:
//   - Dataset: immutable after Open, safe for concurrent readers
//
// Dependency rule: kitti may import every kitti/* subpackage; none of them
// import kitti.
package kitti

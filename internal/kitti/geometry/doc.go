// Package geometry holds the 3D primitives shared by the KITTI tracklet
// layers: homogeneous transforms, oriented boxes, and point clouds.
//
// Responsibilities: camera ↔ velodyne transforms, box orientation and
// corners, axis-aligned cropping, and template point cloud merging.
// Key types: Transform, Box, PointCloud.
//
// Dependency rule: geometry depends on gonum only, never on other kitti
// packages.
package geometry

// Package annotations owns the label layer of the KITTI tracking dataset.
//
// Responsibilities: parsing label_02 tables into immutable records,
// category filtering, grouping records into physical tracks, and temporal
// subsampling into the ordered tracklet list every other layer indexes.
// Key types: Record, Category, Subsampling, Tracklet.
//
// The tracklet order is observable: it defines global frame indices.
// Scenes keep the caller's order, tracks are ascending by id, exhaustive
// intervals keep their listed order and phases ascend.
package annotations

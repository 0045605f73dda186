package debugserver

import (
	"github.com/banshee-data/tracklets/internal/kitti/frames"
	"github.com/banshee-data/tracklets/internal/kitti/geometry"
)

type cloudResponse struct {
	Points int       `json:"points"`
	Dims   int       `json:"dims"`
	Data   []float32 `json:"data,omitempty"`
}

func newCloudResponse(pc geometry.PointCloud, withData bool) cloudResponse {
	out := cloudResponse{Points: pc.Len(), Dims: pc.Dims}
	if withData {
		out.Data = pc.Data
	}
	return out
}

type boxResponse struct {
	Center [3]float64 `json:"center"`
	// Size is width, length, height.
	Size [3]float64 `json:"size"`
	// Orientation is a unit quaternion as w, x, y, z.
	Orientation [4]float64    `json:"orientation"`
	Corners     [8][3]float64 `json:"corners"`
}

type frameResponse struct {
	Tracklet int           `json:"tracklet"`
	Frame    int           `json:"frame"`
	Scene    int           `json:"scene"`
	TrackID  int           `json:"track_id"`
	Type     string        `json:"type"`
	Sequence int           `json:"sequence_frame"`
	Box      boxResponse   `json:"box"`
	Cloud    cloudResponse `json:"cloud"`
}

type templateResponse struct {
	Tracklet int           `json:"tracklet"`
	Cloud    cloudResponse `json:"cloud"`
}

func newFrameResponse(t, f int, frame frames.Frame, withData bool) frameResponse {
	b := frame.Box
	box := boxResponse{
		Center:      [3]float64{b.Center.X, b.Center.Y, b.Center.Z},
		Size:        [3]float64{b.Size.X, b.Size.Y, b.Size.Z},
		Orientation: [4]float64{b.Orientation.Real, b.Orientation.Imag, b.Orientation.Jmag, b.Orientation.Kmag},
	}
	for i, c := range b.Corners() {
		box.Corners[i] = [3]float64{c.X, c.Y, c.Z}
	}
	return frameResponse{
		Tracklet: t,
		Frame:    f,
		Scene:    frame.Record.Scene,
		TrackID:  frame.Record.TrackID,
		Type:     frame.Record.Type,
		Sequence: frame.Record.Frame,
		Box:      box,
		Cloud:    newCloudResponse(frame.PointCloud, withData),
	}
}

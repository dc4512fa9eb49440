// Package vision models the camera/hand-pose collaborator consumed by the
// recording pipeline. The pose estimator itself lives outside this repo;
// everything here is the plumbing around it: the latest-result slot the
// synchronizer polls, the one-shot readiness gate for the heavy model
// load, and the detector rate controller.
package vision

// NumLandmarks is the number of hand keypoints per detection.
const NumLandmarks = 21

// Landmarks is one hand pose: 21 keypoints with x/y/z each.
type Landmarks [NumLandmarks][3]float64

// Result is the triple the synchronizer polls every tick. Image holds the
// encoded camera frame when one is available; it may be nil independent of
// Valid. Valid reports whether Landmarks carry a real detection.
type Result struct {
	Image     []byte
	Landmarks Landmarks
	Valid     bool
	Seq       uint64 // increments per published result
}

// Source is anything exposing the most recent vision result without
// blocking. The zero Result (no image, zero landmarks, Valid=false) is
// what callers see before anything has been published.
type Source interface {
	Latest() Result
}

// Detector turns one camera frame into a hand pose, or reports no hand.
type Detector interface {
	Detect(frame []byte) (Landmarks, bool, error)
}

// FrameSource supplies encoded camera frames at the camera's own pace.
type FrameSource interface {
	NextFrame() ([]byte, error)
}

// HandConnections pairs landmark indices that form the hand skeleton, in
// the conventional 21-point topology. Consumers use it for overlays.
var HandConnections = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 4}, // thumb
	{0, 5}, {5, 6}, {6, 7}, {7, 8}, // index
	{5, 9}, {9, 10}, {10, 11}, {11, 12}, // middle
	{9, 13}, {13, 14}, {14, 15}, {15, 16}, // ring
	{13, 17}, {17, 18}, {18, 19}, {19, 20}, // pinky
	{0, 17},
}

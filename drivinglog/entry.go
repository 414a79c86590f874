package drivinglog

import (
	"path"
	"path/filepath"
	"strings"
)

// DecodedEntry is a view over an Entry of a DrivingLog that decodes the
// camera images on first access and keeps them for its lifetime.
type DecodedEntry struct {
	Entry

	log *DrivingLog

	leftCam   *Image
	centerCam *Image
	rightCam  *Image
}

// ImagePath re-roots a recorded image filename under the log's IMG folder.
// Only the base name of the recorded path is kept, so logs recorded on a
// different machine or folder layout resolve correctly.
func (e *DecodedEntry) ImagePath(recorded string) string {
	return filepath.Join(e.log.ImgPath(), path.Base(strings.ReplaceAll(recorded, `\`, "/")))
}

// LeftCam returns the decoded left camera image.
func (e *DecodedEntry) LeftCam() (*Image, error) {
	return e.cached(&e.leftCam, e.Entry.LeftCam)
}

// CenterCam returns the decoded center camera image.
func (e *DecodedEntry) CenterCam() (*Image, error) {
	return e.cached(&e.centerCam, e.Entry.CenterCam)
}

// RightCam returns the decoded right camera image.
func (e *DecodedEntry) RightCam() (*Image, error) {
	return e.cached(&e.rightCam, e.Entry.RightCam)
}

func (e *DecodedEntry) cached(slot **Image, recorded string) (*Image, error) {
	if *slot != nil {
		return *slot, nil
	}
	im, err := ReadImage(e.ImagePath(recorded))
	if err != nil {
		return nil, err
	}
	*slot = im
	return im, nil
}

// FlippedTargets returns the targets of the left-right mirrored center image:
// only the steering angle changes sign.
func (e *DecodedEntry) FlippedTargets() [4]float64 {
	t := e.Targets()
	t[0] = -t[0]
	return t
}

// CorrectedTargets returns the targets with steeringAdd applied to the
// steering angle, saturated to [-maxAbs, maxAbs].
func (e *DecodedEntry) CorrectedTargets(steeringAdd, maxAbs float64) [4]float64 {
	t := e.Targets()
	t[0] = Limit(maxAbs, t[0]+steeringAdd)
	return t
}

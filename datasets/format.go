package datasets

import (
	"encoding/binary"
	"math"

	"github.com/Noofbiz/drivingset/errs"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

const (
	// Magic starts every container file.
	Magic = "DLDS"

	// FormatVersion is incremented when the binary layout changes.
	FormatVersion uint32 = 1

	// HeaderVersion tags the JSON header.
	HeaderVersion = "drivingset.v1"

	// preambleSize covers the magic, the format version and the header length.
	preambleSize = 16
)

// Header describes the groups of a container. It is stored as JSON right
// after the preamble; array offsets are relative to the end of the header.
//
// Seed and ValidFraction record the aggregation that produced the groups.
type Header struct {
	Version       string        `json:"version"`
	Seed          int64         `json:"seed,omitempty"`
	ValidFraction float64       `json:"valid_fraction,omitempty"`
	Groups        []GroupHeader `json:"groups"`
}

// GroupHeader lists the arrays of one group.
type GroupHeader struct {
	Name   string        `json:"name"`
	Arrays []ArrayHeader `json:"arrays"`
}

// ArrayHeader locates one row-major little-endian array.
type ArrayHeader struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Dims   []int  `json:"dims"`
	Offset int64  `json:"offset"`
}

// Shape returns the gomlx shape of the array.
func (a ArrayHeader) Shape() (shapes.Shape, error) {
	dt, err := ParseDType(a.DType)
	if err != nil {
		return shapes.Shape{}, err
	}
	return shapes.Make(dt, a.Dims...), nil
}

// Rows is the size of the leading dimension.
func (a ArrayHeader) Rows() int {
	if len(a.Dims) == 0 {
		return 0
	}
	return a.Dims[0]
}

// RowSize is the number of bytes of one row.
func (a ArrayHeader) RowSize() int64 {
	dt, err := ParseDType(a.DType)
	if err != nil {
		return 0
	}
	size := int64(dtypeSize(dt))
	for _, d := range a.Dims[1:] {
		size *= int64(d)
	}
	return size
}

// fits reports whether the array holds at most limit bytes. It never
// multiplies past limit, so absurd dims in a corrupt header can't overflow.
func (a ArrayHeader) fits(limit int64) bool {
	if limit < 0 {
		return false
	}
	dt, err := ParseDType(a.DType)
	if err != nil {
		return false
	}
	size := int64(dtypeSize(dt))
	for _, d := range a.Dims {
		if d < 0 {
			return false
		}
		if d == 0 {
			return true
		}
		if size > limit/int64(d) {
			return false
		}
		size *= int64(d)
	}
	return size <= limit
}

// Size is the number of bytes of the whole array.
func (a ArrayHeader) Size() int64 {
	return int64(a.Rows()) * a.RowSize()
}

func (h Header) group(name string) (GroupHeader, bool) {
	for _, g := range h.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupHeader{}, false
}

func (g GroupHeader) array(name string) (ArrayHeader, bool) {
	for _, a := range g.Arrays {
		if a.Name == name {
			return a, true
		}
	}
	return ArrayHeader{}, false
}

var dtypeNames = map[dtypes.DType]string{
	dtypes.Uint8:   "uint8",
	dtypes.Float16: "float16",
	dtypes.Float32: "float32",
	dtypes.Float64: "float64",
}

// ParseDType maps a dtype name ("uint8", "float16", "float32", "float64")
// to its gomlx dtype.
func ParseDType(name string) (dtypes.DType, error) {
	for dt, n := range dtypeNames {
		if n == name {
			return dt, nil
		}
	}
	return dtypes.InvalidDType, errors.Wrapf(errs.ErrConfiguration, "unsupported dtype %q", name)
}

// ParseTargetDType is ParseDType restricted to the float dtypes targets are
// stored as.
func ParseTargetDType(name string) (dtypes.DType, error) {
	dt, err := ParseDType(name)
	if err != nil {
		return dt, err
	}
	if !isTargetDType(dt) {
		return dtypes.InvalidDType, errors.Wrapf(errs.ErrConfiguration, "targets dtype must be float16, float32 or float64, got %q", name)
	}
	return dt, nil
}

// DTypeName is the inverse of ParseDType.
func DTypeName(dt dtypes.DType) string {
	if n, ok := dtypeNames[dt]; ok {
		return n
	}
	return dt.String()
}

func isTargetDType(dt dtypes.DType) bool {
	return dt == dtypes.Float16 || dt == dtypes.Float32 || dt == dtypes.Float64
}

func dtypeSize(dt dtypes.DType) int {
	switch dt {
	case dtypes.Uint8:
		return 1
	case dtypes.Float16:
		return 2
	case dtypes.Float32:
		return 4
	case dtypes.Float64:
		return 8
	}
	return 0
}

// putFloat encodes v into buf, which must hold at least dtypeSize(dt) bytes.
func putFloat(buf []byte, dt dtypes.DType, v float64) {
	switch dt {
	case dtypes.Float16:
		binary.LittleEndian.PutUint16(buf, float16.Fromfloat32(float32(v)).Bits())
	case dtypes.Float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	case dtypes.Float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	}
}

func getFloat(buf []byte, dt dtypes.DType) float64 {
	switch dt {
	case dtypes.Float16:
		return float64(float16.Frombits(binary.LittleEndian.Uint16(buf)).Float32())
	case dtypes.Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case dtypes.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
	return math.NaN()
}

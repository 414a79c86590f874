package drivinglog

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/Noofbiz/drivingset/errs"
	"github.com/pkg/errors"
)

// Field numbers of a driving_log.csv row.
const (
	FieldCenterCam = iota
	FieldLeftCam
	FieldRightCam
	FieldSteeringAngle
	FieldThrottle
	FieldBrake
	FieldSpeed

	numFields
)

var fieldNames = [numFields]string{
	"center_cam", "left_cam", "right_cam",
	"steering_angle", "throttle", "brake", "speed",
}

// Entry is one recorded frame: the three camera filenames and the telemetry.
type Entry struct {
	CenterCam string
	LeftCam   string
	RightCam  string

	SteeringAngle float64
	Throttle      float64
	Brake         float64
	Speed         float64
}

// Targets returns the telemetry in target column order.
func (e Entry) Targets() [4]float64 {
	return [4]float64{e.SteeringAngle, e.Throttle, e.Brake, e.Speed}
}

// ReadFile reads every entry of a driving_log.csv file.
func ReadFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrIO, "failed to open %s: %v", path, err)
	}
	defer file.Close()

	entries, err := read(path, file)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Read reads every entry from r. Rows have no header and exactly seven
// positional fields.
func Read(r io.Reader) ([]Entry, error) {
	return read(CSVFileName, r)
}

func read(name string, r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = numFields
	reader.TrimLeadingSpace = true

	var entries []Entry
	// next is the line the following row should start on. encoding/csv
	// skips blank lines, so a row starting further down follows one.
	next := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				if perr.StartLine > next {
					return nil, &errs.ParseError{Path: name, Row: next, Err: errors.New("empty row")}
				}
				if errors.Is(perr.Err, csv.ErrFieldCount) {
					return nil, &errs.ParseError{Path: name, Row: perr.StartLine, Err: errors.Errorf("expected %d fields, got %d", numFields, len(record))}
				}
				return nil, &errs.ParseError{Path: name, Row: perr.StartLine, Err: perr.Err}
			}
			return nil, &errs.ParseError{Path: name, Row: next, Err: err}
		}

		row, _ := reader.FieldPos(0)
		if row > next {
			return nil, &errs.ParseError{Path: name, Row: next, Err: errors.New("empty row")}
		}
		last, _ := reader.FieldPos(len(record) - 1)
		next = last + 1

		entry, field, err := parseRecord(record)
		if err != nil {
			return nil, &errs.ParseError{Path: name, Row: row, Field: field, Err: err}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// parseRecord returns the name of the failing field along with the error.
func parseRecord(record []string) (Entry, string, error) {
	entry := Entry{
		CenterCam: strings.TrimSpace(record[FieldCenterCam]),
		LeftCam:   strings.TrimSpace(record[FieldLeftCam]),
		RightCam:  strings.TrimSpace(record[FieldRightCam]),
	}
	dst := [...]*float64{&entry.SteeringAngle, &entry.Throttle, &entry.Brake, &entry.Speed}
	for i, p := range dst {
		field := FieldSteeringAngle + i
		v, err := parseFloat64(record[field])
		if err != nil {
			return Entry{}, fieldNames[field], err
		}
		*p = v
	}
	return entry, "", nil
}

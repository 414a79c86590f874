// Package history stores per-epoch training and validation losses as a
// two column CSV table (train,valid).
package history

import (
	"os"

	"github.com/Noofbiz/drivingset/errs"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// Record is the loss of one epoch.
type Record struct {
	Train float64 `csv:"train"`
	Valid float64 `csv:"valid"`
}

// Write stores records at path with a train,valid header.
func Write(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errs.ErrIO, "failed to create history: %v", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&records, f); err != nil {
		return errors.Wrapf(errs.ErrIO, "failed to write history %s: %v", path, err)
	}
	return f.Close()
}

// Read loads the records of a history file.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrIO, "failed to open history: %v", err)
	}
	defer f.Close()
	var records []Record
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, errors.Wrapf(errs.ErrParse, "%s: %v", path, err)
	}
	return records, nil
}

// Losses splits records into the train and valid series.
func Losses(records []Record) (train, valid []float64) {
	train = make([]float64, len(records))
	valid = make([]float64, len(records))
	for i, r := range records {
		train[i], valid[i] = r.Train, r.Valid
	}
	return train, valid
}

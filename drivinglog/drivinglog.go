// Package drivinglog reads recorded driving sessions.
//
// A driving log is a folder holding a driving_log.csv file with one row per
// recorded frame, and an IMG subfolder with the three camera images each row
// refers to. Entries are parsed once per DrivingLog and images are decoded
// lazily, on first access, by the DecodedEntry views.
package drivinglog

import (
	"os"
	"path/filepath"

	"github.com/Noofbiz/drivingset/errs"
	"github.com/pkg/errors"
)

const (
	// ImgFolderName is the image subfolder of a driving log.
	ImgFolderName = "IMG"

	// CSVFileName is the telemetry file of a driving log.
	CSVFileName = "driving_log.csv"
)

// DrivingLog represents a folder with driving data.
type DrivingLog struct {
	// Path is the folder as given to Open.
	Path string

	entries []Entry
	decoded []*DecodedEntry
	parsed  bool
}

// Open validates the folder layout and returns a DrivingLog for it.
// Entries are not read until Entries or Decoded is called.
func Open(folderPath string) (*DrivingLog, error) {
	if !isDir(folderPath) {
		return nil, errors.Wrapf(errs.ErrConfiguration, "folder doesn't exist: %s", folderPath)
	}
	d := &DrivingLog{Path: folderPath}
	if !isDir(d.ImgPath()) {
		return nil, errors.Wrapf(errs.ErrConfiguration, "%s folder doesn't exist for: %s", ImgFolderName, folderPath)
	}
	if !isFile(d.CSVPath()) {
		return nil, errors.Wrapf(errs.ErrConfiguration, "%s file doesn't exist for: %s", CSVFileName, folderPath)
	}
	return d, nil
}

// ImgPath returns the image subfolder.
func (d *DrivingLog) ImgPath() string {
	return filepath.Join(d.Path, ImgFolderName)
}

// CSVPath returns the telemetry file.
func (d *DrivingLog) CSVPath() string {
	return filepath.Join(d.Path, CSVFileName)
}

// Entries parses the driving log on first call and returns the cached
// entries afterwards, in file order.
func (d *DrivingLog) Entries() ([]Entry, error) {
	if d.parsed {
		return d.entries, nil
	}
	entries, err := ReadFile(d.CSVPath())
	if err != nil {
		return nil, err
	}
	d.entries = entries
	d.parsed = true
	return d.entries, nil
}

// Decoded returns one lazily decoding view per entry. The views are created
// once and shared by every caller, so each image is decoded at most once for
// the lifetime of the DrivingLog.
func (d *DrivingLog) Decoded() ([]*DecodedEntry, error) {
	if d.decoded != nil {
		return d.decoded, nil
	}
	entries, err := d.Entries()
	if err != nil {
		return nil, err
	}
	decoded := make([]*DecodedEntry, len(entries))
	for i := range entries {
		decoded[i] = &DecodedEntry{log: d, Entry: entries[i]}
	}
	d.decoded = decoded
	return d.decoded, nil
}

// Len returns the number of entries, parsing the log if needed.
func (d *DrivingLog) Len() (int, error) {
	entries, err := d.Entries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

package tle

import (
	"errors"
	"time"
)

// ErrNoDataset is returned when no element-set dataset has been loaded yet.
var ErrNoDataset = errors.New("no TLE dataset loaded")

// ElementSet is one tracked object's two-line element set together with the
// fields parsed out of it.
type ElementSet struct {
	CatalogID string
	Name      string
	Epoch     time.Time
	Bstar     float64 // drag term in 1/earth radii
	Line1     string
	Line2     string
}

// EpochRange is the oldest and newest epoch in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is a complete set of element sets retrieved from one source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []ElementSet
}

// NewDataset builds a Dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, sats []ElementSet) *Dataset {
	ds := &Dataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: sats,
	}
	if len(sats) == 0 {
		return ds
	}

	ds.EpochRange = EpochRange{Min: sats[0].Epoch, Max: sats[0].Epoch}
	for _, s := range sats[1:] {
		if s.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = s.Epoch
		}
		if s.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = s.Epoch
		}
	}
	return ds
}

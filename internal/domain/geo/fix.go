package geo

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Fix is a single GPS position report from a driver device.
type Fix struct {
	DriverID   string
	OrderID    string
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
}

var (
	ErrMissingDriverID    = errors.New("driver ID is missing")
	ErrMissingOrderID     = errors.New("order ID is missing")
	ErrInvalidLatitude    = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude   = errors.New("longitude must be between -180 and 180")
	ErrRecordedAtZeroTime = errors.New("recorded_at must be a valid timestamp")
)

// NewFix constructs a validated Fix. A zero recordedAt defaults to now (UTC).
func NewFix(driverID, orderID string, latitude, longitude float64, recordedAt time.Time) (Fix, error) {
	fix := Fix{
		DriverID:   strings.TrimSpace(driverID),
		OrderID:    strings.TrimSpace(orderID),
		Latitude:   latitude,
		Longitude:  longitude,
		RecordedAt: recordedAt,
	}
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = time.Now().UTC()
	}
	if err := fix.Validate(); err != nil {
		return Fix{}, err
	}
	return fix, nil
}

// Validate checks invariants of the Fix.
func (fix Fix) Validate() error {
	if fix.DriverID == "" {
		return ErrMissingDriverID
	}
	if fix.OrderID == "" {
		return ErrMissingOrderID
	}
	if fix.Latitude < -90 || fix.Latitude > 90 || math.IsNaN(fix.Latitude) {
		return ErrInvalidLatitude
	}
	if fix.Longitude < -180 || fix.Longitude > 180 || math.IsNaN(fix.Longitude) {
		return ErrInvalidLongitude
	}
	if fix.RecordedAt.IsZero() {
		return ErrRecordedAtZeroTime
	}
	return nil
}

// Newer reports whether fix carries a strictly newer timestamp than other.
func (fix Fix) Newer(other Fix) bool {
	return fix.RecordedAt.After(other.RecordedAt)
}

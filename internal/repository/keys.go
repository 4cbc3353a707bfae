package repository

import (
	"errors"
	"net/url"
	"strings"
)

const keyPrefix = "salontime:"

// ErrLockTimeout is returned when a day lock could not be taken in time.
var ErrLockTimeout = errors.New("timed out waiting for booking lock")

// SlotKey identifies a cached availability answer. generation is the value
// Generation returned for the salon and day before storage was read.
func SlotKey(salonID, date, serviceID, staffID, generation string) string {
	return DayPrefix(salonID, date) + escape(serviceID) + ":" + escape(staffID) + ":g" + generation
}

// DayPrefix covers every cached answer for one salon day.
func DayPrefix(salonID, date string) string {
	return SalonPrefix(salonID) + escape(date) + ":"
}

// SalonPrefix covers every cached answer for a salon.
func SalonPrefix(salonID string) string {
	return keyPrefix + "slots:" + escape(salonID) + ":"
}

// LockKey identifies the write lock for a (salon, staff, date). An empty
// staff id locks the whole day.
func LockKey(salonID, staffID, date string) string {
	return keyPrefix + "lock:" + escape(salonID) + ":" + escape(staffID) + ":" + escape(date)
}

// generationKey holds the invalidation counter of a slot prefix. It lives
// outside the slots namespace so prefix scans never remove it.
func generationKey(prefix string) string {
	return keyPrefix + "gen:" + strings.TrimPrefix(prefix, keyPrefix)
}

// escape percent-encodes ids so separators and glob characters cannot appear
// in a segment and distinct ids never share a key.
func escape(id string) string {
	return url.QueryEscape(id)
}

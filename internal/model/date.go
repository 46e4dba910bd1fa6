package model

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	minYear = 1900
	maxYear = 2100
)

var daysInMonth = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Date is a gregorian calendar date, year restricted to [1900, 2100].
type Date struct {
	Day, Month, Year int
}

// isLeap reports whether y is a leap year: (y%4==0 && y%100!=0) || y%400==0.
func isLeap(y int) bool {
	return (y%4 == 0 && y%100 != 0) || y%400 == 0
}

// NewDate validates and constructs a Date.
func NewDate(day, month, year int) (Date, error) {
	if year < minYear || year > maxYear {
		return Date{}, fmt.Errorf("year %d out of range [%d,%d]", year, minYear, maxYear)
	}
	if month < 1 || month > 12 {
		return Date{}, fmt.Errorf("month %d out of range [1,12]", month)
	}
	limit := daysInMonth[month]
	if month == 2 && isLeap(year) {
		limit = 29
	}
	if day < 1 || day > limit {
		return Date{}, fmt.Errorf("day %d invalid for month %d of year %d (max %d)", day, month, year, limit)
	}
	return Date{Day: day, Month: month, Year: year}, nil
}

// ParseDate parses "DD.MM.YYYY".
func ParseDate(s string) (Date, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("date %q: expected DD.MM.YYYY", s)
	}
	d, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	y, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return Date{}, fmt.Errorf("date %q: non-numeric component", s)
	}
	return NewDate(d, m, y)
}

// String renders the date as "DD.MM.YYYY" (zero-padded day and month).
func (d Date) String() string {
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, d.Month, d.Year)
}

// Equal compares year, month and day.
func (d Date) Equal(other Date) bool {
	return d.Year == other.Year && d.Month == other.Month && d.Day == other.Day
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// BeforeOrEqual reports d <= other.
func (d Date) BeforeOrEqual(other Date) bool {
	return !d.After(other)
}

// AfterOrEqual reports d >= other.
func (d Date) AfterOrEqual(other Date) bool {
	return !d.Before(other)
}

// InRange reports whether d falls within the inclusive [from, to] range.
func (d Date) InRange(from, to Date) bool {
	return d.AfterOrEqual(from) && d.BeforeOrEqual(to)
}

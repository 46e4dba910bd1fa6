package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// HoursInDay is the fixed length of the hourly traffic vectors.
const HoursInDay = 24

// DoubleEpsilon is used for approximate equality of traffic values.
const DoubleEpsilon = 1e-9

// ErrIncompleteRecord signals a record that ended at EOF before all five
// lines were read.
var ErrIncompleteRecord = errors.New("incomplete record at end of file")

// ErrMalformedRecord signals a record whose fields could not be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// Record is one subscriber traffic entry: a name, an IP, a date and 24
// hourly in/out traffic readings (gigabytes).
type Record struct {
	Name       string
	IP         IPAddress
	Date       Date
	TrafficIn  [HoursInDay]float64
	TrafficOut [HoursInDay]float64
}

// NewRecord validates traffic vectors and constructs a Record.
func NewRecord(name string, ip IPAddress, date Date, trafficIn, trafficOut []float64) (Record, error) {
	var in, out [HoursInDay]float64
	if err := validateTraffic(trafficIn, "in"); err != nil {
		return Record{}, err
	}
	if err := validateTraffic(trafficOut, "out"); err != nil {
		return Record{}, err
	}
	copy(in[:], trafficIn)
	copy(out[:], trafficOut)
	return Record{Name: name, IP: ip, Date: date, TrafficIn: in, TrafficOut: out}, nil
}

func validateTraffic(v []float64, kind string) error {
	if len(v) != HoursInDay {
		return fmt.Errorf("traffic-%s: expected %d values, got %d", kind, HoursInDay, len(v))
	}
	for i, x := range v {
		if x < 0 {
			return fmt.Errorf("traffic-%s: hour %d value %.4f is negative", kind, i, x)
		}
	}
	return nil
}

// Equal compares all fields, traffic values within DoubleEpsilon.
func (r Record) Equal(other Record) bool {
	if r.Name != other.Name || !r.IP.Equal(other.IP) || !r.Date.Equal(other.Date) {
		return false
	}
	for i := 0; i < HoursInDay; i++ {
		if math.Abs(r.TrafficIn[i]-other.TrafficIn[i]) > DoubleEpsilon {
			return false
		}
		if math.Abs(r.TrafficOut[i]-other.TrafficOut[i]) > DoubleEpsilon {
			return false
		}
	}
	return true
}

// WriteTo renders the record in the five-line text format used by both
// file persistence and list-payload serialization.
func (r Record) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString(r.Name)
	b.WriteByte('\n')
	b.WriteString(r.IP.String())
	b.WriteByte('\n')
	b.WriteString(r.Date.String())
	b.WriteByte('\n')
	writeTrafficLine(&b, r.TrafficIn[:])
	b.WriteByte('\n')
	writeTrafficLine(&b, r.TrafficOut[:])
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func writeTrafficLine(b *strings.Builder, v []float64) {
	for i, x := range v {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(x, 'f', 2, 64))
	}
}

// ReadRecord parses one record (five lines) from br, skipping leading blank
// lines. Returns io.EOF when no more records remain (clean end-of-input),
// ErrIncompleteRecord when EOF interrupts a record after at least one
// non-blank line was consumed, or ErrMalformedRecord (wrapped) for any
// field that fails to parse.
func ReadRecord(br *bufio.Reader) (Record, error) {
	name, err := readNonBlankLine(br)
	if err != nil {
		return Record{}, err // clean io.EOF, no lines consumed yet
	}

	ipLine, err := readLine(br)
	if err != nil {
		return Record{}, ErrIncompleteRecord
	}
	ip, err := ParseIPAddress(strings.TrimSpace(ipLine))
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	dateLine, err := readLine(br)
	if err != nil {
		return Record{}, ErrIncompleteRecord
	}
	date, err := ParseDate(strings.TrimSpace(dateLine))
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	inLine, err := readLine(br)
	if err != nil {
		return Record{}, ErrIncompleteRecord
	}
	inVals, err := parseTrafficLine(inLine)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	outLine, err := readLine(br)
	if err != nil {
		return Record{}, ErrIncompleteRecord
	}
	outVals, err := parseTrafficLine(outLine)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	return NewRecord(name, ip, date, inVals, outVals)
}

// readNonBlankLine skips blank lines and returns the first non-blank one,
// or io.EOF if the stream ends before any non-blank line is found.
func readNonBlankLine(br *bufio.Reader) (string, error) {
	for {
		line, err := br.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed != "" {
			return trimmed, nil
		}
		if err != nil {
			return "", io.EOF
		}
	}
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	trimmed := strings.TrimRight(line, "\r\n")
	if trimmed == "" && err != nil {
		return "", io.EOF
	}
	return trimmed, nil
}

func parseTrafficLine(line string) ([]float64, error) {
	fields := strings.Fields(line)
	if len(fields) != HoursInDay {
		return nil, fmt.Errorf("expected %d values, got %d", HoursInDay, len(fields))
	}
	vals := make([]float64, HoursInDay)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("value %d (%q) is not numeric", i, f)
		}
		vals[i] = v
	}
	return vals, nil
}

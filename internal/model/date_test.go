package model

import "testing"

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: "15.06.2024"},
		{name: "leap day", input: "29.02.2024"},
		{name: "non leap day rejected", input: "29.02.2023", wantErr: true},
		{name: "wrong separator", input: "15-06-2024", wantErr: true},
		{name: "month out of range", input: "15.13.2024", wantErr: true},
		{name: "day out of range", input: "32.01.2024", wantErr: true},
		{name: "year out of range", input: "01.01.1800", wantErr: true},
		{name: "non numeric", input: "aa.06.2024", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDate(%q): expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q): unexpected error: %v", tt.input, err)
			}
			if got := d.String(); got != tt.input {
				t.Errorf("ParseDate(%q).String() = %q, want %q", tt.input, got, tt.input)
			}
		})
	}
}

func TestDateOrdering(t *testing.T) {
	jan1, _ := ParseDate("01.01.2024")
	jan2, _ := ParseDate("02.01.2024")
	jan1Again, _ := ParseDate("01.01.2024")

	if !jan1.Before(jan2) {
		t.Errorf("expected %v before %v", jan1, jan2)
	}
	if !jan2.After(jan1) {
		t.Errorf("expected %v after %v", jan2, jan1)
	}
	if !jan1.Equal(jan1Again) {
		t.Errorf("expected %v to equal %v", jan1, jan1Again)
	}
	if !jan1.BeforeOrEqual(jan1Again) || !jan1.AfterOrEqual(jan1Again) {
		t.Errorf("expected %v and %v to be mutually before-or-equal/after-or-equal", jan1, jan1Again)
	}
}

func TestDateInRange(t *testing.T) {
	from, _ := ParseDate("01.01.2024")
	to, _ := ParseDate("31.01.2024")
	inside, _ := ParseDate("15.01.2024")
	before, _ := ParseDate("31.12.2023")
	after, _ := ParseDate("01.02.2024")

	if !inside.InRange(from, to) {
		t.Errorf("expected %v to be in range [%v, %v]", inside, from, to)
	}
	if before.InRange(from, to) {
		t.Errorf("expected %v to be outside range [%v, %v]", before, from, to)
	}
	if after.InRange(from, to) {
		t.Errorf("expected %v to be outside range [%v, %v]", after, from, to)
	}
	if !from.InRange(from, to) || !to.InRange(from, to) {
		t.Errorf("expected range bounds to be inclusive")
	}
}

package model

import "testing"

func TestParseIPAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "valid", input: "192.168.1.1", want: "192.168.1.1"},
		{name: "zeros", input: "0.0.0.0", want: "0.0.0.0"},
		{name: "max octets", input: "255.255.255.255", want: "255.255.255.255"},
		{name: "too few parts", input: "1.2.3", wantErr: true},
		{name: "too many parts", input: "1.2.3.4.5", wantErr: true},
		{name: "empty octet", input: "1..3.4", wantErr: true},
		{name: "non numeric", input: "1.2.a.4", wantErr: true},
		{name: "octet out of range", input: "1.2.3.256", wantErr: true},
		{name: "negative octet", input: "1.2.-3.4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, err := ParseIPAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseIPAddress(%q): expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIPAddress(%q): unexpected error: %v", tt.input, err)
			}
			if got := ip.String(); got != tt.want {
				t.Errorf("ParseIPAddress(%q).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIPAddressEqual(t *testing.T) {
	a, _ := ParseIPAddress("10.0.0.1")
	b, _ := ParseIPAddress("10.0.0.1")
	c, _ := ParseIPAddress("10.0.0.2")

	if !a.Equal(b) {
		t.Errorf("expected %v to equal %v", a, b)
	}
	if a.Equal(c) {
		t.Errorf("expected %v to not equal %v", a, c)
	}
}

package go_mtpc

import (
	"net"
	"testing"
)

func TestDcIdClassification(t *testing.T) {
	tests := []struct {
		name     string
		dc       DcId
		isEmpty  bool
		isMain   bool
		isExact  bool
		external bool
	}{
		{"empty", EmptyDcId(), true, false, false, false},
		{"main", MainDcId(), false, true, false, false},
		{"invalid", InvalidDcId(), true, false, false, false},
		{"internal", InternalDcId(2), false, false, true, false},
		{"external", ExternalDcId(4), false, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.dc.IsEmpty() != tt.isEmpty {
				t.Errorf("IsEmpty = %v, want %v", tt.dc.IsEmpty(), tt.isEmpty)
			}
			if tt.dc.IsMain() != tt.isMain {
				t.Errorf("IsMain = %v, want %v", tt.dc.IsMain(), tt.isMain)
			}
			if tt.dc.IsExact() != tt.isExact {
				t.Errorf("IsExact = %v, want %v", tt.dc.IsExact(), tt.isExact)
			}
			if tt.dc.IsExternal() != tt.external {
				t.Errorf("IsExternal = %v, want %v", tt.dc.IsExternal(), tt.external)
			}
		})
	}
}

func TestDcIdRangeClamping(t *testing.T) {
	if !InternalDcId(1).IsExact() || !InternalDcId(MAX_RAW_DC_ID).IsExact() {
		t.Fatal("ids within range must be exact")
	}
	for _, raw := range []int32{0, -5, MAX_RAW_DC_ID + 1} {
		if !InternalDcId(raw).IsEmpty() {
			t.Errorf("out-of-range id %d should collapse to empty", raw)
		}
		if ExternalDcId(raw).IsExact() {
			t.Errorf("out-of-range external id %d should not be exact", raw)
		}
	}
}

func TestDcOptionsDropInvalid(t *testing.T) {
	var opts DcOptions
	opts.Add(NewDcOption(InternalDcId(2), net.ParseIP("10.0.0.1"), 443))
	opts.Add(NewDcOption(MainDcId(), net.ParseIP("10.0.0.2"), 443))
	opts.Add(NewDcOption(InternalDcId(2), nil, 443))
	opts.Add(NewDcOption(InternalDcId(2), net.ParseIP("10.0.0.3"), 0))

	if opts.Len() != 1 {
		t.Fatalf("expected 1 valid option, got %d", opts.Len())
	}
}

func TestFindBestOptionPrefersHigherSuccessRate(t *testing.T) {
	dc := InternalDcId(2)
	set := NewDcOptionsSet()
	var opts DcOptions
	opts.Add(NewDcOption(dc, net.ParseIP("10.0.0.1"), 443))
	opts.Add(NewDcOption(dc, net.ParseIP("10.0.0.2"), 443))
	set.AddOptions(opts)

	// Endpoint 0: one success, one failure. Endpoint 1: all successes.
	set.RecordSuccess(0, 10)
	set.RecordFailure(0)
	set.RecordSuccess(1, 200)
	set.RecordSuccess(1, 200)

	best, idx, ok := set.FindBestOption(dc, false)
	if !ok {
		t.Fatal("expected an option")
	}
	if idx != 1 {
		t.Fatalf("expected endpoint 1 (higher success rate), got %d (%s)", idx, best.Addr())
	}
}

func TestFindBestOptionBreaksTiesByRtt(t *testing.T) {
	dc := InternalDcId(2)
	set := NewDcOptionsSet()
	var opts DcOptions
	opts.Add(NewDcOption(dc, net.ParseIP("10.0.0.1"), 443))
	opts.Add(NewDcOption(dc, net.ParseIP("10.0.0.2"), 443))
	set.AddOptions(opts)

	set.RecordSuccess(0, 150)
	set.RecordSuccess(1, 30)

	_, idx, ok := set.FindBestOption(dc, false)
	if !ok || idx != 1 {
		t.Fatalf("expected the faster endpoint 1, got %d", idx)
	}
}

func TestFindBestOptionPrefersMeasuredEndpoints(t *testing.T) {
	dc := InternalDcId(2)
	set := NewDcOptionsSet()
	var opts DcOptions
	opts.Add(NewDcOption(dc, net.ParseIP("10.0.0.1"), 443))
	opts.Add(NewDcOption(dc, net.ParseIP("10.0.0.2"), 443))
	set.AddOptions(opts)

	set.RecordSuccess(1, 80)

	_, idx, ok := set.FindBestOption(dc, false)
	if !ok || idx != 1 {
		t.Fatalf("expected the measured endpoint 1, got %d", idx)
	}
}

func TestFindBestOptionMediaOnlyFilter(t *testing.T) {
	dc := InternalDcId(2)
	set := NewDcOptionsSet()
	var opts DcOptions
	opts.Add(NewDcOption(dc, net.ParseIP("10.0.0.1"), 443).WithFlag(DC_OPTION_MEDIA_ONLY))
	set.AddOptions(opts)

	if _, _, ok := set.FindBestOption(dc, false); ok {
		t.Fatal("media-only endpoint must be hidden by default")
	}
	if _, _, ok := set.FindBestOption(dc, true); !ok {
		t.Fatal("media-only endpoint must be visible when allowed")
	}
}

func TestFindBestOptionUnknownDc(t *testing.T) {
	set := NewDcOptionsSet()
	if _, _, ok := set.FindBestOption(InternalDcId(7), false); ok {
		t.Fatal("empty set must not return an option")
	}
}

func TestDcOptionAddr(t *testing.T) {
	opt := NewDcOption(InternalDcId(2), net.ParseIP("10.0.0.1"), 443)
	if opt.Addr() != "10.0.0.1:443" {
		t.Fatalf("unexpected addr %q", opt.Addr())
	}
	v6 := NewDcOption(InternalDcId(2), net.ParseIP("2001:db8::1"), 443)
	if v6.Addr() != "[2001:db8::1]:443" {
		t.Fatalf("unexpected v6 addr %q", v6.Addr())
	}
}

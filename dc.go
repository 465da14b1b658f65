package go_mtpc

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// Datacenter identification and endpoint directory.
//
// A DcId names one datacenter cluster. Internal DCs serve general traffic;
// external (CDN) DCs serve media and carry their own RSA keys. The special
// values empty, main and invalid never identify a concrete cluster; only an
// "exact" id (raw id > 0) does.

// DcId identifies a datacenter.
type DcId struct {
	dcID       int32
	isExternal bool
}

// EmptyDcId returns the empty DC id.
func EmptyDcId() DcId {
	return DcId{dcID: DC_ID_EMPTY}
}

// MainDcId returns the symbolic main-DC id. The directory resolves it to
// whichever concrete DC is currently designated main.
func MainDcId() DcId {
	return DcId{dcID: DC_ID_MAIN}
}

// InvalidDcId returns the invalid sentinel.
func InvalidDcId() DcId {
	return DcId{dcID: DC_ID_INVALID}
}

// InternalDcId creates an id for an internal (non-CDN) DC. Out-of-range
// values yield the invalid sentinel.
func InternalDcId(id int32) DcId {
	if !IsValidRawDcId(id) {
		return InvalidDcId()
	}
	return DcId{dcID: id}
}

// ExternalDcId creates an id for an external (CDN) DC. Out-of-range values
// yield the invalid sentinel.
func ExternalDcId(id int32) DcId {
	if !IsValidRawDcId(id) {
		return InvalidDcId()
	}
	return DcId{dcID: id, isExternal: true}
}

// IsValidRawDcId reports whether id is in the accepted raw range.
func IsValidRawDcId(id int32) bool {
	return id >= 1 && id <= MAX_RAW_DC_ID
}

// RawID returns the raw numeric DC id. Meaningful only when IsExact.
func (d DcId) RawID() int32 { return d.dcID }

// Value returns the stored value, which may be a sentinel.
func (d DcId) Value() int32 { return d.dcID }

// IsEmpty reports whether the id holds no concrete DC. The symbolic main
// id is not empty: it resolves to a concrete DC through the directory.
func (d DcId) IsEmpty() bool { return !IsValidRawDcId(d.dcID) && d.dcID != DC_ID_MAIN }

// IsMain reports whether this is the symbolic main-DC id.
func (d DcId) IsMain() bool { return d.dcID == DC_ID_MAIN }

// IsExact reports whether the id names a concrete DC.
func (d DcId) IsExact() bool { return d.dcID > 0 }

// IsExternal reports whether this is a CDN DC.
func (d DcId) IsExternal() bool { return d.isExternal }

// IsInternal reports whether this is a non-CDN DC.
func (d DcId) IsInternal() bool { return !d.isExternal }

func (d DcId) String() string {
	switch d.dcID {
	case DC_ID_INVALID:
		return "DcId(invalid)"
	case DC_ID_EMPTY:
		return "DcId(empty)"
	case DC_ID_MAIN:
		return "DcId(main)"
	}
	if d.isExternal {
		return fmt.Sprintf("DcId(%d external)", d.dcID)
	}
	return fmt.Sprintf("DcId(%d)", d.dcID)
}

// DcOption flags.
const (
	DC_OPTION_IPV6                = 1 << 0
	DC_OPTION_MEDIA_ONLY          = 1 << 1
	DC_OPTION_OBFUSCATED_TCP_ONLY = 1 << 2
	DC_OPTION_CDN                 = 1 << 3
	DC_OPTION_STATIC              = 1 << 4
	DC_OPTION_HAS_SECRET          = 1 << 5
)

// DcOption is one way to reach a specific datacenter.
type DcOption struct {
	DcID   DcId
	IP     net.IP
	Port   uint16
	Flags  uint32
	Secret []byte
}

// NewDcOption creates a DC option with no flags set.
func NewDcOption(dcID DcId, ip net.IP, port uint16) DcOption {
	return DcOption{DcID: dcID, IP: ip, Port: port}
}

func (o DcOption) IsIPv6() bool              { return o.Flags&DC_OPTION_IPV6 != 0 }
func (o DcOption) IsMediaOnly() bool         { return o.Flags&DC_OPTION_MEDIA_ONLY != 0 }
func (o DcOption) IsObfuscatedTcpOnly() bool { return o.Flags&DC_OPTION_OBFUSCATED_TCP_ONLY != 0 }
func (o DcOption) IsCdn() bool               { return o.Flags&DC_OPTION_CDN != 0 }
func (o DcOption) IsStatic() bool            { return o.Flags&DC_OPTION_STATIC != 0 }
func (o DcOption) HasSecret() bool           { return o.Flags&DC_OPTION_HAS_SECRET != 0 }

// IsValid reports whether the option names a concrete DC and address.
func (o DcOption) IsValid() bool {
	return o.DcID.IsExact() && o.IP != nil && o.Port != 0
}

// Addr returns the host:port dial address for this option.
func (o DcOption) Addr() string {
	return net.JoinHostPort(o.IP.String(), fmt.Sprintf("%d", o.Port))
}

// WithFlag returns a copy of the option with flag set.
func (o DcOption) WithFlag(flag uint32) DcOption {
	o.Flags |= flag
	return o
}

// WithSecret returns a copy carrying an obfuscation secret.
func (o DcOption) WithSecret(secret []byte) DcOption {
	o.Flags |= DC_OPTION_HAS_SECRET
	o.Secret = secret
	return o
}

// DcOptions is an ordered collection of DC options.
type DcOptions struct {
	options []DcOption
}

// Add appends a valid option; invalid options are dropped.
func (d *DcOptions) Add(option DcOption) {
	if option.IsValid() {
		d.options = append(d.options, option)
	}
}

// Get returns all options for the given DC id.
func (d *DcOptions) Get(dcID DcId) []DcOption {
	var out []DcOption
	for _, opt := range d.options {
		if opt.DcID == dcID {
			out = append(out, opt)
		}
	}
	return out
}

// DcIds returns the distinct DC ids present.
func (d *DcOptions) DcIds() []DcId {
	seen := make(map[DcId]struct{})
	var out []DcId
	for _, opt := range d.options {
		if _, ok := seen[opt.DcID]; !ok {
			seen[opt.DcID] = struct{}{}
			out = append(out, opt.DcID)
		}
	}
	return out
}

// Len returns the number of options.
func (d *DcOptions) Len() int { return len(d.options) }

// dcOptionStats tracks per-endpoint connection outcomes used for ranking.
type dcOptionStats struct {
	successCount uint32
	failureCount uint32
	avgRtt       float64
	lastSuccess  time.Time
}

func (s *dcOptionStats) recordSuccess(rtt float64) {
	s.successCount++
	s.avgRtt = (s.avgRtt*float64(s.successCount-1) + rtt) / float64(s.successCount)
	s.lastSuccess = time.Now()
}

func (s *dcOptionStats) recordFailure() {
	s.failureCount++
}

func (s *dcOptionStats) successRate() float64 {
	total := s.successCount + s.failureCount
	if total == 0 {
		return 0
	}
	return float64(s.successCount) / float64(total)
}

// DcOptionsSet ranks candidate endpoints per DC using observed stats.
// Safe for concurrent use; it is shared read-mostly across sessions.
type DcOptionsSet struct {
	mu      sync.RWMutex
	options DcOptions
	stats   map[int]*dcOptionStats
}

// NewDcOptionsSet creates an empty options set.
func NewDcOptionsSet() *DcOptionsSet {
	return &DcOptionsSet{stats: make(map[int]*dcOptionStats)}
}

// AddOptions merges the given options into the set.
func (s *DcOptionsSet) AddOptions(options DcOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, opt := range options.options {
		s.options.Add(opt)
	}
}

// OptionsForDc returns all known options for a DC.
func (s *DcOptionsSet) OptionsForDc(dcID DcId) []DcOption {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options.Get(dcID)
}

// Len returns the number of options across all DCs.
func (s *DcOptionsSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options.Len()
}

// FindBestOption picks the endpoint for dcID with the best observed
// success rate, breaking ties by lower average RTT. Endpoints without
// stats rank below endpoints with stats. Media-only endpoints are skipped
// unless allowMediaOnly is set. Returns false when nothing qualifies.
func (s *DcOptionsSet) FindBestOption(dcID DcId, allowMediaOnly bool) (DcOption, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type indexed struct {
		idx int
		opt DcOption
	}
	var candidates []indexed
	for i, opt := range s.options.options {
		if opt.DcID == dcID && (!opt.IsMediaOnly() || allowMediaOnly) && opt.IsValid() {
			candidates = append(candidates, indexed{idx: i, opt: opt})
		}
	}
	if len(candidates) == 0 {
		return DcOption{}, -1, false
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		sa := s.stats[candidates[a].idx]
		sb := s.stats[candidates[b].idx]
		switch {
		case sa != nil && sb != nil:
			if sa.successRate() != sb.successRate() {
				return sa.successRate() > sb.successRate()
			}
			return sa.avgRtt < sb.avgRtt
		case sa != nil:
			return true
		case sb != nil:
			return false
		default:
			return false
		}
	})

	best := candidates[0]
	return best.opt, best.idx, true
}

// RecordSuccess records a successful connection on the option at idx.
func (s *DcOptionsSet) RecordSuccess(idx int, rtt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[idx]
	if !ok {
		st = &dcOptionStats{}
		s.stats[idx] = st
	}
	st.recordSuccess(rtt)
}

// RecordFailure records a failed connection on the option at idx.
func (s *DcOptionsSet) RecordFailure(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[idx]
	if !ok {
		st = &dcOptionStats{}
		s.stats[idx] = st
	}
	st.recordFailure()
}

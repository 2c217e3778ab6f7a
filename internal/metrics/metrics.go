// Package metrics counts auth-core outcomes with lock-free atomics.
// Counters are cheap enough for the hot path; export happens on scrape
// via the OTel observable-counter bridge.
package metrics

import "sync/atomic"

type ID uint16

const (
	LoginSuccess ID = iota
	LoginFailure
	RegisterSuccess
	RegisterDuplicate
	RefreshSuccess
	RefreshFailure
	RefreshReuseDetected
	Logout
	VerificationSent
	VerificationSuccess
	VerificationFailure
	AuthenticateDenied
	RoleChanged
	BanChanged

	idCount
)

// Def carries export metadata for one counter.
type Def struct {
	ID   ID
	Name string
	Help string
}

// Defs lists every counter in export order.
var Defs = []Def{
	{LoginSuccess, "snapfolio_login_success_total", "Successful login attempts."},
	{LoginFailure, "snapfolio_login_failure_total", "Failed login attempts."},
	{RegisterSuccess, "snapfolio_register_success_total", "Successful registrations."},
	{RegisterDuplicate, "snapfolio_register_duplicate_total", "Registrations rejected as duplicate."},
	{RefreshSuccess, "snapfolio_refresh_success_total", "Successful refresh rotations."},
	{RefreshFailure, "snapfolio_refresh_failure_total", "Failed refresh attempts."},
	{RefreshReuseDetected, "snapfolio_refresh_reuse_detected_total", "Detected refresh token reuses."},
	{Logout, "snapfolio_logout_total", "Logout operations."},
	{VerificationSent, "snapfolio_verification_sent_total", "Verification emails issued."},
	{VerificationSuccess, "snapfolio_verification_success_total", "Completed email verifications."},
	{VerificationFailure, "snapfolio_verification_failure_total", "Failed email verifications."},
	{AuthenticateDenied, "snapfolio_authenticate_denied_total", "Access tokens rejected by authenticate."},
	{RoleChanged, "snapfolio_role_changed_total", "Administrative role changes."},
	{BanChanged, "snapfolio_ban_changed_total", "Administrative ban flag changes."},
}

const cacheLineSize = 64

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds one padded counter per ID. A nil *Metrics is a valid
// no-op, so callers never branch on "metrics enabled".
type Metrics struct {
	counters [idCount]paddedCounter
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Inc(id ID) {
	if m == nil || id >= idCount {
		return
	}
	m.counters[id].value.Add(1)
}

func (m *Metrics) Get(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return m.counters[id].value.Load()
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[ID]uint64
}

func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Counters: make(map[ID]uint64, idCount)}
	if m == nil {
		return snap
	}
	for id := ID(0); id < idCount; id++ {
		snap.Counters[id] = m.counters[id].value.Load()
	}
	return snap
}

package session

// Refresh outcomes reported to an Observer.
const (
	OutcomeOK             = "ok"
	OutcomeFetchError     = "fetch_error"
	OutcomeProfileMissing = "profile_missing"
	OutcomeDiscarded      = "discarded"
	OutcomeError          = "error"
)

// Observer receives session lifecycle events. internal/telemetry implements it
// with Prometheus collectors.
type Observer interface {
	RefreshCompleted(outcome string)
	RefreshCoalesced()
	SessionsOpen(n int)
}

type nopObserver struct{}

func (nopObserver) RefreshCompleted(string) {}
func (nopObserver) RefreshCoalesced()       {}
func (nopObserver) SessionsOpen(int)        {}

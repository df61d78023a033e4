package interfaces

import "errors"

// Pipeline error taxonomy. Stage errors are wrapped with %w and matched
// with errors.Is at the worker boundary to decide blast radius.
var (
	// ErrAuth - bad credentials or expired session. One re-login attempt;
	// fatal to the run on the second failure.
	ErrAuth = errors.New("authentication failed")

	// ErrNavigation - network failure, timeout or unexpected page.
	// Retried once per process, then the attempted link is marked inactive.
	ErrNavigation = errors.New("navigation failed")

	// ErrPlugin - selector missed or classifier confused. Fatal to the
	// process, counted in the run summary.
	ErrPlugin = errors.New("scraper plugin error")

	// ErrStorage - object store upload failure. The document is recorded
	// as partial; not fatal to the process.
	ErrStorage = errors.New("object store error")

	// ErrPersistence - database commit failure. Fatal to the process, the
	// transaction rolls back.
	ErrPersistence = errors.New("persistence error")

	// ErrConfig - missing tenant, scraper version or encryption key.
	// Fatal to the run.
	ErrConfig = errors.New("configuration error")
)

/*
Package session coordinates access to the persisted onboarding state.

It wraps a ports.KeyValueStore with per-key in-process locks (reference counted,
so unused keys do not accumulate) and an optional distributed lock, so several
orchestrators sharing one store never interleave their writes. Values are
encoded as JSON; failures surface as *domain.StorageError.
*/
package session

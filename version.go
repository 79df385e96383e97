package wayfinder

// Version is the engine release, overridden at build time with
// -ldflags "-X github.com/aretw0/wayfinder.Version=...".
var Version = "0.1.0-dev"

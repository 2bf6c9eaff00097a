package version

// Version is the signbridge version, overridden at build time with
// -ldflags "-X github.com/hashicorp-forge/signbridge/internal/version.Version=...".
var Version = "0.1.0-dev"

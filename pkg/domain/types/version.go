package types

// Version is the shipyard build version. Overridden with -ldflags at release time.
var Version = "dev"

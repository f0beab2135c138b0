package buildinfo

// Version is overridden at release time via -ldflags.
var Version = "1.0.1-dev"

package version

// Version is the current weaver release
const Version = "0.3.0"

package api

// Build metadata, overridden with -ldflags "-X .../internal/api.EngineVersion=...".
var (
	EngineVersion = "dev"
	GitCommit     = "unknown"
	BuildTime     = "unknown"
)

// GetVersionInfo returns the build metadata.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
	}
}

// UserAgent identifies this build to the settlement service.
func UserAgent() string {
	return "arcade-session/" + EngineVersion
}

// Package version exposes build metadata for the hub binary.
//
// Values are injected at link time:
//
//	go build -ldflags "-X github.com/rickgao/cognitive-hub/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/cognitive-hub/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/cognitive-hub/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns a human readable version line for logs and the version command.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent is sent by the hub's outbound HTTP and websocket clients.
func UserAgent() string {
	return "cognitive-hub/" + Version
}

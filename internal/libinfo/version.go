/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

import (
	"debug/buildinfo"
	"runtime/debug"
	"strings"
	"sync"
)

const LibName = "go-rsauth"

const libPath = "github.com/acronis/" + LibName

var libVersion string
var libVersionOnce sync.Once

func initLibVersion() {
	buildInfo, _ := debug.ReadBuildInfo()
	if libVersion = extractLibVersion(buildInfo, libPath); libVersion == "" {
		libVersion = "v0.0.0"
	}
}

// extractLibVersion looks for the module (or one of its major-version paths) in the build dependencies.
func extractLibVersion(buildInfo *buildinfo.BuildInfo, modulePath string) string {
	if buildInfo == nil {
		return ""
	}
	for _, dep := range buildInfo.Deps {
		if dep.Path == modulePath || strings.HasPrefix(dep.Path, modulePath+"/v") {
			return dep.Version
		}
	}
	return ""
}

func GetLibVersion() string {
	libVersionOnce.Do(initLibVersion)
	return libVersion
}

// UserAgent is sent in requests to the Authorization Server.
func UserAgent() string {
	return LibName + "/" + GetLibVersion()
}

// LogPrefix is prepended to messages of the library loggers.
func LogPrefix() string {
	return "[" + UserAgent() + "] "
}

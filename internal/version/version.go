package version

import (
	"fmt"
	"runtime"

	"github.com/aatumaykin/cronrunner/internal/constants"
)

var (
	Version   = constants.DefaultVersion
	BuildTime = constants.DefaultBuildTime
	GitCommit = constants.DefaultGitCommit
	GoVersion = runtime.Version()
)

func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// String is the one-line version report printed by "cronrunner version".
func String() string {
	return fmt.Sprintf("cronrunner %s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, GoVersion)
}

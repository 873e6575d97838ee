// Package deps checks that the external binaries the worker shells out to
// are installed.
package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"learnapp/internal/infra"
)

// Requirement is an external binary. Alternatives are tried in order when
// Command is empty.
type Requirement struct {
	Name         string
	Command      string
	Alternatives []string
	Hint         string
	Optional     bool
}

// Status reports whether a requirement resolved to an executable.
type Status struct {
	Name      string
	Path      string
	Hint      string
	Optional  bool
	Available bool
	Detail    string
}

var lookPath = exec.LookPath

// ChromeCandidates are the binary names probed when CHROME_PATH is unset.
var ChromeCandidates = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

// Check resolves every requirement.
func Check(reqs []Requirement) []Status {
	out := make([]Status, 0, len(reqs))
	for _, req := range reqs {
		st := Status{Name: req.Name, Hint: strings.TrimSpace(req.Hint), Optional: req.Optional}
		candidates := req.Alternatives
		if cmd := strings.TrimSpace(req.Command); cmd != "" {
			candidates = []string{cmd}
		}
		if len(candidates) == 0 {
			st.Detail = "command not configured"
			out = append(out, st)
			continue
		}
		for _, c := range candidates {
			if path, err := lookPath(c); err == nil {
				st.Path = path
				st.Available = true
				break
			}
		}
		if !st.Available {
			st.Detail = fmt.Sprintf("none of %s found on PATH", strings.Join(candidates, ", "))
		}
		out = append(out, st)
	}
	return out
}

// Report logs every status and returns an error naming the missing required
// binaries.
func Report(logger *infra.Logger, statuses []Status) error {
	logger = infra.LoggerOrNop(logger)
	var missing []string
	for _, st := range statuses {
		if st.Available {
			logger.Debug().Str("dependency", st.Name).Str("path", st.Path).Msg("deps: found")
			continue
		}
		level := zerolog.WarnLevel
		if !st.Optional {
			level = zerolog.ErrorLevel
			missing = append(missing, st.Name)
		}
		logger.WithLevel(level).Str("dependency", st.Name).Str("detail", st.Detail).Str("hint", st.Hint).Msg("deps: missing")
	}
	if len(missing) > 0 {
		return errors.New("missing required binaries: " + strings.Join(missing, ", "))
	}
	return nil
}

// Resolved returns the path of the named requirement, or "".
func Resolved(statuses []Status, name string) string {
	for _, st := range statuses {
		if st.Name == name && st.Available {
			return st.Path
		}
	}
	return ""
}

package input

import (
	"fmt"
	"strings"
	"time"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/pathutil"
	"github.com/rowsift/runtime/pkg/sift"
)

// DateToken is replaced by a formatted date in dated source paths.
const DateToken = "{date}"

// Dated source defaults.
const (
	DefaultDateFormat   = "2006_01_02"
	DefaultLookbackDays = 7
)

// Resolver maps a configured source path to an existing file.
type Resolver struct {
	// Now returns the reference day; time.Now when nil.
	Now func() time.Time
}

// Resolve returns the concrete path for src.
// Paths containing {date} are tried from today back LookbackDays days and the
// first existing regular file wins. Other paths resolve to themselves.
func (r Resolver) Resolve(src sift.SourceConfig) (string, error) {
	if err := pathutil.ValidateFilePath(src.Path); err != nil {
		return "", errhandling.NewSourceUnreadable(src.Path, "invalid source path", err)
	}
	if !IsDated(src.Path) {
		if !pathutil.IsRegularFile(src.Path) {
			return "", errhandling.NewSourceUnreadable(src.Path, "source file does not exist", nil)
		}
		return src.Path, nil
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	candidates := Candidates(src, now())
	for i, c := range candidates {
		if pathutil.IsRegularFile(c) {
			logger.Debug("resolved dated source",
				"pattern", src.Path,
				"path", c,
				"days_back", i)
			return c, nil
		}
	}
	return "", errhandling.NewSourceUnreadable(src.Path,
		fmt.Sprintf("no dated source found in the last %d days (tried %s)", len(candidates)-1, strings.Join(candidates, ", ")), nil)
}

// Candidates lists the dated paths for src, newest first.
func Candidates(src sift.SourceConfig, today time.Time) []string {
	layout := src.DateFormat
	if layout == "" {
		layout = DefaultDateFormat
	}
	days := src.LookbackDays
	if days <= 0 {
		days = DefaultLookbackDays
	}
	out := make([]string, 0, days+1)
	for d := 0; d <= days; d++ {
		day := today.AddDate(0, 0, -d)
		out = append(out, strings.ReplaceAll(src.Path, DateToken, day.Format(layout)))
	}
	return out
}

// IsDated reports whether path contains the {date} token.
func IsDated(path string) bool {
	return strings.Contains(path, DateToken)
}

// Pattern returns a glob matching every dated variant of path.
func Pattern(path string) string {
	return strings.ReplaceAll(path, DateToken, "*")
}

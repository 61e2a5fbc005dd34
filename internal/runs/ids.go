package runs

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"memeflow/internal/services"
)

const idPrefix = "run_"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// NewID returns run_YYYYMMDD_HHMMSS_xxxxxxxx. The timestamp prefix sorts by
// creation second; the random suffix keeps concurrent creators apart.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%s_%s", idPrefix, now.UTC().Format("20060102_150405"), suffix)
}

// ValidateID rejects identifiers that could not have been issued by NewID
// or could escape the runs directory.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return services.UserInput("runs", "validate id", fmt.Sprintf("invalid run id %q", id))
	}
	return nil
}

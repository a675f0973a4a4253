package cadastre

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

var (
	communeCode    = regexp.MustCompile(`^[0-9][0-9AB][0-9]{3}$`)
	departmentCode = regexp.MustCompile(`^[0-9][0-9AB][0-9]?$`)
)

// Department derives the department from an INSEE commune code. Overseas
// communes (97x) use a three-digit department.
func Department(commune string) string {
	if strings.HasPrefix(commune, "97") {
		return commune[:3]
	}
	return commune[:2]
}

// CommuneIndexURL is the portal index page of one commune:
// <base>/<department>/<commune>/. An empty dept is derived from commune.
func CommuneIndexURL(base, dept, commune string) (string, error) {
	if !communeCode.MatchString(commune) {
		return "", fmt.Errorf("%w: commune must be a 5-character INSEE code, got %q", domain.ErrInvalidRequest, commune)
	}
	if dept == "" {
		dept = Department(commune)
	}
	if !departmentCode.MatchString(dept) {
		return "", fmt.Errorf("%w: invalid department code %q", domain.ErrInvalidRequest, dept)
	}
	return strings.TrimSuffix(base, "/") + "/" + dept + "/" + commune + "/", nil
}

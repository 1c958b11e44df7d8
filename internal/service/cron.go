package service

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ParseCron rejects a schedule expression before it reaches the
// scheduler. Accepts the standard 5 field form plus @macros such as
// @hourly and @every 5m.
func ParseCron(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return fmt.Errorf("empty cron expression")
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

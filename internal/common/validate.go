package common

import (
	"fmt"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
)

// Upstream identifier formats. Process numbers follow NNNNN.NNNNNN/YYYY-DD,
// document numbers are eight digits.
var (
	processNumberRe  = regexp.MustCompile(`^\d{5}\.\d{6}/\d{4}-\d{2}$`)
	documentNumberRe = regexp.MustCompile(`^\d{8}$`)
)

// IsValidProcessNumber reports whether s is a well-formed process number
func IsValidProcessNumber(s string) bool {
	return processNumberRe.MatchString(s)
}

// IsValidDocumentNumber reports whether s is a well-formed document number
func IsValidDocumentNumber(s string) bool {
	return documentNumberRe.MatchString(s)
}

// Schedule kinds accepted by ValidateScheduleExpression
const (
	ScheduleKindInterval = "interval"
	ScheduleKindCron     = "cron"
)

// cronParser accepts standard five-field lines plus an optional seconds field
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateScheduleExpression validates a schedule expression for the given kind.
// Interval expressions are Go duration strings (e.g. "30m") and must be at
// least one minute. Cron expressions are standard five- or six-field lines.
func ValidateScheduleExpression(kind, expression string) error {
	switch kind {
	case ScheduleKindInterval:
		d, err := time.ParseDuration(expression)
		if err != nil {
			return fmt.Errorf("invalid interval expression %q: %w", expression, err)
		}
		if d < time.Minute {
			return fmt.Errorf("interval must be at least 1 minute, got %s", d)
		}
		return nil
	case ScheduleKindCron:
		if _, err := cronParser.Parse(expression); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", expression, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown schedule kind %q", kind)
	}
}

// ParseInterval parses a validated interval expression
func ParseInterval(expression string) (time.Duration, error) {
	return time.ParseDuration(expression)
}

// CronSchedule parses a validated cron expression into a cron.Schedule
func CronSchedule(expression string) (cron.Schedule, error) {
	return cronParser.Parse(expression)
}

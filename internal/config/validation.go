package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationErrors collects every configuration problem found in one pass,
// so a broken config reports all its faults at once.
type ValidationErrors struct {
	RelayProblems   []string
	UserProblems    []string
	SettingProblems []string
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.RelayProblems) > 0 || len(e.UserProblems) > 0 || len(e.SettingProblems) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if len(e.RelayProblems) > 0 {
		sb.WriteString("\nRelay problems:\n")
		for _, p := range e.RelayProblems {
			sb.WriteString(fmt.Sprintf("  - %s\n", p))
		}
	}

	if len(e.UserProblems) > 0 {
		sb.WriteString("\nUser problems:\n")
		for _, p := range e.UserProblems {
			sb.WriteString(fmt.Sprintf("  - %s\n", p))
		}
	}

	if len(e.SettingProblems) > 0 {
		sb.WriteString("\nSetting problems:\n")
		for _, p := range e.SettingProblems {
			sb.WriteString(fmt.Sprintf("  - %s\n", p))
		}
	}

	return sb.String()
}

// Validate checks the whole configuration before any sync starts. The
// engine performs no re-validation, so everything it relies on (two or more
// relays, at least one destination, sane modes) is enforced here.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if len(c.Relays) < 2 {
		errs.RelayProblems = append(errs.RelayProblems,
			fmt.Sprintf("at least 2 relays required, got %d", len(c.Relays)))
	}

	destinations := 0
	for _, name := range c.RelayNames() {
		rc := c.Relays[name]
		if rc.Destination {
			destinations++
		}
		if err := checkRelayURL(rc.URL); err != nil {
			errs.RelayProblems = append(errs.RelayProblems, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(c.Relays) > 0 && destinations == 0 {
		errs.RelayProblems = append(errs.RelayProblems, "no relay marked as destination")
	}

	if len(c.Users) == 0 {
		errs.UserProblems = append(errs.UserProblems, "at least 1 user required")
	}
	for _, name := range c.UserNames() {
		uc := c.Users[name]
		if uc.ID == "" {
			errs.UserProblems = append(errs.UserProblems, fmt.Sprintf("%s: id is required", name))
		}
		switch uc.Sync.Mode {
		case "", ModeLatest, ModeFull:
		default:
			errs.UserProblems = append(errs.UserProblems,
				fmt.Sprintf("%s: unknown sync mode %q (valid: latest, full)", name, uc.Sync.Mode))
		}
		if uc.Sync.Count < 0 {
			errs.UserProblems = append(errs.UserProblems, fmt.Sprintf("%s: sync count must be >= 1", name))
		}
	}

	if c.Sync.Workers < 1 {
		errs.SettingProblems = append(errs.SettingProblems, "sync.workers must be >= 1")
	}
	if c.Sync.PageSize < 1 {
		errs.SettingProblems = append(errs.SettingProblems, "sync.page_size must be >= 1")
	} else if c.Sync.PageSize > 1000 {
		errs.SettingProblems = append(errs.SettingProblems, "sync.page_size must be <= 1000")
	}

	if c.Notify.Enabled {
		if c.Notify.Server == "" {
			errs.SettingProblems = append(errs.SettingProblems, "notify.server is required when notify is enabled")
		}
		if c.Notify.Topic == "" {
			errs.SettingProblems = append(errs.SettingProblems, "notify.topic is required when notify is enabled")
		}
		if !validPriority(c.Notify.Priority) {
			errs.SettingProblems = append(errs.SettingProblems,
				fmt.Sprintf("notify.priority %q is not valid (valid: %s)", c.Notify.Priority, strings.Join(ValidPriorities, ", ")))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func checkRelayURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	return nil
}

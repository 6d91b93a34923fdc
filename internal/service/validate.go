package service

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
)

const (
	maxTitleLength = 255
	maxLockOffset  = 7 * 24 * 60
)

var (
	datePattern = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)
	timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// validateCreate checks a create request in a fixed order and reports the
// first failure only.
func validateCreate(req *model.CreateRosterRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Composition = strings.TrimSpace(req.Composition)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)

	if req.EventID == "" || req.GuildID == "" || req.Organizer == "" ||
		req.Title == "" || req.Date == "" || req.Time == "" || req.Composition == "" {
		return validationf("Invalid input: event id, organizer, guild, title, date, time and composition are required")
	}
	if err := validateTitle(req.Title); err != nil {
		return err
	}
	if err := validateDate(req.Date); err != nil {
		return err
	}
	if err := validateTime(req.Time); err != nil {
		return err
	}
	return validateLockOffset(req.LockOffsetMinutes)
}

func validateTitle(title string) error {
	if title == "" {
		return validationf("Invalid event name: name cannot be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return validationf("Invalid event name: name should be at most %d symbols", maxTitleLength)
	}
	return nil
}

// validateDate accepts DD.MM.YYYY naming a real calendar day.
func validateDate(date string) error {
	if !datePattern.MatchString(date) {
		return validationf("Invalid date: %s should be in DD.MM.YYYY format", date)
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return validationf("Invalid date: %s is not a calendar date", date)
	}
	return nil
}

// validateTime accepts 24h HH:MM.
func validateTime(t string) error {
	if !timePattern.MatchString(t) {
		return validationf("Invalid time: %s should be in HH:MM format", t)
	}
	return nil
}

func validateLockOffset(offset *int) error {
	if offset == nil {
		return nil
	}
	if *offset < 0 || *offset > maxLockOffset {
		return validationf("Invalid lock offset: must be between 0 and %d minutes", maxLockOffset)
	}
	return nil
}

func validateFields(f *model.MetadataFields) error {
	if f.Empty() {
		return validationf("Nothing to edit: provide a title, date, time or lock offset")
	}
	if f.LockOffsetMinutes != nil && f.ClearLock {
		return validationf("Invalid input: cannot set and clear the lock offset at once")
	}
	if f.Title != nil {
		trimmed := strings.TrimSpace(*f.Title)
		f.Title = &trimmed
		if err := validateTitle(trimmed); err != nil {
			return err
		}
	}
	if f.Date != nil {
		if err := validateDate(*f.Date); err != nil {
			return err
		}
	}
	if f.Time != nil {
		if err := validateTime(*f.Time); err != nil {
			return err
		}
	}
	return validateLockOffset(f.LockOffsetMinutes)
}

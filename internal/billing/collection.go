package billing

import (
	"time"

	"github.com/transfa/freight-billing-service/internal/domain"
)

type escalationStep struct {
	next      domain.CollectionMethod
	afterDays int
}

// collectionEscalation maps the most recent attempt's method to the next
// method and the number of days that must pass before it is suggested.
// Phone follows the one-week email cadence; the written steps wait two weeks.
var collectionEscalation = map[domain.CollectionMethod]escalationStep{
	domain.CollectionMethodEmail:       {next: domain.CollectionMethodPhone, afterDays: 7},
	domain.CollectionMethodPhone:       {next: domain.CollectionMethodLetter, afterDays: 7},
	domain.CollectionMethodLetter:      {next: domain.CollectionMethodLegalNotice, afterDays: 14},
	domain.CollectionMethodLegalNotice: {next: domain.CollectionMethodDebtCollection, afterDays: 14},
}

// NextCollectionAction suggests the next collection method for an invoice
// given its attempt history. It returns domain.CollectionActionWait when no
// escalation is due yet or the history ends in debt collection.
func NextCollectionAction(attempts []domain.CollectionAttempt, now time.Time) domain.CollectionMethod {
	last, ok := LatestAttempt(attempts)
	if !ok {
		return domain.CollectionMethodEmail
	}

	step, ok := collectionEscalation[last.Method]
	if !ok {
		return domain.CollectionActionWait
	}
	if elapsedDays(last.Date, now) >= step.afterDays {
		return step.next
	}
	return domain.CollectionActionWait
}

// NextEscalation returns the method that follows method and when it becomes
// due relative to an attempt made at at.
func NextEscalation(method domain.CollectionMethod, at time.Time) (domain.CollectionMethod, time.Time, bool) {
	step, ok := collectionEscalation[method]
	if !ok {
		return "", time.Time{}, false
	}
	return step.next, at.AddDate(0, 0, step.afterDays), true
}

// LatestAttempt returns the attempt with the latest date. On equal dates the
// one later in the slice wins.
func LatestAttempt(attempts []domain.CollectionAttempt) (domain.CollectionAttempt, bool) {
	if len(attempts) == 0 {
		return domain.CollectionAttempt{}, false
	}
	latest := attempts[0]
	for _, attempt := range attempts[1:] {
		if !attempt.Date.Before(latest.Date) {
			latest = attempt
		}
	}
	return latest, true
}

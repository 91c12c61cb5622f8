package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/transfa/freight-billing-service/internal/domain"
)

func TestNextCollectionAction_Service(t *testing.T) {
	repo := newRepoStub()
	svc := newTestService(repo, nil, nil)
	invoice := repo.addInvoice(uuid.New(), domain.InvoiceStatusOverdue, 20)

	advice, err := svc.NextCollectionAction(context.Background(), invoice.ID)
	if err != nil {
		t.Fatalf("NextCollectionAction returned error: %v", err)
	}
	if advice.Action != domain.CollectionMethodEmail || advice.AttemptCount != 0 || advice.LastAttemptAt != nil {
		t.Fatalf("expected first email, got %+v", advice)
	}

	emailedAt := testNow.AddDate(0, 0, -3)
	repo.attempts[invoice.ID] = []domain.CollectionAttempt{{Method: domain.CollectionMethodEmail, Date: emailedAt}}

	advice, err = svc.NextCollectionAction(context.Background(), invoice.ID)
	if err != nil {
		t.Fatalf("NextCollectionAction returned error: %v", err)
	}
	if advice.Action != domain.CollectionActionWait || advice.LastMethod != domain.CollectionMethodEmail {
		t.Fatalf("expected to wait after a recent email, got %+v", advice)
	}
	if advice.EligibleAt == nil || !advice.EligibleAt.Equal(emailedAt.AddDate(0, 0, 7)) {
		t.Fatalf("expected phone eligibility a week after the email, got %v", advice.EligibleAt)
	}
}

func TestNextCollectionAction_RejectsSettledInvoice(t *testing.T) {
	repo := newRepoStub()
	svc := newTestService(repo, nil, nil)
	invoice := repo.addInvoice(uuid.New(), domain.InvoiceStatusPaid, 20)

	if _, err := svc.NextCollectionAction(context.Background(), invoice.ID); !errors.Is(err, ErrInvoiceNotOpen) {
		t.Fatalf("expected ErrInvoiceNotOpen, got %v", err)
	}
}

func TestRecordCollectionAttempt(t *testing.T) {
	repo := newRepoStub()
	publisher := &publisherStub{}
	svc := newTestService(repo, nil, publisher)
	invoice := repo.addInvoice(uuid.New(), domain.InvoiceStatusOverdue, 20)

	saved, err := svc.RecordCollectionAttempt(context.Background(), invoice.ID, domain.CollectionAttempt{
		Method: " Phone ",
		Result: " no answer ",
	})
	if err != nil {
		t.Fatalf("RecordCollectionAttempt returned error: %v", err)
	}
	if saved.Method != domain.CollectionMethodPhone || saved.Result != "no answer" {
		t.Fatalf("unexpected attempt %+v", saved)
	}
	if saved.ID == uuid.Nil || saved.InvoiceID != invoice.ID || !saved.Date.Equal(testNow) {
		t.Fatalf("expected id, invoice and date to be filled, got %+v", saved)
	}
	if publisher.count(RoutingKeyCollectionAttemptRecorded) != 1 {
		t.Fatal("expected a collection attempt event")
	}

	attempts, err := svc.ListCollectionAttempts(context.Background(), invoice.ID)
	if err != nil || len(attempts) != 1 {
		t.Fatalf("expected one stored attempt, got %v (err %v)", attempts, err)
	}
}

func TestRecordCollectionAttempt_RejectsBadInput(t *testing.T) {
	repo := newRepoStub()
	svc := newTestService(repo, nil, nil)
	invoice := repo.addInvoice(uuid.New(), domain.InvoiceStatusOverdue, 20)

	tests := []struct {
		name    string
		attempt domain.CollectionAttempt
	}{
		{name: "unknown method", attempt: domain.CollectionAttempt{Method: "carrier pigeon"}},
		{name: "future date", attempt: domain.CollectionAttempt{Method: domain.CollectionMethodEmail, Date: testNow.AddDate(0, 0, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.RecordCollectionAttempt(context.Background(), invoice.ID, tt.attempt); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if len(repo.attempts[invoice.ID]) != 0 {
		t.Fatal("expected nothing to be stored")
	}
}

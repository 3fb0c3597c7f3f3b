package catalog

import (
	"time"

	"github.com/catalog/backend/internal/domain/shared"
)

// ChangeKind classifies a storage mutation observed on the change feed
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeModify ChangeKind = "MODIFY"
	ChangeRemove ChangeKind = "REMOVE"
)

// ChangeRecord is the normalized shape of one observed mutation of the
// backing table. Records are produced by the storage engine's change feed and
// owned by the stream translator for the duration of one delivery attempt.
type ChangeRecord struct {
	// ID is the feed's record identifier, used in per-record batch outcomes
	ID string

	Kind ChangeKind

	// Key is the product id (the table's partition key)
	Key string

	// OldImage is the snapshot before the mutation: present for Modify and
	// Remove, absent for Insert.
	OldImage *Product

	// NewImage is the snapshot after the mutation: present for Insert and
	// Modify, absent for Remove.
	NewImage *Product

	// SequenceToken is monotonically increasing within a partition key and
	// identifies the mutation for idempotency and ordering.
	SequenceToken string

	ArrivalTime time.Time
}

// Validate enforces the image-presence invariant for the record kind.
// A violation means the record is malformed: it is skipped and logged, never
// retried, because redelivery cannot repair it.
func (r *ChangeRecord) Validate() error {
	if r.Key == "" {
		return malformed("change record has no key")
	}
	if r.SequenceToken == "" {
		return malformed("change record has no sequence token")
	}
	switch r.Kind {
	case ChangeInsert:
		if r.NewImage == nil {
			return malformed("insert record has no new image")
		}
		if r.OldImage != nil {
			return malformed("insert record carries an old image")
		}
	case ChangeModify:
		if r.NewImage == nil || r.OldImage == nil {
			return malformed("modify record requires both images")
		}
	case ChangeRemove:
		if r.OldImage == nil {
			return malformed("remove record has no old image")
		}
		if r.NewImage != nil {
			return malformed("remove record carries a new image")
		}
	default:
		return malformed("unknown change kind " + string(r.Kind))
	}
	return nil
}

// Event maps the record to its outbound domain event:
// Insert -> ProductCreated, Modify -> ProductUpdated, Remove -> ProductDeleted.
// The record must be valid; Event revalidates and reports malformed records.
func (r *ChangeRecord) Event() (shared.DomainEvent, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	switch r.Kind {
	case ChangeInsert:
		return NewProductCreatedEvent(r.NewImage, r.SequenceToken), nil
	case ChangeModify:
		return NewProductUpdatedEvent(r.NewImage, r.OldImage, r.SequenceToken), nil
	default:
		return NewProductDeletedEvent(r.Key, r.SequenceToken), nil
	}
}

// Unchanged reports whether a Modify record is a no-op rewrite
// (old and new images semantically equal).
func (r *ChangeRecord) Unchanged() bool {
	return r.Kind == ChangeModify && r.OldImage.Equal(r.NewImage)
}

func malformed(message string) error {
	return shared.NewDomainError(shared.ErrMalformedRecord.Code, message)
}

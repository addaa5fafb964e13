package matching

import (
	"context"

	"github.com/google/uuid"

	"github.com/Urigo/accounter-fullstack-sub017/internal/ledger"
)

// Repository encapsulates DB access for matching. The charge, transaction
// and document shapes are shared with the ledger engine; matching only adds
// the unattached pools and the attach operations.
type Repository interface {
	GetCharge(ctx context.Context, chargeID uuid.UUID) (ledger.Charge, error)
	ListTransactions(ctx context.Context, chargeID uuid.UUID) ([]ledger.Transaction, error)
	ListDocuments(ctx context.Context, chargeID uuid.UUID) ([]ledger.Document, error)

	// ListUnattachedDocuments returns the owner's accounting documents not
	// yet attached to any charge.
	ListUnattachedDocuments(ctx context.Context, ownerID uuid.UUID) ([]ledger.Document, error)
	// ListUnattachedTransactions returns the owner's transactions not yet
	// attached to any charge.
	ListUnattachedTransactions(ctx context.Context, ownerID uuid.UUID) ([]ledger.Transaction, error)

	// AttachDocument sets the document's charge. Fails with
	// ErrDocumentNotFound when the document is missing or already attached.
	AttachDocument(ctx context.Context, documentID, chargeID uuid.UUID) error
	// AttachTransaction sets the transaction's charge, symmetric to
	// AttachDocument.
	AttachTransaction(ctx context.Context, transactionID, chargeID uuid.UUID) error
}

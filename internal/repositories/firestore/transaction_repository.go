package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/harborstay/api/internal/domain"
	pfirestore "github.com/harborstay/api/internal/platform/firestore"
	"github.com/harborstay/api/internal/repositories"
)

const transactionsCollection = "transactions"

type lineItemDocument struct {
	Code            string   `firestore:"code"`
	UnitPriceAmount int64    `firestore:"unitPriceAmount"`
	Currency        string   `firestore:"currency"`
	Quantity        *int64   `firestore:"quantity,omitempty"`
	Units           *int64   `firestore:"units,omitempty"`
	Seats           *int64   `firestore:"seats,omitempty"`
	Percentage      *float64 `firestore:"percentage,omitempty"`
	LineTotal       *int64   `firestore:"lineTotal,omitempty"`
	IncludeFor      []string `firestore:"includeFor"`
	Reversal        bool     `firestore:"reversal"`
}

type transactionDocument struct {
	CustomerID     string             `firestore:"customerId"`
	ProviderID     string             `firestore:"providerId"`
	ListingID      string             `firestore:"listingId"`
	LastTransition string             `firestore:"lastTransition"`
	LineItems      []lineItemDocument `firestore:"lineItems"`
	PayinTotal     int64              `firestore:"payinTotal"`
	PayoutTotal    int64              `firestore:"payoutTotal"`
	Currency       string             `firestore:"currency"`
	CouponCode     string             `firestore:"couponCode,omitempty"`
	Metadata       map[string]any     `firestore:"metadata,omitempty"`
	CreatedAt      time.Time          `firestore:"createdAt"`
	UpdatedAt      time.Time          `firestore:"updatedAt"`
}

func lineItemDocumentFromDomain(item domain.LineItem) lineItemDocument {
	includeFor := make([]string, 0, len(item.IncludeFor))
	for _, party := range item.IncludeFor {
		includeFor = append(includeFor, string(party))
	}
	doc := lineItemDocument{
		Code:            item.Code,
		UnitPriceAmount: item.UnitPrice.Amount,
		Currency:        item.UnitPrice.Currency,
		Quantity:        item.Quantity,
		Units:           item.Units,
		Seats:           item.Seats,
		Percentage:      item.Percentage,
		IncludeFor:      includeFor,
		Reversal:        item.Reversal,
	}
	if item.LineTotal != nil {
		total := item.LineTotal.Amount
		doc.LineTotal = &total
	}
	return doc
}

func (d lineItemDocument) toDomain() domain.LineItem {
	includeFor := make([]domain.Party, 0, len(d.IncludeFor))
	for _, party := range d.IncludeFor {
		includeFor = append(includeFor, domain.Party(party))
	}
	item := domain.LineItem{
		Code:       d.Code,
		UnitPrice:  domain.NewMoney(d.UnitPriceAmount, d.Currency),
		Quantity:   d.Quantity,
		Units:      d.Units,
		Seats:      d.Seats,
		Percentage: d.Percentage,
		IncludeFor: includeFor,
		Reversal:   d.Reversal,
	}
	if d.LineTotal != nil {
		total := domain.NewMoney(*d.LineTotal, d.Currency)
		item.LineTotal = &total
	}
	return item
}

func transactionDocumentFromDomain(txn domain.Transaction) transactionDocument {
	items := make([]lineItemDocument, 0, len(txn.LineItems))
	for _, item := range txn.LineItems {
		items = append(items, lineItemDocumentFromDomain(item))
	}
	return transactionDocument{
		CustomerID:     txn.CustomerID,
		ProviderID:     txn.ProviderID,
		ListingID:      txn.ListingID,
		LastTransition: txn.LastTransition,
		LineItems:      items,
		PayinTotal:     txn.PayinTotal.Amount,
		PayoutTotal:    txn.PayoutTotal.Amount,
		Currency:       txn.PayinTotal.Currency,
		CouponCode:     txn.CouponCode,
		Metadata:       txn.Metadata,
		CreatedAt:      txn.CreatedAt,
		UpdatedAt:      txn.UpdatedAt,
	}
}

func (d transactionDocument) toDomain(id string) domain.Transaction {
	items := make([]domain.LineItem, 0, len(d.LineItems))
	for _, item := range d.LineItems {
		items = append(items, item.toDomain())
	}
	return domain.Transaction{
		ID:             id,
		CustomerID:     d.CustomerID,
		ProviderID:     d.ProviderID,
		ListingID:      d.ListingID,
		LastTransition: d.LastTransition,
		LineItems:      items,
		PayinTotal:     domain.NewMoney(d.PayinTotal, d.Currency),
		PayoutTotal:    domain.NewMoney(d.PayoutTotal, d.Currency),
		CouponCode:     d.CouponCode,
		Metadata:       d.Metadata,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// TransactionRepository implements repositories.TransactionRepository backed by Firestore.
type TransactionRepository struct {
	transactions *pfirestore.BaseRepository[transactionDocument]
}

var _ repositories.TransactionRepository = (*TransactionRepository)(nil)

// NewTransactionRepository constructs a Firestore-backed transaction repository.
func NewTransactionRepository(provider *pfirestore.Provider) (*TransactionRepository, error) {
	if provider == nil {
		return nil, errors.New("transaction repository requires firestore provider")
	}
	return &TransactionRepository{
		transactions: pfirestore.NewBaseRepository[transactionDocument](provider, transactionsCollection, nil, nil),
	}, nil
}

// Create persists a new transaction record.
func (r *TransactionRepository) Create(ctx context.Context, txn domain.Transaction) error {
	if r == nil || r.transactions == nil {
		return errors.New("transaction repository not initialised")
	}
	if strings.TrimSpace(txn.ID) == "" {
		return errors.New("transaction id is required")
	}
	_, err := r.transactions.Set(ctx, txn.ID, transactionDocumentFromDomain(txn))
	return err
}

// FindByID fetches a transaction by identifier.
func (r *TransactionRepository) FindByID(ctx context.Context, txnID string) (domain.Transaction, error) {
	if r == nil || r.transactions == nil {
		return domain.Transaction{}, errors.New("transaction repository not initialised")
	}
	doc, err := r.transactions.Get(ctx, txnID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// HasCompletedTransaction reports whether the customer has at least one prior
// transaction on the listing whose last transition is in transitions.
func (r *TransactionRepository) HasCompletedTransaction(ctx context.Context, customerID, listingID string, transitions []string) (bool, error) {
	if r == nil || r.transactions == nil {
		return false, errors.New("transaction repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	listingID = strings.TrimSpace(listingID)
	if customerID == "" || listingID == "" || len(transitions) == 0 {
		return false, nil
	}

	// Firestore "in" filters cap at 30 values; the transition set is well below that.
	docs, err := r.transactions.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("customerId", "==", customerID).
			Where("listingId", "==", listingID).
			Where("lastTransition", "in", transitions).
			Limit(1)
	})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// UpdateTransition records the latest transition on the transaction.
func (r *TransactionRepository) UpdateTransition(ctx context.Context, txnID, transition string) error {
	if r == nil || r.transactions == nil {
		return errors.New("transaction repository not initialised")
	}
	_, err := r.transactions.Update(ctx, txnID, []firestore.Update{
		{Path: "lastTransition", Value: transition},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}

// MergeMetadata merges the given keys into the transaction metadata map.
func (r *TransactionRepository) MergeMetadata(ctx context.Context, txnID string, metadata map[string]any) error {
	if r == nil || r.transactions == nil {
		return errors.New("transaction repository not initialised")
	}
	if len(metadata) == 0 {
		return nil
	}
	updates := make([]firestore.Update, 0, len(metadata)+1)
	for key, value := range metadata {
		updates = append(updates, firestore.Update{Path: "metadata." + key, Value: value})
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: time.Now().UTC()})
	_, err := r.transactions.Update(ctx, txnID, updates)
	return err
}

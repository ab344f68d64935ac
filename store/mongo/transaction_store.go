package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultCollection = "bdpay_transactions"

type transactionDocument struct {
	ID               string         `bson:"_id"`
	OrderID          string         `bson:"order_id"`
	TransactionID    string         `bson:"transaction_id,omitempty"`
	Kind             string         `bson:"kind"`
	Status           string         `bson:"status"`
	Amount           string         `bson:"amount"`
	Currency         string         `bson:"currency"`
	CustomerName     string         `bson:"customer_name,omitempty"`
	CustomerEmail    string         `bson:"customer_email,omitempty"`
	CustomerPhone    string         `bson:"customer_phone,omitempty"`
	RecipientName    string         `bson:"recipient_name,omitempty"`
	RecipientAccount string         `bson:"recipient_account,omitempty"`
	BankCode         string         `bson:"bank_code,omitempty"`
	Description      string         `bson:"description,omitempty"`
	RequestData      map[string]any `bson:"request_data,omitempty"`
	ResponseData     map[string]any `bson:"response_data,omitempty"`
	PaymentMethod    string         `bson:"payment_method,omitempty"`
	VANumber         string         `bson:"va_number,omitempty"`
	PaymentLink      string         `bson:"payment_link,omitempty"`
	ExpiredAt        *time.Time     `bson:"expired_at,omitempty"`
	PaidAt           *time.Time     `bson:"paid_at,omitempty"`
	CreatedAt        time.Time      `bson:"created_at"`
	UpdatedAt        time.Time      `bson:"updated_at"`
}

// TransactionStore keeps ledger rows in one collection with a unique
// (order_id, kind) index.
type TransactionStore struct {
	collection *mongo.Collection
	Now        func() time.Time
}

type Option func(*storeOptions)

type storeOptions struct {
	collection string
}

func WithCollection(name string) Option {
	return func(o *storeOptions) {
		if name = strings.TrimSpace(name); name != "" {
			o.collection = name
		}
	}
}

func NewTransactionStore(db *mongo.Database, opts ...Option) (*TransactionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("mongostore: database is required")
	}
	resolved := storeOptions{collection: DefaultCollection}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return &TransactionStore{
		collection: db.Collection(resolved.collection),
		Now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureIndexes creates the uniqueness and listing indexes. It is safe to
// call on every start.
func (s *TransactionStore) EnsureIndexes(ctx context.Context) error {
	if s == nil || s.collection == nil {
		return fmt.Errorf("mongostore: transaction store is not configured")
	}
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}, {Key: "kind", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("ux_order_kind"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("ix_status_created"),
		},
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetName("ix_transaction_id").SetSparse(true),
		},
	})
	return err
}

func (s *TransactionStore) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if s == nil || s.collection == nil {
		return core.Transaction{}, fmt.Errorf("mongostore: transaction store is not configured")
	}
	tx.OrderID = strings.TrimSpace(tx.OrderID)
	if tx.OrderID == "" {
		return core.Transaction{}, core.MissingOrderIDError(nil)
	}
	if strings.TrimSpace(tx.ID) == "" {
		tx.ID = uuid.NewString()
	}
	now := s.now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}

	doc := newTransactionDocument(tx)
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.Transaction{}, core.DuplicateRecordError(tx.OrderID, tx.Kind)
		}
		return core.Transaction{}, err
	}
	return doc.toDomain()
}

func (s *TransactionStore) FindByOrder(ctx context.Context, orderID string, kind core.TransactionKind) (core.Transaction, error) {
	return s.findOne(ctx, orderFilter(orderID, kind), orderID, kind)
}

func (s *TransactionStore) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: strings.TrimSpace(id)}}, id, "")
}

// Update sets the mutable fields of the stored document and returns it as
// written. Order, kind and creation time are never overwritten, and a
// stored paid_at is kept.
func (s *TransactionStore) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if s == nil || s.collection == nil {
		return core.Transaction{}, fmt.Errorf("mongostore: transaction store is not configured")
	}
	filter := orderFilter(tx.OrderID, tx.Kind)
	if id := strings.TrimSpace(tx.ID); id != "" {
		filter = bson.D{{Key: "_id", Value: id}}
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = s.now()
	}
	doc := newTransactionDocument(tx)
	set := bson.D{
		{Key: "transaction_id", Value: doc.TransactionID},
		{Key: "status", Value: doc.Status},
		{Key: "amount", Value: doc.Amount},
		{Key: "currency", Value: doc.Currency},
		{Key: "customer_name", Value: doc.CustomerName},
		{Key: "customer_email", Value: doc.CustomerEmail},
		{Key: "customer_phone", Value: doc.CustomerPhone},
		{Key: "recipient_name", Value: doc.RecipientName},
		{Key: "recipient_account", Value: doc.RecipientAccount},
		{Key: "bank_code", Value: doc.BankCode},
		{Key: "description", Value: doc.Description},
		{Key: "request_data", Value: doc.RequestData},
		{Key: "response_data", Value: doc.ResponseData},
		{Key: "payment_method", Value: doc.PaymentMethod},
		{Key: "va_number", Value: doc.VANumber},
		{Key: "payment_link", Value: doc.PaymentLink},
		{Key: "expired_at", Value: doc.ExpiredAt},
		{Key: "updated_at", Value: doc.UpdatedAt},
	}
	stage := make(bson.D, 0, len(set)+1)
	for _, field := range set {
		stage = append(stage, bson.E{Key: field.Key, Value: bson.D{{Key: "$literal", Value: field.Value}}})
	}
	// paid_at is write-once: a stored value always wins over the caller's.
	if doc.PaidAt != nil {
		stage = append(stage, bson.E{Key: "paid_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{
			"$paid_at",
			bson.D{{Key: "$literal", Value: *doc.PaidAt}},
		}}}})
	}

	var updated transactionDocument
	err := s.collection.FindOneAndUpdate(
		ctx,
		filter,
		mongo.Pipeline{bson.D{{Key: "$set", Value: stage}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return core.Transaction{}, core.NotFoundError(tx.OrderID, tx.Kind)
		}
		return core.Transaction{}, err
	}
	return updated.toDomain()
}

// List returns one page ordered newest first plus the total match count.
func (s *TransactionStore) List(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, int, error) {
	if s == nil || s.collection == nil {
		return nil, 0, fmt.Errorf("mongostore: transaction store is not configured")
	}
	query := bson.D{}
	if filter.Kind != "" {
		query = append(query, bson.E{Key: "kind", Value: string(filter.Kind)})
	}
	if filter.Status != "" {
		query = append(query, bson.E{Key: "status", Value: string(filter.Status)})
	}

	total, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		findOpts.SetLimit(int64(filter.Limit))
		if filter.Offset > 0 {
			findOpts.SetSkip(int64(filter.Offset))
		}
	}
	cursor, err := s.collection.Find(ctx, query, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var docs []transactionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	items := make([]core.Transaction, 0, len(docs))
	for _, doc := range docs {
		item, err := doc.toDomain()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, int(total), nil
}

func (s *TransactionStore) findOne(ctx context.Context, filter bson.D, ref string, kind core.TransactionKind) (core.Transaction, error) {
	if s == nil || s.collection == nil {
		return core.Transaction{}, fmt.Errorf("mongostore: transaction store is not configured")
	}
	var doc transactionDocument
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return core.Transaction{}, core.NotFoundError(ref, kind)
		}
		return core.Transaction{}, err
	}
	return doc.toDomain()
}

func (s *TransactionStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func orderFilter(orderID string, kind core.TransactionKind) bson.D {
	return bson.D{
		{Key: "order_id", Value: strings.TrimSpace(orderID)},
		{Key: "kind", Value: string(kind)},
	}
}

func newTransactionDocument(tx core.Transaction) transactionDocument {
	return transactionDocument{
		ID:               tx.ID,
		OrderID:          tx.OrderID,
		TransactionID:    tx.TransactionID,
		Kind:             string(tx.Kind),
		Status:           string(tx.Status),
		Amount:           tx.Amount.String(),
		Currency:         tx.Currency,
		CustomerName:     tx.CustomerName,
		CustomerEmail:    tx.CustomerEmail,
		CustomerPhone:    tx.CustomerPhone,
		RecipientName:    tx.RecipientName,
		RecipientAccount: tx.RecipientAccount,
		BankCode:         tx.BankCode,
		Description:      tx.Description,
		RequestData:      tx.RequestData,
		ResponseData:     tx.ResponseData,
		PaymentMethod:    tx.PaymentMethod,
		VANumber:         tx.VANumber,
		PaymentLink:      tx.PaymentLink,
		ExpiredAt:        utcPointer(tx.ExpiredAt),
		PaidAt:           utcPointer(tx.PaidAt),
		CreatedAt:        tx.CreatedAt.UTC(),
		UpdatedAt:        tx.UpdatedAt.UTC(),
	}
}

func (d transactionDocument) toDomain() (core.Transaction, error) {
	amount := decimal.Zero
	if strings.TrimSpace(d.Amount) != "" {
		parsed, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("mongostore: invalid amount %q for order %s: %w", d.Amount, d.OrderID, err)
		}
		amount = parsed
	}
	return core.Transaction{
		ID:               d.ID,
		OrderID:          d.OrderID,
		TransactionID:    d.TransactionID,
		Kind:             core.TransactionKind(d.Kind),
		Status:           core.TransactionStatus(d.Status),
		Amount:           amount,
		Currency:         d.Currency,
		CustomerName:     d.CustomerName,
		CustomerEmail:    d.CustomerEmail,
		CustomerPhone:    d.CustomerPhone,
		RecipientName:    d.RecipientName,
		RecipientAccount: d.RecipientAccount,
		BankCode:         d.BankCode,
		Description:      d.Description,
		RequestData:      d.RequestData,
		ResponseData:     d.ResponseData,
		PaymentMethod:    d.PaymentMethod,
		VANumber:         d.VANumber,
		PaymentLink:      d.PaymentLink,
		ExpiredAt:        utcPointer(d.ExpiredAt),
		PaidAt:           utcPointer(d.PaidAt),
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}, nil
}

func utcPointer(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	value := in.UTC()
	return &value
}

var _ core.TransactionStore = (*TransactionStore)(nil)

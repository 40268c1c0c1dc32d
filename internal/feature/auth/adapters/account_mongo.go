package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"account_backend/internal/feature/auth/domain/entity"
	"account_backend/internal/feature/auth/usecase"
)

// AccountsCollection is the collection holding account documents.
const AccountsCollection = "accounts"

// accountDocument is the BSON shape of an account. Absent optional fields
// are omitted from the document, which is what the partial unique indexes key on.
type accountDocument struct {
	ID                       bson.ObjectID `bson:"_id,omitempty"`
	Email                    *string       `bson:"email,omitempty"`
	Phone                    *string       `bson:"phone,omitempty"`
	ExternalID               *string       `bson:"external_id,omitempty"`
	ExternalUsername         *string       `bson:"external_username,omitempty"`
	PhotoURL                 string        `bson:"photo_url"`
	PasswordHash             *string       `bson:"password_hash,omitempty"`
	FirstName                string        `bson:"first_name"`
	LastName                 *string       `bson:"last_name,omitempty"`
	AuthMethod               string        `bson:"auth_method"`
	IsVerified               bool          `bson:"is_verified"`
	VerificationCode         *string       `bson:"verification_code,omitempty"`
	VerificationCodeIssuedAt *time.Time    `bson:"verification_code_issued_at,omitempty"`
	ResetCode                *string       `bson:"reset_code,omitempty"`
	ResetCodeIssuedAt        *time.Time    `bson:"reset_code_issued_at,omitempty"`
	Version                  int64         `bson:"version"`
	CreatedAt                time.Time     `bson:"created_at"`
	UpdatedAt                time.Time     `bson:"updated_at"`
}

func (d *accountDocument) toEntity() *entity.Account {
	return &entity.Account{
		ID:                       d.ID.Hex(),
		Email:                    d.Email,
		Phone:                    d.Phone,
		ExternalID:               d.ExternalID,
		ExternalUsername:         d.ExternalUsername,
		PhotoURL:                 d.PhotoURL,
		PasswordHash:             d.PasswordHash,
		FirstName:                d.FirstName,
		LastName:                 d.LastName,
		AuthMethod:               entity.AuthMethod(d.AuthMethod),
		IsVerified:               d.IsVerified,
		VerificationCode:         d.VerificationCode,
		VerificationCodeIssuedAt: d.VerificationCodeIssuedAt,
		ResetCode:                d.ResetCode,
		ResetCodeIssuedAt:        d.ResetCodeIssuedAt,
		Version:                  d.Version,
		CreatedAt:                d.CreatedAt,
		UpdatedAt:                d.UpdatedAt,
	}
}

func documentFromEntity(a *entity.Account) *accountDocument {
	return &accountDocument{
		Email:                    a.Email,
		Phone:                    a.Phone,
		ExternalID:               a.ExternalID,
		ExternalUsername:         a.ExternalUsername,
		PhotoURL:                 a.PhotoURL,
		PasswordHash:             a.PasswordHash,
		FirstName:                a.FirstName,
		LastName:                 a.LastName,
		AuthMethod:               string(a.AuthMethod),
		IsVerified:               a.IsVerified,
		VerificationCode:         a.VerificationCode,
		VerificationCodeIssuedAt: a.VerificationCodeIssuedAt,
		ResetCode:                a.ResetCode,
		ResetCodeIssuedAt:        a.ResetCodeIssuedAt,
		Version:                  a.Version,
		CreatedAt:                a.CreatedAt,
		UpdatedAt:                a.UpdatedAt,
	}
}

// accountMongo implements usecase.AccountRepository on a MongoDB collection.
type accountMongo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

var _ usecase.AccountRepository = (*accountMongo)(nil)

// NewAccountMongo creates the repository. Call EnsureIndexes once at startup.
func NewAccountMongo(db *mongo.Database, timeout time.Duration) *accountMongo {
	return &accountMongo{coll: db.Collection(AccountsCollection), timeout: timeout}
}

// AccountIndexes returns the sparse unique indexes on the identity fields.
func AccountIndexes() []mongo.IndexModel {
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys: bson.D{{Key: field, Value: 1}},
			Options: options.Index().
				SetName("accounts_" + field + "_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{field: bson.M{"$type": "string"}}),
		}
	}
	return []mongo.IndexModel{
		unique("email"),
		unique("phone"),
		unique("external_id"),
	}
}

// EnsureIndexes creates the unique indexes if they do not exist.
func (r *accountMongo) EnsureIndexes(ctx context.Context) error {
	if _, err := r.coll.Indexes().CreateMany(ctx, AccountIndexes()); err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}

func (r *accountMongo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Create inserts a new document and assigns its ObjectID.
func (r *accountMongo) Create(ctx context.Context, a *entity.Account) error {
	if a == nil {
		return errors.New("account is nil")
	}
	if !a.HasIdentity() {
		return ErrNoIdentity
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	doc := documentFromEntity(a)
	doc.ID = bson.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Version = 1
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return translateMongoError(err)
	}
	a.ID = doc.ID.Hex()
	a.Version = doc.Version
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// FindByID looks the account up by its hex ObjectID.
func (r *accountMongo) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, usecase.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByEmailOrPhone runs one $or match, ranking an email match first.
func (r *accountMongo) FindByEmailOrPhone(ctx context.Context, email, phone string) (*entity.Account, error) {
	filter := EmailOrPhoneFilter(email, phone)
	if filter == nil {
		return nil, usecase.ErrAccountNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$addFields", Value: bson.M{
			"_rank": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$email", email}}, 0, 1}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_rank", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: 1}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, translateMongoError(err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, translateMongoError(err)
		}
		return nil, usecase.ErrAccountNotFound
	}
	var doc accountDocument
	if err := cur.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return doc.toEntity(), nil
}

// EmailOrPhoneFilter builds the match for the non-empty identifiers, or nil when both are empty.
func EmailOrPhoneFilter(email, phone string) bson.M {
	var or bson.A
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if phone != "" {
		or = append(or, bson.M{"phone": phone})
	}
	switch len(or) {
	case 0:
		return nil
	case 1:
		return or[0].(bson.M)
	}
	return bson.M{"$or": or}
}

// FindByExternalID looks the account up by federated identity.
func (r *accountMongo) FindByExternalID(ctx context.Context, externalID string) (*entity.Account, error) {
	if externalID == "" {
		return nil, usecase.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"external_id": externalID})
}

// Update replaces the whole document, dropping fields that became absent.
// The replacement only applies while the stored version equals a.Version.
func (r *accountMongo) Update(ctx context.Context, a *entity.Account) error {
	if a == nil {
		return usecase.ErrAccountNotFound
	}
	if !a.HasIdentity() {
		return ErrNoIdentity
	}
	oid, err := bson.ObjectIDFromHex(a.ID)
	if err != nil {
		return usecase.ErrAccountNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	doc := documentFromEntity(a)
	doc.ID = oid
	doc.UpdatedAt = time.Now().UTC()
	doc.Version = a.Version + 1
	res, err := r.coll.ReplaceOne(ctx, VersionFilter(oid, a.Version), doc)
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return translateMongoError(err)
		}
		if n == 0 {
			return usecase.ErrAccountNotFound
		}
		return usecase.ErrConcurrentUpdate
	}
	a.UpdatedAt = doc.UpdatedAt
	a.Version = doc.Version
	return nil
}

// VersionFilter matches the document by id and version. Documents written
// before versioning have no version field and count as version 0.
func VersionFilter(oid bson.ObjectID, version int64) bson.M {
	if version == 0 {
		return bson.M{"_id": oid, "version": bson.M{"$in": bson.A{int64(0), nil}}}
	}
	return bson.M{"_id": oid, "version": version}
}

func (r *accountMongo) findOne(ctx context.Context, filter bson.M) (*entity.Account, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var doc accountDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	return doc.toEntity(), nil
}

func translateMongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return usecase.ErrAccountNotFound
	case mongo.IsDuplicateKeyError(err):
		return &usecase.ConflictError{Field: conflictField(duplicateIndexName(err.Error()))}
	case mongo.IsTimeout(err), mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", usecase.ErrStoreUnavailable, err)
	}
	return err
}

// duplicateIndexName extracts the index name from an E11000 message such as
// "E11000 duplicate key error collection: app.accounts index: accounts_email_unique dup key: ...".
func duplicateIndexName(msg string) string {
	const marker = "index: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return msg
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexByte(rest, ' '); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

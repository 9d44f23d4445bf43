package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/auth-system/internal/core/domain"
)

const collectionIdentities = "identities"

// IdentityRepository stores identities, one document each. The one-time proof
// tokens live as sub-documents so that issuing overwrites and redeeming is a
// single conditional findAndModify.
type IdentityRepository struct {
	col *mongo.Collection
}

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{col: db.Collection(collectionIdentities)}
}

type mongoIdentity struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	PasswordHash string             `bson:"password_hash"`
	AvatarURL    string             `bson:"avatar_url,omitempty"`
	Role         string             `bson:"role"`
	Verified     bool               `bson:"verified"`
	Verification *domain.ProofToken `bson:"verification,omitempty"`
	Reset        *domain.ProofToken `bson:"reset,omitempty"`
	LastLoginAt  time.Time          `bson:"last_login_at,omitempty"`
	LastLoginIP  string             `bson:"last_login_ip,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func toMongoIdentity(i *domain.Identity) mongoIdentity {
	return mongoIdentity{
		Email:        i.Email,
		Name:         i.Name,
		PasswordHash: string(i.PasswordHash),
		AvatarURL:    i.AvatarURL,
		Role:         string(i.Role),
		Verified:     i.Verified,
		Verification: i.Verification,
		Reset:        i.Reset,
		LastLoginAt:  i.LastLoginAt,
		LastLoginIP:  i.LastLoginIP,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

func (m *mongoIdentity) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:           m.ID.Hex(),
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: domain.PasswordHash(m.PasswordHash),
		AvatarURL:    m.AvatarURL,
		Role:         domain.Role(m.Role),
		Verified:     m.Verified,
		Verification: m.Verification,
		Reset:        m.Reset,
		LastLoginAt:  m.LastLoginAt.UTC(),
		LastLoginIP:  m.LastLoginIP,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toMongoIdentity(identity)
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrIdentityNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *IdentityRepository) findOne(ctx context.Context, filter bson.M) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoIdentity
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return doc.toDomain(), nil
}

// List returns a page of identities, newest first, and the total count.
func (r *IdentityRepository) List(ctx context.Context, page, limit int) ([]*domain.Identity, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list identities: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoIdentity
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode identities: %w", err)
	}

	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count identities: %w", err)
	}

	out := make([]*domain.Identity, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, total, nil
}

func (r *IdentityRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate, now time.Time) (*domain.Identity, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrIdentityNotFound
	}

	set := bson.M{"updated_at": now}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.AvatarURL != nil {
		set["avatar_url"] = *update.AvatarURL
	}
	if update.Role != nil {
		set["role"] = string(*update.Role)
	}

	updated, err := r.findAndModify(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrIdentityNotFound
	}
	return updated, err
}

func (r *IdentityRepository) SetPasswordHash(ctx context.Context, id string, hash domain.PasswordHash, now time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"password_hash": string(hash), "updated_at": now}})
}

func (r *IdentityRepository) RecordLogin(ctx context.Context, id, ip string, at time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"last_login_at": at, "last_login_ip": ip}})
}

// SetProof replaces the whole sub-document, so hash and expiry always change together.
func (r *IdentityRepository) SetProof(ctx context.Context, id string, purpose domain.ProofPurpose, token domain.ProofToken, now time.Time) error {
	field, err := proofField(purpose)
	if err != nil {
		return err
	}
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{field: token, "updated_at": now}})
}

func (r *IdentityRepository) ConsumeVerification(ctx context.Context, tokenHash string, now time.Time) (*domain.Identity, error) {
	return r.consume(ctx, "verification", tokenHash, now, bson.M{"verified": true, "updated_at": now})
}

func (r *IdentityRepository) ConsumeReset(ctx context.Context, tokenHash string, hash domain.PasswordHash, now time.Time) (*domain.Identity, error) {
	return r.consume(ctx, "reset", tokenHash, now, bson.M{"password_hash": string(hash), "updated_at": now})
}

// consume matches an unexpired token and clears it in the same write. Two
// concurrent callers cannot both match because the first $unset removes the
// predicate's field.
func (r *IdentityRepository) consume(ctx context.Context, field, tokenHash string, now time.Time, set bson.M) (*domain.Identity, error) {
	filter := bson.M{
		field + ".token_hash": tokenHash,
		field + ".expires_at": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   set,
		"$unset": bson.M{field: ""},
	}

	identity, err := r.findAndModify(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	return identity, err
}

func (r *IdentityRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrIdentityNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

// EnsureIndexes creates the unique email index and the lookup indexes for
// proof token redemption.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "verification.token_hash", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "reset.token_hash", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *IdentityRepository) findAndModify(ctx context.Context, filter, update bson.M) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoIdentity
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update identity: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) updateByID(ctx context.Context, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrIdentityNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func proofField(purpose domain.ProofPurpose) (string, error) {
	switch purpose {
	case domain.PurposeVerification:
		return "verification", nil
	case domain.PurposeReset:
		return "reset", nil
	}
	return "", fmt.Errorf("unknown proof purpose %q", purpose)
}

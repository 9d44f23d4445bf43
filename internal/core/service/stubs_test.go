package service

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/auth-system/internal/core/domain"
	"github.com/99minutos/auth-system/internal/core/token"
)

// --- clock ---

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- identity repository ---

// stubIdentityRepo reproduces the conditional updates of the Mongo repository
// under a single mutex.
type stubIdentityRepo struct {
	mu        sync.Mutex
	seq       int
	byID      map[string]*domain.Identity
	findByIDs int
}

func newStubIdentityRepo() *stubIdentityRepo {
	return &stubIdentityRepo{byID: make(map[string]*domain.Identity)}
}

func cloneIdentity(i *domain.Identity) *domain.Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.Verification != nil {
		v := *i.Verification
		c.Verification = &v
	}
	if i.Reset != nil {
		r := *i.Reset
		c.Reset = &r
	}
	return &c
}

func (r *stubIdentityRepo) emailTaken(email, exceptID string) bool {
	for id, u := range r.byID {
		if u.Email == email && id != exceptID {
			return true
		}
	}
	return false
}

func (r *stubIdentityRepo) Create(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(identity.Email, "") {
		return nil, domain.ErrDuplicateEmail
	}
	r.seq++
	c := cloneIdentity(identity)
	c.ID = "id-" + strconv.Itoa(r.seq)
	r.byID[c.ID] = c
	return cloneIdentity(c), nil
}

func (r *stubIdentityRepo) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			return cloneIdentity(u), nil
		}
	}
	return nil, domain.ErrIdentityNotFound
}

func (r *stubIdentityRepo) FindByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findByIDs++
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return cloneIdentity(u), nil
}

func (r *stubIdentityRepo) List(_ context.Context, page, limit int) ([]*domain.Identity, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	start := (page - 1) * limit
	var out []*domain.Identity
	for i := start; i < len(ids) && i < start+limit; i++ {
		out = append(out, cloneIdentity(r.byID[ids[i]]))
	}
	return out, int64(len(ids)), nil
}

func (r *stubIdentityRepo) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate, now time.Time) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	if update.Email != nil && r.emailTaken(*update.Email, id) {
		return nil, domain.ErrDuplicateEmail
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.AvatarURL != nil {
		u.AvatarURL = *update.AvatarURL
	}
	if update.Role != nil {
		u.Role = *update.Role
	}
	u.UpdatedAt = now
	return cloneIdentity(u), nil
}

func (r *stubIdentityRepo) SetPasswordHash(_ context.Context, id string, hash domain.PasswordHash, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = now
	return nil
}

func (r *stubIdentityRepo) RecordLogin(_ context.Context, id, ip string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	u.LastLoginAt = at
	u.LastLoginIP = ip
	return nil
}

func (r *stubIdentityRepo) SetProof(_ context.Context, id string, purpose domain.ProofPurpose, tok domain.ProofToken, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	if purpose == domain.PurposeVerification {
		u.Verification = &tok
	} else {
		u.Reset = &tok
	}
	u.UpdatedAt = now
	return nil
}

func (r *stubIdentityRepo) ConsumeVerification(_ context.Context, tokenHash string, now time.Time) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Verification != nil && u.Verification.TokenHash == tokenHash && u.Verification.ActiveAt(now) {
			u.Verified = true
			u.Verification = nil
			u.UpdatedAt = now
			return cloneIdentity(u), nil
		}
	}
	return nil, domain.ErrInvalidOrExpiredToken
}

func (r *stubIdentityRepo) ConsumeReset(_ context.Context, tokenHash string, hash domain.PasswordHash, now time.Time) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Reset != nil && u.Reset.TokenHash == tokenHash && u.Reset.ActiveAt(now) {
			u.PasswordHash = hash
			u.Reset = nil
			u.UpdatedAt = now
			return cloneIdentity(u), nil
		}
	}
	return nil, domain.ErrInvalidOrExpiredToken
}

func (r *stubIdentityRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrIdentityNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *stubIdentityRepo) get(id string) *domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneIdentity(r.byID[id])
}

// --- session repository ---

type stubSessionRepo struct {
	mu     sync.Mutex
	byHash map[string]*domain.RefreshSession
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{byHash: make(map[string]*domain.RefreshSession)}
}

func (r *stubSessionRepo) Create(_ context.Context, s *domain.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.byHash[s.TokenHash] = &c
	return nil
}

func (r *stubSessionRepo) Take(_ context.Context, tokenHash string) (*domain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[tokenHash]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	delete(r.byHash, tokenHash)
	return s, nil
}

func (r *stubSessionRepo) DeleteByHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byHash, tokenHash)
	return nil
}

func (r *stubSessionRepo) DeleteByFamily(_ context.Context, familyID string) (int64, error) {
	return r.deleteWhere(func(s *domain.RefreshSession) bool { return s.FamilyID == familyID }), nil
}

func (r *stubSessionRepo) DeleteByIdentity(_ context.Context, identityID string) (int64, error) {
	return r.deleteWhere(func(s *domain.RefreshSession) bool { return s.IdentityID == identityID }), nil
}

func (r *stubSessionRepo) deleteWhere(match func(*domain.RefreshSession) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, s := range r.byHash {
		if match(s) {
			delete(r.byHash, h)
			n++
		}
	}
	return n
}

func (r *stubSessionRepo) count(identityID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.byHash {
		if s.IdentityID == identityID {
			n++
		}
	}
	return n
}

// --- rotation ledger ---

type stubLedger struct {
	mu      sync.Mutex
	rotated map[string]domain.RotationRecord
}

func newStubLedger() *stubLedger {
	return &stubLedger{rotated: make(map[string]domain.RotationRecord)}
}

func (l *stubLedger) MarkRotated(_ context.Context, tokenHash string, rec domain.RotationRecord, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rotated[tokenHash] = rec
	return nil
}

func (l *stubLedger) Rotated(_ context.Context, tokenHash string) (domain.RotationRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.rotated[tokenHash]
	return rec, ok, nil
}

// --- notifier ---

type stubNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *stubNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *stubNotifier) last(t *testing.T) domain.Notification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("expected a queued notification")
	}
	return n.sent[len(n.sent)-1]
}

var tokenParam = regexp.MustCompile(`token=([0-9a-f]+)`)

// tokenFrom extracts the one-time token from a rendered mail link.
func tokenFrom(t *testing.T, n domain.Notification) string {
	t.Helper()
	m := tokenParam.FindStringSubmatch(n.HTML)
	if m == nil {
		t.Fatalf("no token link in notification %q", n.Subject)
	}
	return m[1]
}

// --- wiring ---

type testEnv struct {
	clock    *testClock
	ids      *stubIdentityRepo
	sessRepo *stubSessionRepo
	ledger   *stubLedger
	notifier *stubNotifier
	signer   *token.Signer
	creds    *CredentialStore
	sessions *SessionRegistry
	proofs   *ProofState
	auth     *AuthService
	users    *UserService
	gate     *gate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newTestClock()
	log := zerolog.Nop()

	signer, err := token.NewSigner(token.SignerConfig{
		Secret: []byte("service-test-secret"),
		Issuer: "authd",
		TTL:    15 * time.Minute,
		Now:    clock.Now,
	})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	env := &testEnv{
		clock:    clock,
		ids:      newStubIdentityRepo(),
		sessRepo: newStubSessionRepo(),
		ledger:   newStubLedger(),
		notifier: &stubNotifier{},
		signer:   signer,
	}
	opaque := token.NewOpaque()

	env.creds = NewCredentialStore(env.ids, token.NewBcryptHasher(bcrypt.MinCost))
	env.creds.now = clock.Now
	env.sessions = NewSessionRegistry(env.sessRepo, env.ledger, opaque, DefaultRefreshTTL, log)
	env.sessions.now = clock.Now
	env.proofs = NewProofState(env.ids, env.creds, opaque, DefaultVerificationTTL, DefaultResetTTL)
	env.proofs.now = clock.Now

	env.auth = NewAuthService(AuthDeps{
		Credentials: env.creds,
		Sessions:    env.sessions,
		Proofs:      env.proofs,
		Signer:      signer,
		Notifier:    env.notifier,
		Mail:        NewMailTemplates("https://app.example.com/"),
	}, log)
	env.users = NewUserService(env.ids, env.creds, env.sessions, log)
	env.users.now = clock.Now
	env.gate = NewGate(signer, env.creds, log).(*gate)
	return env
}

// verifiedUser registers and verifies an identity, returning it.
func (e *testEnv) verifiedUser(t *testing.T, name, email, password string) *domain.Identity {
	t.Helper()
	ctx := context.Background()
	identity, err := e.auth.Register(ctx, registerInput(name, email, password))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := e.auth.CompleteEmailVerification(ctx, tokenFrom(t, e.notifier.last(t))); err != nil {
		t.Fatalf("CompleteEmailVerification: %v", err)
	}
	return e.ids.get(identity.ID)
}

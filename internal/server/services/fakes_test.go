package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/queues"
	usersrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/uploads"
	"golang.org/x/crypto/bcrypt"
)

// --- in-memory credential store ---

type memRecord struct {
	user models.AuthUser
	hash string
}

// memRepo enforces uniqueness and single-use tokens under one mutex, the way
// the database does with constraints and row locks.
type memRepo struct {
	mu      sync.Mutex
	records map[string]*memRecord
	seq     int
	calls   int
	failErr error
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]*memRecord{}}
}

func (r *memRepo) enter() error {
	r.calls++
	return r.failErr
}

func (r *memRepo) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *memRepo) record(id string) *memRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

func (r *memRepo) projection(rec *memRecord) *models.AuthUser {
	u := rec.user
	u.PasswordHash = ""
	return &u
}

func (r *memRepo) find(match func(*memRecord) bool) (*models.AuthUser, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	for _, rec := range r.records {
		if match(rec) {
			return r.projection(rec), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memRepo) Create(ctx context.Context, u *models.AuthUser) (*models.AuthUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return nil, err
	}

	username := models.CanonicalUsername(u.Username)
	email := models.CanonicalEmail(u.Email)
	for _, rec := range r.records {
		if rec.user.Username == username || rec.user.Email == email {
			return nil, common.ErrDuplicateCredential
		}
	}

	r.seq++
	rec := &memRecord{user: *u, hash: u.PasswordHash}
	rec.user.ID = fmt.Sprintf("u-%d", r.seq)
	rec.user.Username = username
	rec.user.Email = email
	rec.user.CreatedAt = time.Now()
	r.records[rec.user.ID] = rec
	return r.projection(rec), nil
}

func (r *memRepo) FindByID(ctx context.Context, id string) (*models.AuthUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(rec *memRecord) bool { return rec.user.ID == id })
}

func (r *memRepo) FindByUsername(ctx context.Context, username string) (*models.AuthUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	username = models.CanonicalUsername(username)
	return r.find(func(rec *memRecord) bool { return rec.user.Username == username })
}

func (r *memRepo) FindByEmail(ctx context.Context, email string) (*models.AuthUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = models.CanonicalEmail(email)
	return r.find(func(rec *memRecord) bool { return rec.user.Email == email })
}

func (r *memRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.AuthUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	username = models.CanonicalUsername(username)
	email = models.CanonicalEmail(email)
	return r.find(func(rec *memRecord) bool { return rec.user.Username == username || rec.user.Email == email })
}

func (r *memRepo) FindByVerificationToken(ctx context.Context, token string) (*models.AuthUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(rec *memRecord) bool {
		return rec.user.EmailVerificationToken != nil && *rec.user.EmailVerificationToken == token
	})
}

func (r *memRepo) FindByResetToken(ctx context.Context, token string, requireUnexpired bool, now time.Time) (*models.AuthUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(rec *memRecord) bool { return resetTokenMatches(rec, token, requireUnexpired, now) })
}

func resetTokenMatches(rec *memRecord, token string, requireUnexpired bool, now time.Time) bool {
	if rec.user.PasswordResetToken == nil || *rec.user.PasswordResetToken != token {
		return false
	}
	if !requireUnexpired {
		return true
	}
	return rec.user.PasswordResetExpiresAt != nil && rec.user.PasswordResetExpiresAt.After(now)
}

func (r *memRepo) UpdateFields(ctx context.Context, id string, upd models.UserUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return err
	}
	rec, ok := r.records[id]
	if !ok {
		return common.ErrorNotFound
	}
	if upd.PasswordHash != nil {
		rec.hash = *upd.PasswordHash
	}
	if upd.EmailVerified != nil {
		rec.user.EmailVerified = *upd.EmailVerified
	}
	if upd.EmailVerificationToken != nil {
		rec.user.EmailVerificationToken = nullString(*upd.EmailVerificationToken)
	}
	if upd.PasswordResetToken != nil {
		rec.user.PasswordResetToken = nullString(*upd.PasswordResetToken)
	}
	if upd.PasswordResetExpiresAt != nil {
		rec.user.PasswordResetExpiresAt = nil
		if upd.PasswordResetExpiresAt.Valid {
			t := upd.PasswordResetExpiresAt.Time
			rec.user.PasswordResetExpiresAt = &t
		}
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r *memRepo) GetPasswordHash(ctx context.Context, id string, forUpdate bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return "", err
	}
	rec, ok := r.records[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	return rec.hash, nil
}

func (r *memRepo) ConsumeVerificationToken(ctx context.Context, token string) (*models.AuthUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return nil, err
	}
	for _, rec := range r.records {
		if rec.user.EmailVerificationToken != nil && *rec.user.EmailVerificationToken == token {
			rec.user.EmailVerified = true
			rec.user.EmailVerificationToken = nil
			return r.projection(rec), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memRepo) ConsumeResetToken(ctx context.Context, token, hash string, now time.Time) (*models.AuthUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(); err != nil {
		return nil, err
	}
	for _, rec := range r.records {
		if resetTokenMatches(rec, token, true, now) {
			rec.hash = hash
			rec.user.PasswordResetToken = nil
			rec.user.PasswordResetExpiresAt = nil
			return r.projection(rec), nil
		}
	}
	return nil, common.ErrorNotFound
}

var _ usersrepo.Repository = (*memRepo)(nil)

type memRepoManager struct{ repo *memRepo }

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return m.repo }

// --- collaborators ---

type sentMessage struct {
	exchange   string
	routingKey string
	email      queues.EmailMessage
	raw        []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, payload []byte, logLabel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	m := sentMessage{exchange: exchange, routingKey: routingKey, raw: payload}
	if exchange == queues.EmailExchange {
		_ = json.Unmarshal(payload, &m.email)
	}
	p.sent = append(p.sent, m)
	return nil
}

func (p *recordingPublisher) messages() []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentMessage(nil), p.sent...)
}

func (p *recordingPublisher) emails() []queues.EmailMessage {
	var out []queues.EmailMessage
	for _, m := range p.messages() {
		if m.exchange == queues.EmailExchange {
			out = append(out, m.email)
		}
	}
	return out
}

type fakeUploader struct {
	err       error
	noID      bool
	mu        sync.Mutex
	publicIDs []string
}

func (u *fakeUploader) Upload(ctx context.Context, publicID, file string) (*uploads.Result, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return nil, u.err
	}
	u.publicIDs = append(u.publicIDs, publicID)
	if u.noID {
		return &uploads.Result{}, nil
	}
	return &uploads.Result{PublicID: publicID, URL: "http://cdn/profiles/" + publicID}, nil
}

// --- fixture ---

type fixture struct {
	svc       *AuthService
	repo      *memRepo
	publisher *recordingPublisher
	uploader  *fakeUploader
	tokens    *auth.TokenService
	hasher    *auth.PasswordHasher
	mock      sqlmock.Sqlmock
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger, err := logging.New(logging.BackendSlog, "error", io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := auth.NewTokenService([]byte("session-key"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		ClientURL:                  "http://client",
		ResetTokenValidityDuration: time.Hour,
	}

	f := &fixture{
		repo:      newMemRepo(),
		publisher: &recordingPublisher{},
		uploader:  &fakeUploader{},
		tokens:    tokens,
		hasher:    auth.NewPasswordHasher(bcrypt.MinCost),
		mock:      mock,
		now:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewAuthService(db, &memRepoManager{repo: f.repo}, f.publisher, f.uploader, f.tokens, f.hasher, logger, cfg)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func validSignup() SignupInput {
	return SignupInput{
		Username:       "abcd",
		Email:          "a@b.com",
		Password:       "pass1",
		Country:        "NG",
		ProfilePicture: "data:image/png;base64,aGVsbG8=",
	}
}

// seed registers a user through Signup and clears the recorded messages.
func (f *fixture) seed(t *testing.T, in SignupInput) *models.AuthUser {
	t.Helper()
	u, _, err := f.svc.Signup(context.Background(), in)
	if err != nil {
		t.Fatalf("seed signup: %v", err)
	}
	f.publisher.mu.Lock()
	f.publisher.sent = nil
	f.publisher.mu.Unlock()
	return u
}

var errBoom = errors.New("boom")

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL = 14 * 24 * time.Hour
	tokenBytes        = 32
	spectatorPrefix   = "spectator_"
)

var (
	ErrInvalidName        = errors.New("invalid storyteller name")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrNameTaken          = errors.New("storyteller name already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Letters, digits, space and _.- only; '|' is reserved by match keys.
var namePattern = regexp.MustCompile(`^[\p{L}\p{N}_][\p{L}\p{N}_ .-]{1,31}$`)

// Manager keeps storyteller accounts and sessions in memory.
type Manager struct {
	mu sync.Mutex

	nextAccountID uint64
	sessionTTL    time.Duration
	sessions      map[string]sessionRecord
	accounts      map[uint64]accountRecord
	byName        map[string]uint64 // folded name -> account
}

type sessionRecord struct {
	AccountID uint64
	ExpiresAt time.Time
}

type accountRecord struct {
	AccountID    uint64
	DisplayName  string
	PasswordHash []byte
	Spectator    bool
	LastSeen     time.Time
}

func NewManager(sessionTTL time.Duration) *Manager {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Manager{
		nextAccountID: 1000,
		sessionTTL:    sessionTTL,
		sessions:      make(map[string]sessionRecord),
		accounts:      make(map[uint64]accountRecord),
		byName:        make(map[string]uint64),
	}
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validateName(name string) error {
	if !namePattern.MatchString(strings.TrimSpace(name)) {
		return ErrInvalidName
	}
	return nil
}

// bcrypt ignores input past 72 bytes.
func validatePassword(password string) error {
	if len(password) < 6 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

func hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (m *Manager) issueSessionLocked(accountID uint64, now time.Time) string {
	token := mustToken()
	m.sessions[token] = sessionRecord{AccountID: accountID, ExpiresAt: now.Add(m.sessionTTL)}
	return token
}

// resolveSessionLocked slides the expiry forward on every successful lookup.
func (m *Manager) resolveSessionLocked(token string, now time.Time) (accountRecord, bool) {
	rec, exists := m.sessions[token]
	if token == "" || !exists {
		return accountRecord{}, false
	}
	if !now.Before(rec.ExpiresAt) {
		delete(m.sessions, token)
		return accountRecord{}, false
	}
	rec.ExpiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = rec

	acct := m.accounts[rec.AccountID]
	acct.LastSeen = now
	m.accounts[rec.AccountID] = acct
	return acct, true
}

func (m *Manager) Register(name, password string) (uint64, string, error) {
	if err := validateName(name); err != nil {
		return 0, "", err
	}
	if err := validatePassword(password); err != nil {
		return 0, "", err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := foldName(name)
	if _, taken := m.byName[key]; taken {
		return 0, "", ErrNameTaken
	}
	m.nextAccountID++
	id := m.nextAccountID
	now := time.Now()
	m.accounts[id] = accountRecord{
		AccountID:    id,
		DisplayName:  strings.TrimSpace(name),
		PasswordHash: hash,
		LastSeen:     now,
	}
	m.byName[key] = id
	return id, m.issueSessionLocked(id, now), nil
}

func (m *Manager) Login(name, password string) (uint64, string, error) {
	key := foldName(name)
	if key == "" || password == "" {
		return 0, "", ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byName[key]
	if !ok {
		return 0, "", ErrInvalidCredentials
	}
	acct := m.accounts[id]
	if acct.Spectator || bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)) != nil {
		return 0, "", ErrInvalidCredentials
	}
	now := time.Now()
	acct.LastSeen = now
	m.accounts[id] = acct
	return id, m.issueSessionLocked(id, now), nil
}

func (m *Manager) ResolveSession(token string) (uint64, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.resolveSessionLocked(strings.TrimSpace(token), time.Now())
	if !ok || acct.Spectator {
		return 0, "", false
	}
	return acct.AccountID, acct.DisplayName, true
}

func (m *Manager) Logout(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) ResolveOrCreateSpectator(token string) (uint64, string, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	token = strings.TrimSpace(token)
	if acct, ok := m.resolveSessionLocked(token, now); ok {
		return acct.AccountID, acct.DisplayName, token, true
	}
	m.nextAccountID++
	id := m.nextAccountID
	name := spectatorName()
	m.accounts[id] = accountRecord{
		AccountID:   id,
		DisplayName: name,
		Spectator:   true,
		LastSeen:    now,
	}
	return id, name, m.issueSessionLocked(id, now), false
}

func (m *Manager) Close() error { return nil }

func spectatorName() string {
	return spectatorPrefix + mustToken()[:10]
}

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

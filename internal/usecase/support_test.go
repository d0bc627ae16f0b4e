package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/core/port"
	"github.com/yavuz-tech/helvino/internal/repository"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	events   []domain.SessionEvent
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]domain.Session)}
}

func (f *fakeSessionRepo) Create(_ context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.sessions[session.ID]; exists {
		return fmt.Errorf("duplicate session %s", session.ID)
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionRepo) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := session
	return &copied, nil
}

func (f *fakeSessionRepo) ListActiveByAccount(_ context.Context, accountID string) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var active []domain.Session
	for _, session := range f.sessions {
		if session.AccountID == accountID && session.RevokedAt == nil {
			active = append(active, session)
		}
	}
	return active, nil
}

func (f *fakeSessionRepo) Touch(_ context.Context, sessionID string, at time.Time, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Touch(at, ip)
	f.sessions[sessionID] = session
	return nil
}

func (f *fakeSessionRepo) Revoke(_ context.Context, sessionID, reason string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Revoke(at, reason)
	f.sessions[sessionID] = session
	return nil
}

func (f *fakeSessionRepo) RevokeAllForAccount(_ context.Context, accountID, reason string, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, session := range f.sessions {
		if session.AccountID != accountID || session.RevokedAt != nil {
			continue
		}
		session.Revoke(at, reason)
		f.sessions[id] = session
		count++
	}
	return count, nil
}

func (f *fakeSessionRepo) SetTrust(_ context.Context, sessionID string, level domain.TrustLevel, elevatedUntil *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.TrustLevel = level
	session.ElevatedUntil = elevatedUntil
	f.sessions[sessionID] = session
	return nil
}

func (f *fakeSessionRepo) StoreEvent(_ context.Context, event domain.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSessionRepo) activeCount(accountID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, session := range f.sessions {
		if session.AccountID == accountID && session.RevokedAt == nil {
			count++
		}
	}
	return count
}

type fakeDirectory struct {
	emails map[string]string
}

func (f *fakeDirectory) EmailForAccount(_ context.Context, accountID string) (string, error) {
	if email, ok := f.emails[accountID]; ok {
		return email, nil
	}
	return "", repository.ErrNotFound
}

type fakeNotifier struct {
	mu              sync.Mutex
	newDevice       []port.NewDeviceLoginNotification
	locationChange  []port.LocationChangeNotification
	sessionRevoked  []port.SessionRevokedNotification
	failNextRevoked error
}

func (f *fakeNotifier) SendNewDeviceLogin(_ context.Context, payload port.NewDeviceLoginNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newDevice = append(f.newDevice, payload)
	return nil
}

func (f *fakeNotifier) SendLocationChangeAlert(_ context.Context, payload port.LocationChangeNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locationChange = append(f.locationChange, payload)
	return nil
}

func (f *fakeNotifier) SendSessionRevoked(_ context.Context, payload port.SessionRevokedNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextRevoked != nil {
		err := f.failNextRevoked
		f.failNextRevoked = nil
		return err
	}
	f.sessionRevoked = append(f.sessionRevoked, payload)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	created  []domain.SessionCreatedEvent
	revoked  []domain.SessionRevokedEvent
	anomaly  []domain.AnomalyDetectedEvent
	elevated []domain.SessionElevatedEvent
}

func (f *fakePublisher) PublishSessionCreated(_ context.Context, event domain.SessionCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, event)
	return nil
}

func (f *fakePublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, event)
	return nil
}

func (f *fakePublisher) PublishAnomalyDetected(_ context.Context, event domain.AnomalyDetectedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anomaly = append(f.anomaly, event)
	return nil
}

func (f *fakePublisher) PublishSessionElevated(_ context.Context, event domain.SessionElevatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elevated = append(f.elevated, event)
	return nil
}

type fakeElevationCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newFakeElevationCache() *fakeElevationCache {
	return &fakeElevationCache{entries: make(map[string]time.Time)}
}

func (f *fakeElevationCache) GetElevatedUntil(_ context.Context, sessionID string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.entries[sessionID]
	if !ok {
		return time.Time{}, repository.ErrNotFound
	}
	return until, nil
}

func (f *fakeElevationCache) SetElevatedUntil(_ context.Context, sessionID string, until time.Time, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[sessionID] = until
	return nil
}

func (f *fakeElevationCache) DeleteElevation(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, sessionID)
	return nil
}

type fakeDeviceHistory struct {
	mu      sync.Mutex
	records map[string]*domain.DeviceRecord
	seen    []string
}

func newFakeDeviceHistory() *fakeDeviceHistory {
	return &fakeDeviceHistory{records: make(map[string]*domain.DeviceRecord)}
}

func historyKey(accountID, fingerprint string) string {
	return accountID + "|" + fingerprint
}

func (f *fakeDeviceHistory) Lookup(_ context.Context, accountID, fingerprint string) (*domain.DeviceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[historyKey(accountID, fingerprint)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *record
	copied.KnownCountries = append([]string(nil), record.KnownCountries...)
	return &copied, nil
}

func (f *fakeDeviceHistory) RecordSeen(_ context.Context, accountID, fingerprint, country string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := historyKey(accountID, fingerprint)
	f.seen = append(f.seen, key)
	record, ok := f.records[key]
	if !ok {
		record = &domain.DeviceRecord{
			AccountID:   accountID,
			Fingerprint: fingerprint,
			FirstSeenAt: at,
		}
		f.records[key] = record
	}
	record.LastSeenAt = at
	if country == "" {
		return nil
	}
	countries := []string{country}
	for _, known := range record.KnownCountries {
		if known != country {
			countries = append(countries, known)
		}
	}
	record.KnownCountries = countries
	return nil
}

type fakeInspector struct {
	kind domain.AnomalyKind
	err  error
	seen []string
}

func (f *fakeInspector) InspectLogin(_ context.Context, session *domain.Session) (domain.AnomalyKind, error) {
	f.seen = append(f.seen, session.ID)
	return f.kind, f.err
}

type fakeChallengeRepo struct {
	mu         sync.Mutex
	challenges map[string]domain.StepUpChallenge
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{challenges: make(map[string]domain.StepUpChallenge)}
}

func (f *fakeChallengeRepo) Create(_ context.Context, challenge domain.StepUpChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenges[challenge.ID] = challenge
	return nil
}

func (f *fakeChallengeRepo) GetByID(_ context.Context, challengeID string) (*domain.StepUpChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	challenge, ok := f.challenges[challengeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := challenge
	return &copied, nil
}

func (f *fakeChallengeRepo) Update(_ context.Context, challenge domain.StepUpChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.challenges[challenge.ID]; !ok {
		return repository.ErrNotFound
	}
	f.challenges[challenge.ID] = challenge
	return nil
}

func stringPtr(value string) *string {
	return &value
}

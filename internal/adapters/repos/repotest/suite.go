package repotest

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/stretchr/testify/suite"
)

const (
	DefaultMaxAge = 30 * 24 * time.Hour

	concurrentRegistrations = 16
)

// RepositorySuite checks the observable behaviour shared by every backend.
type RepositorySuite struct {
	suite.Suite

	factory Factory
	fixture *Fixture

	ctx   context.Context
	clock *clock.Manual
	repo  ports.DeviceRepository
}

// Run executes the whole suite against the backend produced by factory.
func Run(t *testing.T, factory Factory, fixture *Fixture) {
	t.Helper()

	suite.Run(t, &RepositorySuite{factory: factory, fixture: fixture})
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewManual(Epoch)
	s.repo = s.factory(s.T(), s.clock, model.NewExpirationPolicy(DefaultMaxAge))

	s.Require().NoError(s.fixture.Reset(s.ctx))
}

func (s *RepositorySuite) withPolicy(maxAge time.Duration) ports.DeviceRepository {
	return s.factory(s.T(), s.clock, model.NewExpirationPolicy(maxAge))
}

func (s *RepositorySuite) seed() []*model.Registration {
	seeded, err := s.fixture.ResetAndSeed(s.ctx, s.repo)
	s.Require().NoError(err)
	s.Require().Len(seeded, len(Seed))

	return seeded
}

func (s *RepositorySuite) ids(regs []*model.Registration) []model.RegistrationID {
	ids := make([]model.RegistrationID, 0, len(regs))
	for _, reg := range regs {
		ids = append(ids, reg.ID)
	}

	return ids
}

func (s *RepositorySuite) TestRegisterUseAndRemoveSingleKey() {
	reg, err := s.repo.RegisterDevice(s.ctx, model.NewRegistration("alice", "K1"))
	s.Require().NoError(err)
	s.Require().Equal(model.RegistrationID(1), reg.ID)
	s.Require().Equal("alice", reg.Owner)
	s.Require().Equal("K1", reg.PublicKeyMaterial)
	s.Require().True(reg.CreatedAt.Equal(Epoch))

	devices, err := s.repo.GetRegisteredDevices(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(devices, 1)
	s.Require().True(reg.EqualContent(devices[0]))

	activated, err := s.repo.IsActivated(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().True(activated)

	s.Require().NoError(s.repo.RemoveDevice(s.ctx, reg.ID))

	devices, err = s.repo.GetRegisteredDevices(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(devices)
	s.Require().Empty(devices)

	activated, err = s.repo.IsActivated(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().False(activated)
}

func (s *RepositorySuite) TestRegisteredContentRoundTrips() {
	input := model.NewRegistration("carol", "K-webauthn").
		WithVariant(model.VariantWebAuthn).
		WithLabel("laptop")

	reg, err := s.repo.RegisterDevice(s.ctx, input)
	s.Require().NoError(err)
	s.Require().False(reg.ID.IsZero())
	s.Require().True(input.ID.IsZero(), "input must not be mutated")

	fetched, err := s.repo.GetRegisteredDevice(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Require().True(reg.EqualContent(fetched), "registered %+v fetched %+v", reg, fetched)
	s.Require().Equal(model.VariantWebAuthn, fetched.Variant)
	s.Require().Equal("laptop", fetched.Label)
}

func (s *RepositorySuite) TestExtensionFieldsArePreserved() {
	input := model.NewRegistration("carol", "K-ext")
	input.Extensions = map[string]json.RawMessage{
		"counter":    json.RawMessage(`7`),
		"aaguid":     json.RawMessage(`"cb69481e"`),
		"transports": json.RawMessage(`["usb","nfc"]`),
	}

	reg, err := s.repo.RegisterDevice(s.ctx, input)
	s.Require().NoError(err)

	fetched, err := s.repo.GetRegisteredDevice(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Require().Len(fetched.Extensions, 3)

	for key, value := range input.Extensions {
		s.Require().JSONEq(string(value), string(fetched.Extensions[key]), key)
	}
}

func (s *RepositorySuite) TestSeededListing() {
	seeded := s.seed()

	all, err := s.repo.ListRegisteredDevices(s.ctx)
	s.Require().NoError(err)
	s.Require().ElementsMatch(s.ids(seeded), s.ids(all))

	alice, err := s.repo.GetRegisteredDevices(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().ElementsMatch(s.ids(seeded[:2]), s.ids(alice))
}

func (s *RepositorySuite) TestOwnersAreIsolated() {
	seeded := s.seed()

	bob, err := s.repo.GetRegisteredDevices(s.ctx, "bob")
	s.Require().NoError(err)
	s.Require().Len(bob, 1)
	s.Require().Equal(seeded[2].ID, bob[0].ID)

	s.Require().NoError(s.repo.RemoveAll(s.ctx, "alice"))

	bob, err = s.repo.GetRegisteredDevices(s.ctx, "bob")
	s.Require().NoError(err)
	s.Require().Len(bob, 1)

	activated, err := s.repo.IsActivated(s.ctx, "bob")
	s.Require().NoError(err)
	s.Require().True(activated)
}

func (s *RepositorySuite) TestRemoveDeviceIsIdempotent() {
	seeded := s.seed()

	s.Require().NoError(s.repo.RemoveDevice(s.ctx, seeded[0].ID))
	s.Require().NoError(s.repo.RemoveDevice(s.ctx, seeded[0].ID))
	s.Require().NoError(s.repo.RemoveDevice(s.ctx, 987654))

	alice, err := s.repo.GetRegisteredDevices(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Equal([]model.RegistrationID{seeded[1].ID}, s.ids(alice))
}

func (s *RepositorySuite) TestRemovingEmptyTargetsIsNoOp() {
	seeded := s.seed()

	s.Require().NoError(s.repo.RemoveDevice(s.ctx, 0))
	s.Require().NoError(s.repo.RemoveAll(s.ctx, ""))

	all, err := s.repo.ListRegisteredDevices(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(s.ids(seeded), s.ids(all))
}

func (s *RepositorySuite) TestExpiredRegistrationsAreHidden() {
	maxAge := 24 * time.Hour
	repo := s.withPolicy(maxAge)

	reg, err := repo.RegisterDevice(s.ctx, model.NewRegistration("alice", "K1"))
	s.Require().NoError(err)

	s.clock.Set(Epoch.Add(maxAge / 2))

	devices, err := repo.GetRegisteredDevices(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(devices, 1)

	activated, err := repo.IsActivated(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().True(activated)

	s.clock.Set(Epoch.Add(2 * maxAge))

	devices, err = repo.GetRegisteredDevices(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(devices)
	s.Require().Empty(devices)

	all, err := repo.ListRegisteredDevices(s.ctx)
	s.Require().NoError(err)
	s.Require().Empty(all)

	_, err = repo.GetRegisteredDevice(s.ctx, reg.ID)
	s.Require().ErrorIs(err, model.ErrRegistrationNotFound)

	activated, err = repo.IsActivated(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().False(activated)

	s.Require().NoError(repo.RemoveDevice(s.ctx, reg.ID))

	s.clock.Set(Epoch)

	devices, err = repo.GetRegisteredDevices(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Empty(devices, "expired registration must be physically removed")
}

func (s *RepositorySuite) TestIsActivatedFollowsRegisteredDevices() {
	maxAge := time.Hour
	repo := s.withPolicy(maxAge)

	_, err := repo.RegisterDevice(s.ctx, model.NewRegistration("alice", "K1"))
	s.Require().NoError(err)

	s.clock.Advance(30 * time.Minute)

	_, err = repo.RegisterDevice(s.ctx, model.NewRegistration("alice", "K2"))
	s.Require().NoError(err)

	for _, offset := range []time.Duration{0, 45 * time.Minute, 61 * time.Minute, 89 * time.Minute, 91 * time.Minute, 3 * time.Hour} {
		s.clock.Set(Epoch.Add(offset))

		devices, err := repo.GetRegisteredDevices(s.ctx, "alice")
		s.Require().NoError(err)

		activated, err := repo.IsActivated(s.ctx, "alice")
		s.Require().NoError(err)
		s.Require().Equal(len(devices) > 0, activated, "offset %s", offset)
	}
}

func (s *RepositorySuite) TestRemoveAllClearsOwner() {
	s.seed()

	s.Require().NoError(s.repo.RemoveAll(s.ctx, "alice"))

	alice, err := s.repo.GetRegisteredDevices(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(alice)
	s.Require().Empty(alice)

	activated, err := s.repo.IsActivated(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().False(activated)

	s.Require().NoError(s.repo.RemoveAll(s.ctx, "nobody"))
}

func (s *RepositorySuite) TestUnknownIDIsNotFound() {
	s.seed()

	_, err := s.repo.GetRegisteredDevice(s.ctx, 987654)
	s.Require().ErrorIs(err, model.ErrRegistrationNotFound)
	s.Require().NotErrorIs(err, model.ErrStoreUnavailable)
}

func (s *RepositorySuite) TestEmptyResultsAreNotNil() {
	devices, err := s.repo.GetRegisteredDevices(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Require().NotNil(devices)
	s.Require().Empty(devices)

	all, err := s.repo.ListRegisteredDevices(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(all)
	s.Require().Empty(all)

	activated, err := s.repo.IsActivated(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Require().False(activated)
}

func (s *RepositorySuite) TestInvalidRegistrationsAreRejected() {
	withID := model.NewRegistration("alice", "K1")
	withID.ID = 42

	cases := map[string]*model.Registration{
		"nil registration":   nil,
		"missing owner":      model.NewRegistration("", "K1"),
		"blank owner":        model.NewRegistration("   ", "K1"),
		"missing key":        model.NewRegistration("alice", ""),
		"preassigned id":     withID,
		"unknown credential": model.NewRegistration("alice", "K1").WithVariant("smartcard"),
	}

	for name, reg := range cases {
		_, err := s.repo.RegisterDevice(s.ctx, reg)
		s.Require().ErrorIs(err, model.ErrInvalidRegistration, name)
	}

	all, err := s.repo.ListRegisteredDevices(s.ctx)
	s.Require().NoError(err)
	s.Require().Empty(all)
}

func (s *RepositorySuite) TestIDsAreNeverReused() {
	first, err := s.repo.RegisterDevice(s.ctx, model.NewRegistration("alice", "K1"))
	s.Require().NoError(err)

	s.Require().NoError(s.repo.RemoveDevice(s.ctx, first.ID))

	second, err := s.repo.RegisterDevice(s.ctx, model.NewRegistration("alice", "K1"))
	s.Require().NoError(err)
	s.Require().NotEqual(first.ID, second.ID)
	s.Require().False(first.SameEntity(second))

	s.Require().NoError(s.repo.Clear(s.ctx))

	third, err := s.repo.RegisterDevice(s.ctx, model.NewRegistration("alice", "K1"))
	s.Require().NoError(err)
	s.Require().NotEqual(first.ID, third.ID)
	s.Require().NotEqual(second.ID, third.ID)
}

func (s *RepositorySuite) TestPurgeExpiredRemovesOnlyExpired() {
	maxAge := 24 * time.Hour
	repo := s.withPolicy(maxAge)

	for _, key := range []string{"K1", "K2"} {
		_, err := repo.RegisterDevice(s.ctx, model.NewRegistration("alice", key))
		s.Require().NoError(err)
	}

	s.clock.Set(Epoch.Add(maxAge + time.Hour))

	fresh, err := repo.RegisterDevice(s.ctx, model.NewRegistration("bob", "K3"))
	s.Require().NoError(err)

	removed, err := repo.PurgeExpired(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(2, removed)

	removed, err = repo.PurgeExpired(s.ctx)
	s.Require().NoError(err)
	s.Require().Zero(removed)

	s.clock.Set(Epoch)

	all, err := repo.ListRegisteredDevices(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal([]model.RegistrationID{fresh.ID}, s.ids(all))
}

func (s *RepositorySuite) TestClearRemovesEveryOwner() {
	s.seed()

	s.Require().NoError(s.repo.Clear(s.ctx))

	all, err := s.repo.ListRegisteredDevices(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(all)
	s.Require().Empty(all)

	for _, owner := range []string{"alice", "bob"} {
		activated, err := s.repo.IsActivated(s.ctx, owner)
		s.Require().NoError(err)
		s.Require().False(activated, owner)
	}
}

func (s *RepositorySuite) TestConcurrentRegistrationsGetDistinctIDs() {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  = make(map[model.RegistrationID]struct{}, concurrentRegistrations)
		errs = make([]error, 0)
	)

	for i := range concurrentRegistrations {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			reg, err := s.repo.RegisterDevice(s.ctx, model.NewRegistration("dave", "dave-key-"+strconv.Itoa(n)))

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, err)

				return
			}

			ids[reg.ID] = struct{}{}
		}(i)
	}

	wg.Wait()

	s.Require().Empty(errs)
	s.Require().Len(ids, concurrentRegistrations)

	devices, err := s.repo.GetRegisteredDevices(s.ctx, "dave")
	s.Require().NoError(err)
	s.Require().Len(devices, concurrentRegistrations)
}

func (s *RepositorySuite) TestZeroMaxAgeNeverExpires() {
	repo := s.withPolicy(0)

	reg, err := repo.RegisterDevice(s.ctx, model.NewRegistration("alice", "K1"))
	s.Require().NoError(err)

	s.clock.Set(Epoch.AddDate(100, 0, 0))

	fetched, err := repo.GetRegisteredDevice(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Require().Equal(reg.ID, fetched.ID)

	removed, err := repo.PurgeExpired(s.ctx)
	s.Require().NoError(err)
	s.Require().Zero(removed)
}

func (s *RepositorySuite) TestCreationTimeIsKept() {
	createdAt := Epoch.Add(-time.Hour)

	input := model.NewRegistration("erin", "K1")
	input.CreatedAt = createdAt

	reg, err := s.repo.RegisterDevice(s.ctx, input)
	s.Require().NoError(err)
	s.Require().True(reg.CreatedAt.Equal(createdAt))

	fetched, err := s.repo.GetRegisteredDevice(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Require().True(fetched.CreatedAt.Equal(createdAt))
}

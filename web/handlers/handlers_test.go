package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/tranquilae/Tranquilae-sub003/audit"
	"github.com/tranquilae/Tranquilae-sub003/crawler"
	"github.com/tranquilae/Tranquilae-sub003/models"
	"github.com/tranquilae/Tranquilae-sub003/oauth"
	"github.com/tranquilae/Tranquilae-sub003/web"
	"github.com/tranquilae/Tranquilae-sub003/web/auth"
)

const (
	testDashboardURL = "https://app.example.com/dashboard"
	testIngestToken  = "ingest-token"
	testWebhookKey   = "whsec_test"
)

// memSink collects audit events for assertions.
type memSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *memSink) Record(_ context.Context, event audit.Event, _ audit.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
}

func (s *memSink) all() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]audit.Event(nil), s.events...)
}

// memStateRepo is an in-memory models.OAuthStateRepository.
type memStateRepo struct {
	mu     sync.Mutex
	states map[string]models.OAuthState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[string]models.OAuthState)}
}

func (r *memStateRepo) Save(_ context.Context, state *models.OAuthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.State] = *state

	return nil
}

func (r *memStateRepo) GetAndDelete(_ context.Context, state string) (*models.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.states[state]
	if !ok {
		return nil, models.ErrNotFound
	}

	delete(r.states, state)

	return &record, nil
}

func (r *memStateRepo) Delete(_ context.Context, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)

	return nil
}

func (r *memStateRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64

	for k, v := range r.states {
		if now.After(v.ExpiresAt) {
			delete(r.states, k)
			n++
		}
	}

	return n, nil
}

func (r *memStateRepo) has(state string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.states[state]

	return ok
}

// stubIntegrations is a canned IntegrationService.
type stubIntegrations struct {
	beginErr      error
	completeErr   error
	settingsErr   error
	disconnectErr error

	completed  []string
	updated    map[string]any
	disconnect []models.ServiceName
}

func (s *stubIntegrations) BeginConnect(_ context.Context, _ string, service models.ServiceName, redirectURI string) (*web.ConnectInitiation, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}

	return &web.ConnectInitiation{
		AuthURL:     "https://provider.example.com/authorize?redirect_uri=" + redirectURI,
		State:       "state-token",
		ServiceName: service,
	}, nil
}

func (s *stubIntegrations) CompleteConnect(_ context.Context, record *models.OAuthState, code string) error {
	if s.completeErr != nil {
		return s.completeErr
	}

	s.completed = append(s.completed, record.State+":"+code)

	return nil
}

func (s *stubIntegrations) Overview(context.Context, string) (*web.IntegrationOverview, error) {
	return &web.IntegrationOverview{
		Integrations:      []models.HealthIntegration{{ServiceName: models.ServiceFitbit}},
		AvailableServices: []models.ServiceName{models.ServiceGoogleFit},
		Stats:             web.IntegrationStats{Total: 1, Connected: 1},
	}, nil
}

func (s *stubIntegrations) UpdateSettings(_ context.Context, userID string, service models.ServiceName, settings map[string]any) (*models.HealthIntegration, error) {
	if s.settingsErr != nil {
		return nil, s.settingsErr
	}

	s.updated = settings

	return &models.HealthIntegration{ID: "int-1", UserID: userID, ServiceName: service, Settings: settings}, nil
}

func (s *stubIntegrations) Disconnect(_ context.Context, _ string, service models.ServiceName) error {
	if s.disconnectErr != nil {
		return s.disconnectErr
	}

	s.disconnect = append(s.disconnect, service)

	return nil
}

// stubIngest records the crawl request it was asked to run.
type stubIngest struct {
	err    error
	seeds  []string
	opts   crawler.Options
	result crawler.IngestResult
}

func (s *stubIngest) Run(_ context.Context, seeds []string, opts crawler.Options) (*crawler.IngestResult, error) {
	if s.err != nil {
		return nil, s.err
	}

	s.seeds = seeds
	s.opts = opts

	return &s.result, nil
}

// stubSubscriptions is a canned subscription.ServiceInterface.
type stubSubscriptions struct {
	processErr error
	syncErr    error
	processed  []*stripe.Event
	synced     []string
}

func (s *stubSubscriptions) ProcessWebhookEvent(_ context.Context, event *stripe.Event) error {
	if s.processErr != nil {
		return s.processErr
	}

	s.processed = append(s.processed, event)

	return nil
}

func (s *stubSubscriptions) SyncFromStripe(_ context.Context, userID string) error {
	if s.syncErr != nil {
		return s.syncErr
	}

	s.synced = append(s.synced, userID)

	return nil
}

func (s *stubSubscriptions) CreateBillingPortalSession(context.Context, string, string) (string, error) {
	return "https://billing.stripe.com/session", nil
}

// stubVerifier verifies webhooks without cryptography.
type stubVerifier struct {
	err   error
	event stripe.Event
}

func (s *stubVerifier) VerifyWebhook([]byte, string, string) (*stripe.Event, error) {
	if s.err != nil {
		return nil, s.err
	}

	return &s.event, nil
}

// memUserRepo is an in-memory models.UserRepository.
type memUserRepo struct {
	mu            sync.Mutex
	users         map[string]models.User
	statusUpdates map[string]string
	emailUpdates  map[string]string
}

func newMemUserRepo(users ...models.User) *memUserRepo {
	r := &memUserRepo{
		users:         make(map[string]models.User),
		statusUpdates: make(map[string]string),
		emailUpdates:  make(map[string]string),
	}
	for _, u := range users {
		r.users[u.ID] = u
	}

	return r
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}

	return u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}

	return models.User{}, models.ErrNotFound
}

func (r *memUserRepo) GetByStripeCustomerID(_ context.Context, customerID string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.StripeCustomerID == customerID {
			return u, nil
		}
	}

	return models.User{}, models.ErrNotFound
}

func (r *memUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.ID] = *user

	return nil
}

func (r *memUserRepo) UpdateEmail(_ context.Context, id, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return models.ErrNotFound
	}

	u.Email = email
	r.users[id] = u
	r.emailUpdates[id] = email

	return nil
}

func (r *memUserRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return models.ErrNotFound
	}

	u.Status = status
	r.users[id] = u
	r.statusUpdates[id] = status

	return nil
}

func (r *memUserRepo) UpdateSubscription(_ context.Context, id, customerID, planID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return models.ErrNotFound
	}

	u.StripeCustomerID = customerID
	u.SubscriptionPlanID = planID
	u.SubscriptionStatus = status
	r.users[id] = u

	return nil
}

// testEnv bundles the handler group with its observable stubs.
type testEnv struct {
	group         *HandlerGroup
	sink          *memSink
	states        *memStateRepo
	stateManager  *oauth.StateManager
	integrations  *stubIntegrations
	ingest        *stubIngest
	subscriptions *stubSubscriptions
	verifier      *stubVerifier
	users         *memUserRepo
}

func newTestEnv(users ...models.User) *testEnv {
	env := &testEnv{
		sink:          &memSink{},
		states:        newMemStateRepo(),
		integrations:  &stubIntegrations{},
		ingest:        &stubIngest{result: crawler.IngestResult{Pages: 2, Items: 3, Saved: 3}},
		subscriptions: &stubSubscriptions{},
		verifier:      &stubVerifier{event: stripe.Event{ID: "evt_1", Type: "customer.subscription.updated"}},
		users:         newMemUserRepo(users...),
	}

	env.stateManager = oauth.NewStateManager(env.states)

	env.group = NewHandlerGroup(Dependencies{
		Logger:              log.New(io.Discard, "", 0),
		Integrations:        env.integrations,
		States:              env.stateManager,
		UserRepo:            env.users,
		Ingest:              env.ingest,
		Audit:               env.sink,
		Subscriptions:       env.subscriptions,
		Stripe:              env.verifier,
		DashboardURL:        testDashboardURL,
		AdminIngestToken:    testIngestToken,
		StripeWebhookSecret: testWebhookKey,
	})

	return env
}

func asUser(r *http.Request, user models.User) *http.Request {
	ctx := context.WithValue(r.Context(), auth.UserIDKey, user.ID)
	ctx = context.WithValue(ctx, auth.UserKey, user)

	return r.WithContext(ctx)
}

func doRequest(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, r)

	return rec
}

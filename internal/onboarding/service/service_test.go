package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	accountdomain "github.com/npclabs/storefront/internal/account/domain"
	accountrepo "github.com/npclabs/storefront/internal/account/repository"
	auditdomain "github.com/npclabs/storefront/internal/audit/domain"
	auditservice "github.com/npclabs/storefront/internal/audit/service"
	"github.com/npclabs/storefront/internal/config"
	"github.com/npclabs/storefront/internal/identity"
	"github.com/npclabs/storefront/internal/onboarding/domain"
	orderdomain "github.com/npclabs/storefront/internal/order/domain"
	orderrepo "github.com/npclabs/storefront/internal/order/repository"
	orderservice "github.com/npclabs/storefront/internal/order/service"
	partnerdomain "github.com/npclabs/storefront/internal/partner/domain"
	partnerrepo "github.com/npclabs/storefront/internal/partner/repository"
	productdomain "github.com/npclabs/storefront/internal/product/domain"
	productrepo "github.com/npclabs/storefront/internal/product/repository"
	"github.com/npclabs/storefront/internal/security/vault"
	subscriptiondomain "github.com/npclabs/storefront/internal/subscription/domain"
	subscriptionrepo "github.com/npclabs/storefront/internal/subscription/repository"
	"github.com/npclabs/storefront/pkg/db"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now(context.Context) time.Time { return c.now }

// fakeDirectory is an in-memory partner auth admin API.
type fakeDirectory struct {
	users     map[string]*partnerdomain.DirectoryUser // by email
	passwords map[string]string                       // by user id
	created   []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:     map[string]*partnerdomain.DirectoryUser{},
		passwords: map[string]string{},
	}
}

func (d *fakeDirectory) CreateUser(_ context.Context, email, password string) (*partnerdomain.DirectoryUser, error) {
	if _, ok := d.users[email]; ok {
		return nil, partnerdomain.ErrEmailRegistered
	}
	u := &partnerdomain.DirectoryUser{ID: uuid.NewString(), Email: email}
	d.users[email] = u
	d.passwords[u.ID] = password
	d.created = append(d.created, email)
	return u, nil
}

func (d *fakeDirectory) FindUserByEmail(_ context.Context, email string) (*partnerdomain.DirectoryUser, error) {
	u, ok := d.users[email]
	if !ok {
		return nil, partnerdomain.ErrUserNotFound
	}
	return u, nil
}

func (d *fakeDirectory) UpdatePassword(_ context.Context, userID, password string) error {
	d.passwords[userID] = password
	return nil
}

// flakyAccountRepo wraps the real repository and fails Update with a fixed
// error, for exercising mid-bookkeeping failures.
type flakyAccountRepo struct {
	accountdomain.Repository
	updateErr error
}

func (r *flakyAccountRepo) Update(ctx context.Context, gdb *gorm.DB, acct *accountdomain.Account) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.Repository.Update(ctx, gdb, acct)
}

type env struct {
	svc     domain.Service
	sdb     *gorm.DB
	pdb     db.Partner
	dir     *fakeDirectory
	clk     *fakeClock
	vault   vault.Provider
	caller  identity.Caller
	product *productdomain.Product
	pkg     *productdomain.Package
}

func newEnv(t *testing.T) *env {
	t.Helper()

	sdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, sdb.AutoMigrate(
		&productdomain.Product{},
		&productdomain.Package{},
		&orderdomain.Order{},
		&subscriptiondomain.Subscription{},
		&accountdomain.Account{},
		&auditdomain.Log{},
	))

	rawPartner, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, rawPartner.AutoMigrate(&partnerdomain.Cafe{}, &partnerdomain.Profile{}))
	pdb := db.Partner{DB: rawPartner}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	sealer, err := vault.New("test-vault-key")
	require.NoError(t, err)

	clk := &fakeClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	dir := newFakeDirectory()

	orderRepo := orderrepo.Provide()
	cfg := config.Config{
		Onboarding: config.OnboardingConfig{
			PartnerProductCode: "kafe-menu",
			SlugRetryLimit:     20,
			GuardTTL:           30 * time.Second,
			RedirectTo:         "/dashboard/subscriptions",
		},
	}

	e := &env{
		sdb:   sdb,
		pdb:   pdb,
		dir:   dir,
		clk:   clk,
		vault: sealer,
		caller: identity.Caller{
			ID:    uuid.NewString(),
			Email: "owner@example.com",
			Role:  "user",
		},
	}

	e.svc = New(Params{
		DB:      sdb,
		Partner: pdb,
		Log:     zap.NewNop(),
		Clock:   clk,
		Cfg:     cfg,
		Vault:   sealer,

		OrderSvc: orderservice.New(orderservice.Params{
			DB:   sdb,
			Log:  zap.NewNop(),
			Repo: orderRepo,
		}),
		OrderRepo:   orderRepo,
		ProductRepo: productrepo.Provide(),
		SubRepo:     subscriptionrepo.Provide(),
		AccountRepo: accountrepo.Provide(),
		CafeRepo:    partnerrepo.ProvideCafeRepository(),
		ProfileRepo: partnerrepo.ProvideProfileRepository(),
		Directory:   dir,
		AuditSvc: auditservice.New(auditservice.Params{
			DB:    sdb,
			Log:   zap.NewNop(),
			GenID: node,
		}),
	})

	e.seedCatalog(t, 1)
	return e
}

func (e *env) seedCatalog(t *testing.T, months int) {
	t.Helper()
	now := e.clk.now
	e.product = &productdomain.Product{
		ID:        uuid.NewString(),
		Code:      "kafe-menu",
		Name:      "Kafe Menu",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.sdb.Create(e.product).Error)
	e.pkg = &productdomain.Package{
		ID:             uuid.NewString(),
		ProductID:      e.product.ID,
		Name:           "Monthly",
		DurationMonths: months,
		Price:          14900,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, e.sdb.Create(e.pkg).Error)
}

func (e *env) seedOrder(t *testing.T, status orderdomain.OrderStatus) *orderdomain.Order {
	t.Helper()
	now := e.clk.now
	o := &orderdomain.Order{
		ID:        uuid.NewString(),
		UserID:    e.caller.ID,
		ProductID: e.product.ID,
		PackageID: &e.pkg.ID,
		Status:    status,
		Amount:    e.pkg.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.sdb.Create(o).Error)
	return o
}

func (e *env) count(t *testing.T, gdb *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(model).Count(&n).Error)
	return n
}

func TestProvision_CreatesTenantSubscriptionAndAccount(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)

	out, err := e.svc.Provision(context.Background(), e.caller, domain.ProvisionRequest{
		OrderRef: o.ID,
		CafeName: "Güzel Kafe & Restaurant",
		Username: "guzelkafe",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeProvisioned, out.Status)
	assert.Equal(t, "/dashboard/subscriptions", out.RedirectTo)

	// Partner identity was created for the caller's email.
	assert.Equal(t, []string{"owner@example.com"}, e.dir.created)

	var cafe partnerdomain.Cafe
	require.NoError(t, e.pdb.Where("username = ?", "guzelkafe").First(&cafe).Error)
	assert.Equal(t, "guzel-kafe-restaurant", cafe.Slug)
	assert.Equal(t, "s3cret-pass", cafe.Password)
	assert.True(t, cafe.IsActive)
	assert.Equal(t, e.clk.now.AddDate(0, 1, 0), cafe.SubscriptionEndDate.UTC())

	var got orderdomain.Order
	require.NoError(t, e.sdb.First(&got, "id = ?", o.ID).Error)
	assert.Equal(t, orderdomain.StatusCompleted, got.Status)

	var sub subscriptiondomain.Subscription
	require.NoError(t, e.sdb.First(&sub, "user_id = ? AND product_id = ?", e.caller.ID, e.product.ID).Error)
	assert.Equal(t, o.ID, sub.OrderID)
	assert.Equal(t, e.clk.now.AddDate(0, 1, 0), sub.EndDate.UTC())

	var acct accountdomain.Account
	require.NoError(t, e.sdb.First(&acct, "order_id = ?", o.ID).Error)
	assert.Equal(t, sub.ID, acct.SubscriptionID)
	assert.Equal(t, "guzelkafe", acct.Username)

	plain, err := e.vault.Decrypt([]byte(acct.PasswordEncrypted))
	require.NoError(t, err)
	assert.Equal(t, "s3cret-pass", string(plain))
}

func TestProvision_UsernameTakenLeavesEverythingUntouched(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)

	taken := &partnerdomain.Cafe{
		ID:                  uuid.NewString(),
		OwnerID:             uuid.NewString(),
		Name:                "Someone Else's Cafe",
		Slug:                "someone-elses-cafe",
		Username:            "guzelkafe",
		Password:            "their-pass",
		SubscriptionEndDate: e.clk.now.AddDate(0, 3, 0),
		IsActive:            true,
	}
	require.NoError(t, e.pdb.Create(taken).Error)

	_, err := e.svc.Provision(context.Background(), e.caller, domain.ProvisionRequest{
		OrderRef: o.ID,
		CafeName: "Güzel Kafe",
		Username: "guzelkafe",
		Password: "s3cret-pass",
	})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)

	var got orderdomain.Order
	require.NoError(t, e.sdb.First(&got, "id = ?", o.ID).Error)
	assert.Equal(t, orderdomain.StatusPaid, got.Status)

	assert.EqualValues(t, 1, e.count(t, e.pdb.DB, &partnerdomain.Cafe{}))
	assert.EqualValues(t, 0, e.count(t, e.sdb, &subscriptiondomain.Subscription{}))
	assert.EqualValues(t, 0, e.count(t, e.sdb, &accountdomain.Account{}))

	var cafe partnerdomain.Cafe
	require.NoError(t, e.pdb.First(&cafe, "username = ?", "guzelkafe").Error)
	assert.Equal(t, taken.OwnerID, cafe.OwnerID)
	assert.Equal(t, "their-pass", cafe.Password)
}

func TestProvision_SlugConflictProbesSuffixes(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)

	require.NoError(t, e.pdb.Create(&partnerdomain.Cafe{
		ID:                  uuid.NewString(),
		OwnerID:             uuid.NewString(),
		Name:                "Guzel Kafe",
		Slug:                "guzel-kafe",
		Username:            "other",
		Password:            "x",
		SubscriptionEndDate: e.clk.now,
	}).Error)

	out, err := e.svc.Provision(context.Background(), e.caller, domain.ProvisionRequest{
		OrderRef: o.ID,
		CafeName: "Güzel Kafe",
		Username: "guzelkafe",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeProvisioned, out.Status)

	var cafe partnerdomain.Cafe
	require.NoError(t, e.pdb.First(&cafe, "username = ?", "guzelkafe").Error)
	assert.Equal(t, "guzel-kafe-1", cafe.Slug)
}

func TestProvision_ReusesOwnTenantAfterCrash(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)

	// A prior attempt created the identity and the tenant, then crashed
	// before any storefront bookkeeping.
	u, err := e.dir.CreateUser(context.Background(), e.caller.Email, "old-pass")
	require.NoError(t, err)
	require.NoError(t, e.pdb.Create(&partnerdomain.Profile{ID: u.ID, Email: e.caller.Email}).Error)
	require.NoError(t, e.pdb.Create(&partnerdomain.Cafe{
		ID:                  uuid.NewString(),
		OwnerID:             u.ID,
		Name:                "Güzel Kafe",
		Slug:                "guzel-kafe",
		Username:            "guzelkafe",
		Password:            "s3cret-pass",
		SubscriptionEndDate: e.clk.now.AddDate(0, 1, 0),
		IsActive:            true,
	}).Error)

	out, err := e.svc.Provision(context.Background(), e.caller, domain.ProvisionRequest{
		OrderRef: o.ID,
		CafeName: "Güzel Kafe",
		Username: "guzelkafe",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeProvisioned, out.Status)

	assert.EqualValues(t, 1, e.count(t, e.pdb.DB, &partnerdomain.Cafe{}))
	assert.EqualValues(t, 1, e.count(t, e.sdb, &subscriptiondomain.Subscription{}))
	assert.EqualValues(t, 1, e.count(t, e.sdb, &accountdomain.Account{}))

	var got orderdomain.Order
	require.NoError(t, e.sdb.First(&got, "id = ?", o.ID).Error)
	assert.Equal(t, orderdomain.StatusCompleted, got.Status)
}

func TestProvision_RegisteredEmailGetsPasswordOverwritten(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)

	// Identity exists in the directory but has no profile row, so the fast
	// path misses and the scan fallback kicks in.
	u, err := e.dir.CreateUser(context.Background(), e.caller.Email, "forgotten-pass")
	require.NoError(t, err)

	_, err = e.svc.Provision(context.Background(), e.caller, domain.ProvisionRequest{
		OrderRef: o.ID,
		CafeName: "Güzel Kafe",
		Username: "guzelkafe",
		Password: "fresh-pass",
	})
	require.NoError(t, err)

	assert.Equal(t, "fresh-pass", e.dir.passwords[u.ID])

	var cafe partnerdomain.Cafe
	require.NoError(t, e.pdb.First(&cafe, "username = ?", "guzelkafe").Error)
	assert.Equal(t, u.ID, cafe.OwnerID)
}

func TestProvision_RejectsWrongProductAndUnpaidOrders(t *testing.T) {
	e := newEnv(t)

	other := &orderdomain.Order{
		ID:        uuid.NewString(),
		UserID:    e.caller.ID,
		ProductID: uuid.NewString(),
		Status:    orderdomain.StatusPaid,
		CreatedAt: e.clk.now,
		UpdatedAt: e.clk.now,
	}
	require.NoError(t, e.sdb.Create(other).Error)

	req := domain.ProvisionRequest{OrderRef: other.ID, CafeName: "Kafe", Username: "u", Password: "p"}
	_, err := e.svc.Provision(context.Background(), e.caller, req)
	assert.ErrorIs(t, err, domain.ErrProductMismatch)

	pending := e.seedOrder(t, orderdomain.StatusPending)
	req.OrderRef = pending.ID
	_, err = e.svc.Provision(context.Background(), e.caller, req)
	assert.ErrorIs(t, err, domain.ErrOrderNotPayable)

	cancelled := e.seedOrder(t, orderdomain.StatusCancelled)
	req.OrderRef = cancelled.ID
	_, err = e.svc.Provision(context.Background(), e.caller, req)
	assert.ErrorIs(t, err, domain.ErrOrderNotPayable)
}

func TestProvision_RejectsForeignOrder(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)

	stranger := e.caller
	stranger.ID = uuid.NewString()

	_, err := e.svc.Provision(context.Background(), stranger, domain.ProvisionRequest{
		OrderRef: o.ID, CafeName: "Kafe", Username: "u", Password: "p",
	})
	assert.ErrorIs(t, err, orderdomain.ErrNotOwner)
}

// seedProvisioned establishes the state after a successful first-time
// provisioning keyed to the given order.
func (e *env) seedProvisioned(t *testing.T, o *orderdomain.Order, endDate time.Time) (*subscriptiondomain.Subscription, *accountdomain.Account) {
	t.Helper()
	now := e.clk.now
	require.NoError(t, e.pdb.Create(&partnerdomain.Cafe{
		ID:                  uuid.NewString(),
		OwnerID:             uuid.NewString(),
		Name:                "Güzel Kafe",
		Slug:                "guzel-kafe",
		Username:            "guzelkafe",
		Password:            "s3cret-pass",
		SubscriptionEndDate: endDate,
		IsActive:            true,
	}).Error)

	sub := &subscriptiondomain.Subscription{
		ID:        uuid.NewString(),
		UserID:    o.UserID,
		ProductID: o.ProductID,
		OrderID:   o.ID,
		StartDate: now.AddDate(0, -1, 0),
		EndDate:   endDate,
		Status:    subscriptiondomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.sdb.Create(sub).Error)

	sealed, err := e.vault.Encrypt([]byte("s3cret-pass"))
	require.NoError(t, err)
	acct := &accountdomain.Account{
		ID:                uuid.NewString(),
		SubscriptionID:    sub.ID,
		UserID:            o.UserID,
		ProductID:         o.ProductID,
		OrderID:           o.ID,
		Username:          "guzelkafe",
		PasswordEncrypted: string(sealed),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, e.sdb.Create(acct).Error)
	return sub, acct
}

func TestComplete_RenewalExtendsWithoutCreatingAnything(t *testing.T) {
	e := newEnv(t)
	first := e.seedOrder(t, orderdomain.StatusCompleted)
	currentEnd := e.clk.now.AddDate(0, 0, 10) // still 10 days left
	sub, acct := e.seedProvisioned(t, first, currentEnd)

	renewal := e.seedOrder(t, orderdomain.StatusPaid)

	out, err := e.svc.Complete(context.Background(), e.caller, renewal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRenewed, out.Status)

	assert.EqualValues(t, 1, e.count(t, e.pdb.DB, &partnerdomain.Cafe{}))
	assert.EqualValues(t, 1, e.count(t, e.sdb, &subscriptiondomain.Subscription{}))
	assert.EqualValues(t, 1, e.count(t, e.sdb, &accountdomain.Account{}))

	// Renewing before expiry stacks on top of the remaining time.
	var gotSub subscriptiondomain.Subscription
	require.NoError(t, e.sdb.First(&gotSub, "id = ?", sub.ID).Error)
	assert.Equal(t, currentEnd.AddDate(0, 1, 0), gotSub.EndDate.UTC())
	assert.Equal(t, renewal.ID, gotSub.OrderID)

	var gotCafe partnerdomain.Cafe
	require.NoError(t, e.pdb.First(&gotCafe, "username = ?", "guzelkafe").Error)
	assert.Equal(t, currentEnd.AddDate(0, 1, 0), gotCafe.SubscriptionEndDate.UTC())

	// The account is re-keyed to the order that paid for the extension, so
	// the renewal order stops looking consumable.
	var gotAcct accountdomain.Account
	require.NoError(t, e.sdb.First(&gotAcct, "id = ?", acct.ID).Error)
	assert.Equal(t, renewal.ID, gotAcct.OrderID)

	var gotOrder orderdomain.Order
	require.NoError(t, e.sdb.First(&gotOrder, "id = ?", renewal.ID).Error)
	assert.Equal(t, orderdomain.StatusCompleted, gotOrder.Status)
}

func TestComplete_LapsedRenewalAnchorsOnNow(t *testing.T) {
	e := newEnv(t)
	first := e.seedOrder(t, orderdomain.StatusCompleted)
	e.seedProvisioned(t, first, e.clk.now.AddDate(0, -2, 0)) // lapsed two months ago

	renewal := e.seedOrder(t, orderdomain.StatusPaid)

	out, err := e.svc.Complete(context.Background(), e.caller, renewal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRenewed, out.Status)

	var gotSub subscriptiondomain.Subscription
	require.NoError(t, e.sdb.First(&gotSub, "user_id = ?", e.caller.ID).Error)
	assert.Equal(t, e.clk.now.AddDate(0, 1, 0), gotSub.EndDate.UTC())
}

func TestComplete_SetupRequiredWhenNoAccountExists(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)

	out, err := e.svc.Complete(context.Background(), e.caller, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSetupRequired, out.Status)

	// Nothing is consumed until the user finishes setup.
	var got orderdomain.Order
	require.NoError(t, e.sdb.First(&got, "id = ?", o.ID).Error)
	assert.Equal(t, orderdomain.StatusPaid, got.Status)
}

func TestComplete_AlreadyCompletedIsIdempotent(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusCompleted)
	currentEnd := e.clk.now.AddDate(0, 1, 0)
	sub, _ := e.seedProvisioned(t, o, currentEnd)

	out, err := e.svc.Complete(context.Background(), e.caller, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyCompleted, out.Status)

	// Replaying must not extend anything.
	var gotSub subscriptiondomain.Subscription
	require.NoError(t, e.sdb.First(&gotSub, "id = ?", sub.ID).Error)
	assert.Equal(t, currentEnd, gotSub.EndDate.UTC())
}

func TestComplete_FinishesCrashedRenewal(t *testing.T) {
	e := newEnv(t)
	first := e.seedOrder(t, orderdomain.StatusCompleted)
	currentEnd := e.clk.now.AddDate(0, 0, 5)
	_, acct := e.seedProvisioned(t, first, currentEnd)

	// A renewal crashed after the order was marked completed but before the
	// account was re-keyed to it.
	crashed := e.seedOrder(t, orderdomain.StatusCompleted)

	out, err := e.svc.Complete(context.Background(), e.caller, crashed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRenewed, out.Status)

	var gotAcct accountdomain.Account
	require.NoError(t, e.sdb.First(&gotAcct, "id = ?", acct.ID).Error)
	assert.Equal(t, crashed.ID, gotAcct.OrderID)

	// Replaying now short-circuits.
	out, err = e.svc.Complete(context.Background(), e.caller, crashed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyCompleted, out.Status)
}

func TestComplete_RenewalRetryAfterFailureGrantsDurationOnce(t *testing.T) {
	e := newEnv(t)
	first := e.seedOrder(t, orderdomain.StatusCompleted)
	currentEnd := e.clk.now.AddDate(0, 0, 10)
	sub, acct := e.seedProvisioned(t, first, currentEnd)

	renewal := e.seedOrder(t, orderdomain.StatusPaid)

	// First attempt dies mid-bookkeeping, after the partner side effect.
	svc := e.svc.(*Service)
	realRepo := svc.accountRepo
	svc.accountRepo = &flakyAccountRepo{Repository: realRepo, updateErr: errors.New("connection reset")}

	out, err := svc.Complete(context.Background(), e.caller, renewal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRenewed, out.Status)

	// The storefront writes rolled back together: nothing half-applied.
	var gotSub subscriptiondomain.Subscription
	require.NoError(t, e.sdb.First(&gotSub, "id = ?", sub.ID).Error)
	assert.Equal(t, currentEnd, gotSub.EndDate.UTC())
	var gotOrder orderdomain.Order
	require.NoError(t, e.sdb.First(&gotOrder, "id = ?", renewal.ID).Error)
	assert.Equal(t, orderdomain.StatusPaid, gotOrder.Status)
	var gotAcct accountdomain.Account
	require.NoError(t, e.sdb.First(&gotAcct, "id = ?", acct.ID).Error)
	assert.Equal(t, first.ID, gotAcct.OrderID)

	// The retry grants the order's one month exactly once, not twice.
	svc.accountRepo = realRepo
	out, err = svc.Complete(context.Background(), e.caller, renewal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRenewed, out.Status)

	require.NoError(t, e.sdb.First(&gotSub, "id = ?", sub.ID).Error)
	assert.Equal(t, currentEnd.AddDate(0, 1, 0), gotSub.EndDate.UTC())
	var gotCafe partnerdomain.Cafe
	require.NoError(t, e.pdb.First(&gotCafe, "username = ?", "guzelkafe").Error)
	assert.Equal(t, currentEnd.AddDate(0, 1, 0), gotCafe.SubscriptionEndDate.UTC())
	require.NoError(t, e.sdb.First(&gotAcct, "id = ?", acct.ID).Error)
	assert.Equal(t, renewal.ID, gotAcct.OrderID)

	// Replaying the consumed order short-circuits.
	out, err = svc.Complete(context.Background(), e.caller, renewal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyCompleted, out.Status)
}

func TestProvision_RecoversCompletedOrderWithoutAccount(t *testing.T) {
	e := newEnv(t)
	// A prior attempt completed the order but crashed before any account
	// row was written.
	o := e.seedOrder(t, orderdomain.StatusCompleted)

	out, err := e.svc.Provision(context.Background(), e.caller, domain.ProvisionRequest{
		OrderRef: o.ID,
		CafeName: "Güzel Kafe",
		Username: "guzelkafe",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeProvisioned, out.Status)

	assert.EqualValues(t, 1, e.count(t, e.pdb.DB, &partnerdomain.Cafe{}))
	assert.EqualValues(t, 1, e.count(t, e.sdb, &accountdomain.Account{}))
	var acct accountdomain.Account
	require.NoError(t, e.sdb.First(&acct, "order_id = ?", o.ID).Error)
	assert.Equal(t, e.caller.ID, acct.UserID)

	// With the account row in place the order is fully consumed.
	_, err = e.svc.Provision(context.Background(), e.caller, domain.ProvisionRequest{
		OrderRef: o.ID,
		CafeName: "Güzel Kafe",
		Username: "guzelkafe",
		Password: "s3cret-pass",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyProvisioned)
	assert.EqualValues(t, 1, e.count(t, e.sdb, &accountdomain.Account{}))
}

func TestFinishBookkeeping_ConcurrentCompletionCountsAsSuccess(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)
	// A concurrent request already wrote the full bookkeeping for this
	// order; our own write hits its unique constraint.
	e.seedProvisioned(t, o, e.clk.now.AddDate(0, 1, 0))

	svc := e.svc.(*Service)
	realRepo := svc.accountRepo
	svc.accountRepo = &flakyAccountRepo{
		Repository: realRepo,
		updateErr:  errors.New("UNIQUE constraint failed: user_product_accounts.order_id"),
	}

	err := svc.finishBookkeeping(context.Background(), o, "guzelkafe", "s3cret-pass",
		e.clk.now.AddDate(0, 1, 0), e.clk.now)
	require.NoError(t, err)

	svc.accountRepo = realRepo
	assert.EqualValues(t, 1, e.count(t, e.sdb, &accountdomain.Account{}))
}

func TestLink_ExtendsTenantWithoutChangingOwner(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)

	originalOwner := uuid.NewString()
	currentEnd := e.clk.now.AddDate(0, 0, 20)
	require.NoError(t, e.pdb.Create(&partnerdomain.Cafe{
		ID:                  uuid.NewString(),
		OwnerID:             originalOwner,
		Name:                "Eski Kafe",
		Slug:                "eski-kafe",
		Username:            "eskikafe",
		Password:            "kafe-pass",
		SubscriptionEndDate: currentEnd,
		IsActive:            true,
	}).Error)

	out, err := e.svc.Link(context.Background(), e.caller, domain.LinkRequest{
		OrderRef: o.ID,
		Username: "eskikafe",
		Password: "kafe-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeLinked, out.Status)

	var cafe partnerdomain.Cafe
	require.NoError(t, e.pdb.First(&cafe, "username = ?", "eskikafe").Error)
	assert.Equal(t, originalOwner, cafe.OwnerID)
	assert.Equal(t, currentEnd.AddDate(0, 1, 0), cafe.SubscriptionEndDate.UTC())

	var acct accountdomain.Account
	require.NoError(t, e.sdb.First(&acct, "order_id = ?", o.ID).Error)
	assert.Equal(t, "eskikafe", acct.Username)

	var got orderdomain.Order
	require.NoError(t, e.sdb.First(&got, "id = ?", o.ID).Error)
	assert.Equal(t, orderdomain.StatusCompleted, got.Status)
}

func TestLink_BadCredentialsDoNotRevealWhichFieldFailed(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)

	require.NoError(t, e.pdb.Create(&partnerdomain.Cafe{
		ID:                  uuid.NewString(),
		OwnerID:             uuid.NewString(),
		Name:                "Eski Kafe",
		Slug:                "eski-kafe",
		Username:            "eskikafe",
		Password:            "kafe-pass",
		SubscriptionEndDate: e.clk.now.AddDate(0, 1, 0),
		IsActive:            true,
	}).Error)

	_, errUnknown := e.svc.Link(context.Background(), e.caller, domain.LinkRequest{
		OrderRef: o.ID, Username: "no-such-cafe", Password: "kafe-pass",
	})
	_, errWrongPass := e.svc.Link(context.Background(), e.caller, domain.LinkRequest{
		OrderRef: o.ID, Username: "eskikafe", Password: "wrong",
	})

	assert.ErrorIs(t, errUnknown, domain.ErrInvalidTenantCredentials)
	assert.ErrorIs(t, errWrongPass, domain.ErrInvalidTenantCredentials)
	assert.Equal(t, errUnknown, errWrongPass)

	var got orderdomain.Order
	require.NoError(t, e.sdb.First(&got, "id = ?", o.ID).Error)
	assert.Equal(t, orderdomain.StatusPaid, got.Status)
}

func TestGuard_RejectsConcurrentAttemptsOnSameOrder(t *testing.T) {
	e := newEnv(t)
	o := e.seedOrder(t, orderdomain.StatusPaid)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	svc := e.svc.(*Service)
	svc.redis = client

	// Another request holds the guard.
	require.NoError(t, mr.Set("onboarding:order:"+o.ID, "1"))

	_, err := svc.Complete(context.Background(), e.caller, o.ID)
	assert.ErrorIs(t, err, domain.ErrInProgress)

	// Once released, the same reference goes through.
	mr.Del("onboarding:order:" + o.ID)
	out, err := svc.Complete(context.Background(), e.caller, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSetupRequired, out.Status)
	assert.False(t, mr.Exists("onboarding:order:"+o.ID))
}

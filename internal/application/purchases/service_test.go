package purchases

import (
	"context"
	"errors"
	"math"
	"testing"

	"carbonpay-backend/internal/application/assets"
	"carbonpay-backend/internal/application/ledger"
	"carbonpay-backend/internal/application/projects"
	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type purchaseFixture struct {
	db        *gorm.DB
	svc       *Service
	projects  *projects.Service
	ledger    *ledger.Service
	assets    *assets.Service
	paymentID uuid.UUID
}

func setupPurchasesTest(t *testing.T) *purchaseFixture {
	db, err := database.Open("sqlite://:memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, ledger.AutoMigrate(db))

	assetSvc := &assets.Service{}
	ledgerSvc := &ledger.Service{DB: db, Assets: assetSvc, Namespace: "test"}
	mint, err := assetSvc.CreateMint(db, assets.MintSpec{Kind: domain.AssetPayment, Decimals: domain.PaymentAssetDecimals, Authority: "treasury"})
	require.NoError(t, err)
	_, err = ledgerSvc.Initialize(context.Background(), "admin", mint.MintID)
	require.NoError(t, err)

	return &purchaseFixture{
		db:        db,
		svc:       &Service{DB: db, Ledger: ledgerSvc, Assets: assetSvc},
		projects:  &projects.Service{DB: db, Ledger: ledgerSvc, Assets: assetSvc},
		ledger:    ledgerSvc,
		assets:    assetSvc,
		paymentID: mint.MintID,
	}
}

func (f *purchaseFixture) project(t *testing.T, supply, price, fee uint64) *domain.Project {
	p, err := f.projects.CreateProject(context.Background(), projects.CreateProjectInput{
		Owner:        "owner",
		TotalSupply:  supply,
		PricePerUnit: price,
		FeeRateBps:   fee,
		Receipt:      domain.ReceiptDescriptor{Name: "Mangrove", Symbol: "MNG", URI: "https://example.org/mng.json"},
	})
	require.NoError(t, err)
	return p
}

func (f *purchaseFixture) fund(t *testing.T, owner string, amount uint64) {
	require.NoError(t, f.assets.MintTo(f.db, f.paymentID, owner, amount, "treasury"))
}

func (f *purchaseFixture) balance(t *testing.T, mintID uuid.UUID, owner string) uint64 {
	bal, err := f.assets.Balance(f.db, mintID, owner)
	require.NoError(t, err)
	return bal
}

func TestPurchase_SplitsPaymentAndMovesCredits(t *testing.T) {
	f := setupPurchasesTest(t)
	p := f.project(t, 1000, 5, 250)
	f.fund(t, "buyer", 5000)

	res, err := f.svc.Purchase(context.Background(), PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 200})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), res.Total)
	assert.Equal(t, uint64(25), res.Fee)
	assert.Equal(t, uint64(975), res.ToOwner)
	assert.Equal(t, uint64(200), res.Purchase.Amount)
	assert.Equal(t, uint64(200), res.Purchase.RemainingAmount)

	l, err := f.ledger.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4000), f.balance(t, f.paymentID, "buyer"))
	assert.Equal(t, uint64(975), f.balance(t, f.paymentID, "owner"))
	assert.Equal(t, uint64(25), f.balance(t, f.paymentID, l.CapabilityAddress))
	assert.Equal(t, uint64(200), f.balance(t, p.UnderlyingAssetID, "buyer"))
	assert.Equal(t, uint64(800), f.balance(t, p.UnderlyingAssetID, l.CapabilityAddress))
	assert.Equal(t, uint64(1), f.balance(t, res.Purchase.ReceiptAssetID, "buyer"))

	receipt, err := f.assets.GetMint(f.db, res.Purchase.ReceiptAssetID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetReceipt, receipt.Kind)
	assert.Contains(t, string(receipt.Metadata), `"MNG Receipt"`)
	assert.Contains(t, string(receipt.Metadata), `"CPR"`)

	got, err := f.projects.GetProject(context.Background(), p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, uint64(800), got.RemainingSupply)
}

func TestPurchase_ExactRemainingThenOneMore(t *testing.T) {
	f := setupPurchasesTest(t)
	p := f.project(t, 10, 1, 0)
	f.fund(t, "buyer", 100)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 10})
	require.NoError(t, err)
	got, err := f.projects.GetProject(ctx, p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.RemainingSupply)

	_, err = f.svc.Purchase(ctx, PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 1})
	assert.True(t, errors.Is(err, domain.ErrInsufficientTokens))
}

func TestPurchase_Validation(t *testing.T) {
	f := setupPurchasesTest(t)
	p := f.project(t, 100, 1, 0)
	f.fund(t, "buyer", 1000)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, PurchaseInput{Buyer: "buyer", ProjectID: uuid.New(), Amount: 1})
	assert.True(t, errors.Is(err, domain.ErrInvalidProject))

	_, err = f.svc.Purchase(ctx, PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 0})
	assert.True(t, errors.Is(err, domain.ErrInvalidAmount))

	_, err = f.svc.Purchase(ctx, PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 101})
	assert.True(t, errors.Is(err, domain.ErrInsufficientTokens))

	_, err = f.svc.Purchase(ctx, PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 1, Payee: "mallory"})
	assert.True(t, errors.Is(err, domain.ErrInvalidProjectOwner))

	_, err = f.svc.Purchase(ctx, PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 1, Payee: "owner"})
	assert.NoError(t, err)
}

func TestPurchase_InactiveProject(t *testing.T) {
	f := setupPurchasesTest(t)
	p := f.project(t, 100, 1, 0)
	require.NoError(t, f.db.Model(&domain.Project{}).Where("project_id = ?", p.ProjectID).Update("is_active", false).Error)

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 0})
	assert.True(t, errors.Is(err, domain.ErrProjectInactive))
}

func TestPurchase_ForeignAuthority(t *testing.T) {
	f := setupPurchasesTest(t)
	p := f.project(t, 100, 1, 0)
	require.NoError(t, f.db.Model(&domain.Project{}).Where("project_id = ?", p.ProjectID).Update("issuing_authority", "cap_other").Error)

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 1})
	assert.True(t, errors.Is(err, domain.ErrInvalidPlatformAuthority))
}

func TestPurchase_PricingOverflow(t *testing.T) {
	f := setupPurchasesTest(t)
	ctx := context.Background()

	p := f.project(t, 10, math.MaxInt64, 0)
	_, err := f.svc.Purchase(ctx, PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 3})
	assert.True(t, errors.Is(err, domain.ErrMathOverflow))
	assert.Equal(t, domain.KindArithmetic, domain.KindOf(err))

	feeOverflow := f.project(t, 10, 1<<62, 250)
	_, err = f.svc.Purchase(ctx, PurchaseInput{Buyer: "buyer", ProjectID: feeOverflow.ProjectID, Amount: 2})
	assert.True(t, errors.Is(err, domain.ErrMathOverflow))

	got, err := f.projects.GetProject(ctx, feeOverflow.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.RemainingSupply)
}

func TestPurchase_TotalBeyondStorableRange(t *testing.T) {
	f := setupPurchasesTest(t)
	ctx := context.Background()

	// 2 * 2^62 fits a uint64 but not a stored amount
	p := f.project(t, 10, 1<<62, 0)
	_, err := f.svc.Purchase(ctx, PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 2})
	assert.True(t, errors.Is(err, domain.ErrMathOverflow), "got %v", err)

	got, err := f.projects.GetProject(ctx, p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.RemainingSupply)
}

func TestPurchase_RequiresBuyer(t *testing.T) {
	f := setupPurchasesTest(t)
	ctx := context.Background()
	free := f.project(t, 10, 0, 0)

	_, err := f.svc.Purchase(ctx, PurchaseInput{ProjectID: free.ProjectID, Amount: 1})
	assert.True(t, errors.Is(err, domain.ErrInvalidBuyer), "got %v", err)

	// buyer is checked before the project lookup
	_, err = f.svc.Purchase(ctx, PurchaseInput{ProjectID: uuid.New(), Amount: 1})
	assert.True(t, errors.Is(err, domain.ErrInvalidBuyer))

	got, err := f.projects.GetProject(ctx, free.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.RemainingSupply)
	var count int64
	require.NoError(t, f.db.Model(&domain.Purchase{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestPurchase_InsufficientPaymentRollsBack(t *testing.T) {
	f := setupPurchasesTest(t)
	p := f.project(t, 100, 5, 250)
	f.fund(t, "buyer", 10)

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 10})
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))
	assert.Equal(t, domain.KindAsset, domain.KindOf(err))

	assert.Equal(t, uint64(10), f.balance(t, f.paymentID, "buyer"))
	assert.Equal(t, uint64(0), f.balance(t, f.paymentID, "owner"))
}

// failingTransferer lets payment go through and then refuses the vault withdrawal.
type failingTransferer struct {
	*assets.Service
	failMint uuid.UUID
}

func (ft *failingTransferer) Transfer(tx *gorm.DB, mintID uuid.UUID, from, to string, amount uint64, authority string) error {
	if mintID == ft.failMint {
		return domain.ErrOwnerMismatch
	}
	return ft.Service.Transfer(tx, mintID, from, to, amount, authority)
}

func TestPurchase_AssetFailureLeavesNoPartialEffect(t *testing.T) {
	f := setupPurchasesTest(t)
	p := f.project(t, 100, 5, 250)
	f.fund(t, "buyer", 5000)
	f.svc.Assets = &failingTransferer{Service: f.assets, failMint: p.UnderlyingAssetID}

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{Buyer: "buyer", ProjectID: p.ProjectID, Amount: 10})
	assert.True(t, errors.Is(err, domain.ErrOwnerMismatch))

	assert.Equal(t, uint64(5000), f.balance(t, f.paymentID, "buyer"))
	assert.Equal(t, uint64(0), f.balance(t, f.paymentID, "owner"))

	var purchases, receipts int64
	require.NoError(t, f.db.Model(&domain.Purchase{}).Count(&purchases).Error)
	require.NoError(t, f.db.Model(&domain.Mint{}).Where("kind = ?", domain.AssetReceipt).Count(&receipts).Error)
	assert.Equal(t, int64(0), purchases)
	assert.Equal(t, int64(1), receipts) // provenance only

	got, err := f.projects.GetProject(context.Background(), p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got.RemainingSupply)
}

func TestProjectConservation(t *testing.T) {
	f := setupPurchasesTest(t)
	p := f.project(t, 1000, 2, 100)
	f.fund(t, "alice", 10000)
	f.fund(t, "bob", 10000)
	ctx := context.Background()

	for _, order := range []PurchaseInput{
		{Buyer: "alice", Amount: 100},
		{Buyer: "bob", Amount: 250},
		{Buyer: "alice", Amount: 1},
		{Buyer: "bob", Amount: 5000},
	} {
		order.ProjectID = p.ProjectID
		_, _ = f.svc.Purchase(ctx, order)
	}

	var all []domain.Purchase
	require.NoError(t, f.db.Where("project_id = ?", p.ProjectID).Find(&all).Error)
	var sold uint64
	for _, pu := range all {
		sold += pu.Amount
	}
	got, err := f.projects.GetProject(ctx, p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, sold, got.TotalSupply-got.RemainingSupply)
	assert.Equal(t, uint64(351), sold)

	mine, err := f.svc.ListPurchases(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	one, err := f.svc.GetPurchase(ctx, mine[0].PurchaseID)
	require.NoError(t, err)
	assert.Equal(t, "alice", one.BuyerIdentity)

	_, err = f.svc.GetPurchase(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrInvalidPurchase))
}

package projects

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"carbonpay-backend/internal/application/assets"
	"carbonpay-backend/internal/application/ledger"
	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupProjectsTest(t *testing.T, initialize bool) (*Service, *gorm.DB) {
	db, err := database.Open("sqlite://:memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, ledger.AutoMigrate(db))

	assetSvc := &assets.Service{}
	ledgerSvc := &ledger.Service{DB: db, Assets: assetSvc, Namespace: "test"}
	if initialize {
		mint, err := assetSvc.CreateMint(db, assets.MintSpec{Kind: domain.AssetPayment, Decimals: domain.PaymentAssetDecimals, Authority: "treasury"})
		require.NoError(t, err)
		_, err = ledgerSvc.Initialize(context.Background(), "admin", mint.MintID)
		require.NoError(t, err)
	}
	return &Service{DB: db, Ledger: ledgerSvc, Assets: assetSvc}, db
}

func validInput() CreateProjectInput {
	return CreateProjectInput{
		Owner:        "owner",
		TotalSupply:  1000,
		PricePerUnit: 5,
		FeeRateBps:   250,
		Receipt:      domain.ReceiptDescriptor{Name: "Mangrove 2024", Symbol: "MNG", URI: "https://example.org/mng.json"},
	}
}

func TestCreateProject_LocksSupplyUnderCapability(t *testing.T) {
	svc, db := setupProjectsTest(t, true)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, validInput())
	require.NoError(t, err)
	assert.True(t, p.IsActive)
	assert.Equal(t, uint64(1000), p.RemainingSupply)
	assert.Equal(t, uint64(1000), p.TotalSupply)

	capability, err := svc.Ledger.Capability(db)
	require.NoError(t, err)
	assert.Equal(t, capability.Address(), p.IssuingAuthority)

	bal, err := svc.Assets.Balance(db, p.UnderlyingAssetID, capability.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), bal)

	provenance, err := svc.Assets.Balance(db, p.ProvenanceAssetID, capability.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), provenance)

	// the owner can no longer mint
	err = svc.Assets.MintTo(db, p.UnderlyingAssetID, "owner", 1, "owner")
	assert.True(t, errors.Is(err, domain.ErrMintAuthorityMismatch))
	err = svc.Assets.SetMintAuthority(db, p.UnderlyingAssetID, "owner", "owner")
	assert.True(t, errors.Is(err, domain.ErrMintAuthorityMismatch))

	l, err := svc.Ledger.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), l.TotalCreditsIssued)
}

func TestCreateProject_Validation(t *testing.T) {
	svc, _ := setupProjectsTest(t, true)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateProjectInput)
		want   error
	}{
		{"zero supply", func(in *CreateProjectInput) { in.TotalSupply = 0 }, domain.ErrInvalidAmount},
		{"supply beyond storable range", func(in *CreateProjectInput) { in.TotalSupply = math.MaxUint64 }, domain.ErrInvalidAmount},
		{"price beyond storable range", func(in *CreateProjectInput) { in.PricePerUnit = math.MaxInt64 + 1 }, domain.ErrInvalidAmount},
		{"fee too high", func(in *CreateProjectInput) { in.FeeRateBps = 10001 }, domain.ErrInvalidFeeRate},
		{"fee beyond u16", func(in *CreateProjectInput) { in.FeeRateBps = 65536 }, domain.ErrInvalidFeeRate},
		{"name too long", func(in *CreateProjectInput) { in.Receipt.Name = strings.Repeat("n", 33) }, domain.ErrInvalidReceiptDescriptor},
		{"symbol too long", func(in *CreateProjectInput) { in.Receipt.Symbol = strings.Repeat("s", 11) }, domain.ErrInvalidReceiptDescriptor},
		{"uri too long", func(in *CreateProjectInput) { in.Receipt.URI = strings.Repeat("u", 201) }, domain.ErrInvalidReceiptDescriptor},
		{"no owner", func(in *CreateProjectInput) { in.Owner = "" }, domain.ErrInvalidProjectOwner},
		{"supply checked first", func(in *CreateProjectInput) { in.TotalSupply = 0; in.FeeRateBps = 20000 }, domain.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.CreateProject(ctx, in)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	in := validInput()
	in.FeeRateBps = 10000
	in.Receipt.Name = strings.Repeat("n", 32)
	_, err := svc.CreateProject(ctx, in)
	assert.NoError(t, err)

	l, err := svc.Ledger.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), l.TotalCreditsIssued)
}

func TestCreateProject_IssuedTotalOverflowRollsBack(t *testing.T) {
	svc, db := setupProjectsTest(t, true)
	ctx := context.Background()

	in := validInput()
	in.TotalSupply = math.MaxInt64
	_, err := svc.CreateProject(ctx, in)
	require.NoError(t, err)

	in.Owner = "second-owner"
	in.TotalSupply = 1
	_, err = svc.CreateProject(ctx, in)
	assert.True(t, errors.Is(err, domain.ErrMathOverflow), "got %v", err)
	assert.Equal(t, domain.KindArithmetic, domain.KindOf(err))

	l, err := svc.Ledger.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxInt64), l.TotalCreditsIssued)

	var count int64
	require.NoError(t, db.Model(&domain.Project{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateProject_LedgerNotInitialized(t *testing.T) {
	svc, db := setupProjectsTest(t, false)
	_, err := svc.CreateProject(context.Background(), validInput())
	assert.True(t, errors.Is(err, domain.ErrLedgerNotInitialized))

	var mints int64
	require.NoError(t, db.Model(&domain.Mint{}).Count(&mints).Error)
	assert.Equal(t, int64(0), mints)
}

func TestIssuanceConservation(t *testing.T) {
	svc, db := setupProjectsTest(t, true)
	ctx := context.Background()
	for _, supply := range []uint64{1, 1000, 250000} {
		in := validInput()
		in.TotalSupply = supply
		_, err := svc.CreateProject(ctx, in)
		require.NoError(t, err)
	}

	var sum uint64
	var all []domain.Project
	require.NoError(t, db.Find(&all).Error)
	for _, p := range all {
		sum += p.TotalSupply
	}
	l, err := svc.Ledger.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, sum, l.TotalCreditsIssued)
}

func TestGetAndListProjects(t *testing.T) {
	svc, _ := setupProjectsTest(t, true)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, validInput())
	require.NoError(t, err)
	other := validInput()
	other.Owner = "other-owner"
	_, err = svc.CreateProject(ctx, other)
	require.NoError(t, err)

	got, err := svc.GetProject(ctx, p.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "MNG", got.ReceiptSymbol)

	_, err = svc.GetProject(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrInvalidProject))

	all, err := svc.ListProjects(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.ListProjects(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ProjectID, mine[0].ProjectID)
}

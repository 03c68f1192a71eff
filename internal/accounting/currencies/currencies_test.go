package currencies_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aurum-erp/aurum-erp/internal/accounting/currencies"
	"github.com/aurum-erp/aurum-erp/internal/accounting/memstore"
	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
	_ "github.com/aurum-erp/aurum-erp/testing"
)

func rate(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFirstRegisteredBecomesBase(t *testing.T) {
	svc := currencies.NewService(memstore.New().Currencies())
	ctx := context.Background()

	sar, err := svc.Register(ctx, "SAR", "Saudi Riyal", rate("5"))
	require.NoError(t, err)
	require.True(t, sar.IsBase)
	// The requested rate is ignored for the base.
	require.True(t, sar.ExchangeRate.Equal(decimal.NewFromInt(1)))

	usd, err := svc.Register(ctx, "USD", "US Dollar", rate("3.75"))
	require.NoError(t, err)
	require.False(t, usd.IsBase)
	require.True(t, usd.ExchangeRate.Equal(rate("3.75")))

	base, err := svc.Base(ctx)
	require.NoError(t, err)
	require.Equal(t, "SAR", base.Code)
}

func TestRegisterValidation(t *testing.T) {
	svc := currencies.NewService(memstore.New().Currencies())
	ctx := context.Background()

	_, err := svc.Register(ctx, "RIYAL", "Saudi Riyal", decimal.NewFromInt(1))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Register(ctx, "SAR", "Saudi Riyal", decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = svc.Register(ctx, "SAR", "Saudi Riyal Again", decimal.NewFromInt(1))
	require.ErrorIs(t, err, shared.ErrValidation)

	// Non-base currencies need a positive rate.
	_, err = svc.Register(ctx, "USD", "US Dollar", decimal.Zero)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSetRateGuardsBase(t *testing.T) {
	svc := currencies.NewService(memstore.New().Currencies())
	ctx := context.Background()

	_, err := svc.Register(ctx, "SAR", "Saudi Riyal", decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = svc.Register(ctx, "USD", "US Dollar", rate("3.75"))
	require.NoError(t, err)

	require.ErrorIs(t, svc.SetRate(ctx, "SAR", rate("2")), shared.ErrValidation)
	require.ErrorIs(t, svc.SetRate(ctx, "USD", decimal.Zero), shared.ErrValidation)
	require.NoError(t, svc.SetRate(ctx, "USD", rate("3.80")))
}

func TestSetBaseRebasesRates(t *testing.T) {
	svc := currencies.NewService(memstore.New().Currencies())
	ctx := context.Background()

	_, err := svc.Register(ctx, "SAR", "Saudi Riyal", decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = svc.Register(ctx, "USD", "US Dollar", rate("0.25"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, "AED", "UAE Dirham", rate("0.98"))
	require.NoError(t, err)

	// Re-basing onto the current base is a no-op.
	require.ErrorIs(t, svc.SetBase(ctx, "SAR"), shared.ErrNoOp)

	require.NoError(t, svc.SetBase(ctx, "USD"))

	base, err := svc.Base(ctx)
	require.NoError(t, err)
	require.Equal(t, "USD", base.Code)
	require.True(t, base.ExchangeRate.Equal(decimal.NewFromInt(1)))

	all, err := svc.List(ctx)
	require.NoError(t, err)
	byCode := map[string]currencies.Currency{}
	for _, c := range all {
		byCode[c.Code] = c
	}
	// Every rate divides by the old USD rate: SAR 1/0.25 = 4.
	require.True(t, byCode["SAR"].ExchangeRate.Equal(decimal.NewFromInt(4)))
	require.True(t, byCode["AED"].ExchangeRate.Equal(rate("3.92")))
	require.False(t, byCode["SAR"].IsBase)
}

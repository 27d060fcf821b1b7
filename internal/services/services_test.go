package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eino_dealer_bot/internal/resilience"
	"eino_dealer_bot/pkg"
)

func TestSearchFilters(t *testing.T) {
	inv := NewDemoInventoryService()
	ctx := context.Background()

	cars, err := inv.Search(ctx, pkg.CarFilters{Brand: "chevrolet"})
	require.NoError(t, err)
	require.Len(t, cars, 2)
	assert.Equal(t, "Onix", cars[0].Model)

	cars, err = inv.Search(ctx, pkg.CarFilters{PriceMax: 70000})
	require.NoError(t, err)
	require.Len(t, cars, 2)
	assert.Equal(t, "Argo", cars[0].Model)
	assert.Equal(t, "HB20", cars[1].Model)

	cars, err = inv.Search(ctx, pkg.CarFilters{Model: "hb20", YearMin: 2022})
	require.NoError(t, err)
	assert.Empty(t, cars)

	all, err := inv.Search(ctx, pkg.CarFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDemoInventoryService().Search(ctx, pkg.CarFilters{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadInventory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`cars:
  - id: x1
    brand: Renault
    model: Kwid
    year: 2023
    price: 61900
    mileage: 9000
`), 0o644))

	inv, err := LoadInventory(path)
	require.NoError(t, err)
	cars, err := inv.Search(context.Background(), pkg.CarFilters{Model: "kwid"})
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Equal(t, 61900, cars[0].Price)

	_, err = LoadInventory(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatCar(t *testing.T) {
	line := FormatCar(pkg.Car{Brand: "Chevrolet", Model: "Onix", Version: "LT", Year: 2022, Price: 72900, Mileage: 31000, Transmission: "automático", Color: "prata"})
	assert.Equal(t, "Chevrolet Onix LT 2022, 31.000 km, R$ 72.900, câmbio automático, cor prata", line)
	assert.Equal(t, "1.234.567", formatThousands(1234567))
	assert.Equal(t, "900", formatThousands(900))
}

type failingRepo struct{ calls int }

func (f *failingRepo) Search(context.Context, pkg.CarFilters) ([]pkg.Car, error) {
	f.calls++
	return nil, &pkg.UpstreamError{Dependency: "inventory", StatusCode: 401, Err: errors.New("unauthorized")}
}

func TestGuardedRepositoryOpensCircuit(t *testing.T) {
	inner := &failingRepo{}
	breaker := resilience.NewBreaker(resilience.NewMemoryRepository())
	repo := NewGuardedRepository(inner, resilience.NewGuard(breaker, resilience.Inventory))

	for i := 0; i < 3; i++ {
		_, err := repo.Search(context.Background(), pkg.CarFilters{})
		require.Error(t, err)
	}
	assert.Equal(t, 3, inner.calls)

	_, err := repo.Search(context.Background(), pkg.CarFilters{})
	var open *pkg.CircuitOpenError
	assert.ErrorAs(t, err, &open)
	assert.Equal(t, 3, inner.calls)
}

type failingBus struct{ calls int }

func (f *failingBus) Send(context.Context, string, string) error {
	f.calls++
	return errors.New("gateway down")
}

func TestConsoleBus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleBus(&buf).Send(context.Background(), "5511", "Oi! Quer ver o Onix?"))
	assert.Equal(t, "[bot -> 5511] Oi! Quer ver o Onix?\n", buf.String())
}

func TestBreakerBusDoesNotRetry(t *testing.T) {
	inner := &failingBus{}
	bus := NewBreakerBus(inner, resilience.NewBreaker(resilience.NewMemoryRepository()))

	for i := 0; i < 4; i++ {
		assert.Error(t, bus.Send(context.Background(), "5511", "Oi"))
	}
	// three failures open the messaging circuit, the fourth send is rejected
	assert.Equal(t, 3, inner.calls)
}

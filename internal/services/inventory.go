package services

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"eino_dealer_bot/internal/resilience"
	"eino_dealer_bot/internal/textsim"
	"eino_dealer_bot/pkg"
)

// CarRepository searches the dealership inventory
type CarRepository interface {
	Search(ctx context.Context, filters pkg.CarFilters) ([]pkg.Car, error)
}

// InventoryService is an in-memory CarRepository for development and tests
type InventoryService struct {
	cars []pkg.Car
}

// NewInventoryService creates the service over cars
func NewInventoryService(cars []pkg.Car) *InventoryService {
	return &InventoryService{cars: cars}
}

// NewDemoInventoryService creates the service with a small demo stock
func NewDemoInventoryService() *InventoryService {
	return NewInventoryService([]pkg.Car{
		{ID: "c001", Brand: "Chevrolet", Model: "Onix", Version: "LT 1.0 Turbo", Year: 2022, Price: 72900, Mileage: 31000, Color: "prata", Transmission: "automático"},
		{ID: "c002", Brand: "Chevrolet", Model: "Tracker", Version: "Premier", Year: 2023, Price: 129900, Mileage: 18000, Color: "branco", Transmission: "automático"},
		{ID: "c003", Brand: "Hyundai", Model: "HB20", Version: "Comfort", Year: 2021, Price: 64900, Mileage: 42000, Color: "preto", Transmission: "manual"},
		{ID: "c004", Brand: "Volkswagen", Model: "Polo", Version: "Highline", Year: 2022, Price: 89900, Mileage: 27000, Color: "cinza", Transmission: "automático"},
		{ID: "c005", Brand: "Fiat", Model: "Argo", Version: "Drive 1.0", Year: 2020, Price: 55900, Mileage: 58000, Color: "vermelho", Transmission: "manual"},
		{ID: "c006", Brand: "Toyota", Model: "Corolla", Version: "XEi", Year: 2021, Price: 134900, Mileage: 39000, Color: "preto", Transmission: "automático"},
	})
}

type inventoryFile struct {
	Cars []pkg.Car `yaml:"cars"`
}

// LoadInventory reads the stock from a YAML file with a top-level cars list
func LoadInventory(path string) (*InventoryService, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading inventory file: %w", err)
	}

	var file inventoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing inventory YAML: %w", err)
	}
	return NewInventoryService(file.Cars), nil
}

// Search returns the cars matching every set filter, cheapest first
func (s *InventoryService) Search(ctx context.Context, filters pkg.CarFilters) ([]pkg.Car, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	brand := textsim.Fold(filters.Brand)
	model := textsim.Fold(filters.Model)

	var results []pkg.Car
	for _, car := range s.cars {
		if brand != "" && textsim.Fold(car.Brand) != brand {
			continue
		}
		if model != "" && !strings.Contains(textsim.Fold(car.Model), model) {
			continue
		}
		if filters.YearMin > 0 && car.Year < filters.YearMin {
			continue
		}
		if filters.YearMax > 0 && car.Year > filters.YearMax {
			continue
		}
		if filters.PriceMin > 0 && car.Price < filters.PriceMin {
			continue
		}
		if filters.PriceMax > 0 && car.Price > filters.PriceMax {
			continue
		}
		results = append(results, car)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Price < results[j].Price })
	return results, nil
}

// GuardedRepository runs searches through the inventory breaker and retrier
type GuardedRepository struct {
	inner CarRepository
	guard *resilience.Guard
}

func NewGuardedRepository(inner CarRepository, guard *resilience.Guard) *GuardedRepository {
	return &GuardedRepository{inner: inner, guard: guard}
}

func (g *GuardedRepository) Search(ctx context.Context, filters pkg.CarFilters) ([]pkg.Car, error) {
	return resilience.Do(ctx, g.guard, func(ctx context.Context) ([]pkg.Car, error) {
		return g.inner.Search(ctx, filters)
	})
}

// FormatCar renders one car as a plain line for the reasoner prompt
func FormatCar(car pkg.Car) string {
	line := fmt.Sprintf("%s %s", car.Brand, car.Model)
	if car.Version != "" {
		line += " " + car.Version
	}
	line += fmt.Sprintf(" %d, %s km, R$ %s", car.Year, formatThousands(car.Mileage), formatThousands(car.Price))
	if car.Transmission != "" {
		line += ", câmbio " + car.Transmission
	}
	if car.Color != "" {
		line += ", cor " + car.Color
	}
	return line
}

// formatThousands writes n with dot separators, 72900 -> "72.900"
func formatThousands(n int) string {
	if n < 0 {
		return "-" + formatThousands(-n)
	}
	s := strconv.Itoa(n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}

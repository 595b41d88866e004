package baseline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/physarum/config"
)

func factorial(n int) int {
	f := 1
	for i := 2; i <= n; i++ {
		f *= i
	}
	return f
}

func TestShortestTourSquare(t *testing.T) {
	// Corners listed in crossing order; the best tour walks the perimeter
	points := []config.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 10}}

	tour, err := ShortestTour(context.Background(), points)
	if err != nil {
		t.Fatalf("tour: %v", err)
	}
	if math.Abs(tour.Length-40) > 1e-9 {
		t.Errorf("expected perimeter 40, got %v", tour.Length)
	}
	if tour.Order[0] != 0 || len(tour.Order) != 4 {
		t.Errorf("expected 4-point order starting at 0, got %v", tour.Order)
	}
	if got := TourLength(points, tour.Order); math.Abs(got-tour.Length) > 1e-9 {
		t.Errorf("expected TourLength to agree, got %v", got)
	}
	if tour.Permutations != factorial(3) {
		t.Errorf("expected %d permutations, got %d", factorial(3), tour.Permutations)
	}
}

func TestShortestTourBeatsEveryOrder(t *testing.T) {
	points := []config.Point{
		{X: 3, Y: 7}, {X: 18, Y: 2}, {X: 9, Y: 14}, {X: 1, Y: 1},
		{X: 12, Y: 6}, {X: 20, Y: 19}, {X: 6, Y: 3},
	}
	tour, err := ShortestTour(context.Background(), points)
	if err != nil {
		t.Fatalf("tour: %v", err)
	}
	if tour.Permutations != factorial(len(points)-1) {
		t.Errorf("expected %d permutations, got %d", factorial(len(points)-1), tour.Permutations)
	}

	identity := []int{0, 1, 2, 3, 4, 5, 6}
	if TourLength(points, identity) < tour.Length-1e-9 {
		t.Error("identity order shorter than reported optimum")
	}
	reversed := []int{0, 6, 5, 4, 3, 2, 1}
	if TourLength(points, reversed) < tour.Length-1e-9 {
		t.Error("reversed order shorter than reported optimum")
	}

	seen := make(map[int]bool)
	for _, i := range tour.Order {
		seen[i] = true
	}
	if len(seen) != len(points) {
		t.Errorf("expected every point once, got %v", tour.Order)
	}
}

func TestShortestTourLimits(t *testing.T) {
	if _, err := ShortestTour(context.Background(), []config.Point{{}}); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("expected ErrTooFewPoints, got %v", err)
	}
	many := make([]config.Point, MaxPoints+1)
	if _, err := ShortestTour(context.Background(), many); !errors.Is(err, ErrTooManyPoints) {
		t.Errorf("expected ErrTooManyPoints, got %v", err)
	}

	two := []config.Point{{X: 0, Y: 0}, {X: 3, Y: 4}}
	tour, err := ShortestTour(context.Background(), two)
	if err != nil || tour.Length != 10 {
		t.Errorf("expected out-and-back length 10, got %v, %v", tour.Length, err)
	}
}

func TestShortestTourCancelled(t *testing.T) {
	points := make([]config.Point, 10)
	for i := range points {
		points[i] = config.Point{X: i * 7 % 13, Y: i * 5 % 11}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ShortestTour(ctx, points); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

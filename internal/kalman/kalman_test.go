package kalman

import (
	"math"
	"testing"
)

func TestNew_SeedsStateFromBox(t *testing.T) {
	bf := New(30, 30, 1600, 1)
	x1, y1, x2, y2 := bf.GetState()

	if math.Abs(x1-10) > 1e-6 || math.Abs(y1-10) > 1e-6 || math.Abs(x2-50) > 1e-6 || math.Abs(y2-50) > 1e-6 {
		t.Errorf("expected box ~(10,10,50,50), got (%v,%v,%v,%v)", x1, y1, x2, y2)
	}
}

func TestPredict_IncrementsAgeAndTimeSinceUpdate(t *testing.T) {
	bf := New(30, 30, 1600, 1)
	bf.Predict()

	if bf.Age != 1 {
		t.Errorf("expected Age 1, got %d", bf.Age)
	}
	if bf.TimeSinceUpdate != 1 {
		t.Errorf("expected TimeSinceUpdate 1, got %d", bf.TimeSinceUpdate)
	}
}

func TestPredict_ZeroesHitStreakAfterMiss(t *testing.T) {
	bf := New(10, 10, 1600, 1)
	bf.Update(10, 10, 50, 50)
	if bf.HitStreak != 1 {
		t.Fatalf("expected HitStreak 1 after update, got %d", bf.HitStreak)
	}

	bf.Predict() // a miss tick: nothing calls Update before the next Predict
	bf.Predict()

	if bf.HitStreak != 0 {
		t.Errorf("expected HitStreak to zero after a miss, got %d", bf.HitStreak)
	}
}

func TestUpdate_TracksConvergeTowardObservation(t *testing.T) {
	bf := New(10, 10, 1600, 1)
	for i := 0; i < 10; i++ {
		bf.Predict()
		bf.Update(20, 20, 60, 60)
	}

	x1, y1, x2, y2 := bf.GetState()
	if math.Abs(x1-20) > 2 || math.Abs(y1-20) > 2 || math.Abs(x2-60) > 2 || math.Abs(y2-60) > 2 {
		t.Errorf("expected convergence near (20,20,60,60), got (%v,%v,%v,%v)", x1, y1, x2, y2)
	}

	if bf.Hits != 10 {
		t.Errorf("expected Hits 10, got %d", bf.Hits)
	}
	if bf.TimeSinceUpdate != 0 {
		t.Errorf("expected TimeSinceUpdate 0 after update, got %d", bf.TimeSinceUpdate)
	}
}

func TestUpdate_DegenerateBoxClampedToUnitBox(t *testing.T) {
	bf := New(10, 10, 1600, 1)
	bf.Update(5, 5, 5, 5) // x2<=x1, y2<=y1

	if !bf.IsFinite() {
		t.Fatal("expected finite state after degenerate update")
	}
}

func TestGetState_NonFiniteSuppressesBox(t *testing.T) {
	bf := New(10, 10, 1600, 1)
	bf.x.Set(2, 0, math.NaN()) // corrupt area directly

	x1, y1, x2, y2 := bf.GetState()
	if x2-x1 != 0 || y2-y1 != 0 {
		t.Errorf("expected zero-area box on non-finite state, got w=%v h=%v", x2-x1, y2-y1)
	}
}

func TestGetState_NegativeAreaSuppressesBox(t *testing.T) {
	bf := New(10, 10, 1600, 1)
	bf.x.Set(2, 0, -5)

	x1, y1, x2, y2 := bf.GetState()
	if x2-x1 != 0 || y2-y1 != 0 {
		t.Errorf("expected zero-area box on negative area, got w=%v h=%v", x2-x1, y2-y1)
	}
}

func TestIsFinite(t *testing.T) {
	bf := New(10, 10, 1600, 1)
	if !bf.IsFinite() {
		t.Error("expected fresh filter to be finite")
	}

	bf.x.Set(4, 0, math.Inf(1))
	if bf.IsFinite() {
		t.Error("expected IsFinite to detect Inf")
	}
}

func TestCovariance_ShrinksAfterRepeatedUpdates(t *testing.T) {
	bf := New(10, 10, 1600, 1)
	initial := bf.Covariance().At(0, 0)

	for i := 0; i < 5; i++ {
		bf.Predict()
		bf.Update(10, 10, 50, 50)
	}

	final := bf.Covariance().At(0, 0)
	if final >= initial {
		t.Errorf("expected covariance to shrink with repeated consistent observations: initial=%v final=%v", initial, final)
	}
}

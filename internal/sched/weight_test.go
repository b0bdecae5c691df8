package sched

import "testing"

func TestWeightForNice(t *testing.T) {
	cases := []struct {
		nice int32
		want uint64
	}{
		{-20, 88761},
		{0, 1024},
		{19, 15},
		{-30, 88761}, // clamps below range
		{30, 15},     // clamps above range
	}
	for _, c := range cases {
		if got := WeightForNice(c.nice); got != c.want {
			t.Errorf("WeightForNice(%d) = %d, want %d", c.nice, got, c.want)
		}
	}
}

func TestWeightTableMonotonicallyDecreasing(t *testing.T) {
	for i := 1; i < len(WeightTable); i++ {
		if WeightTable[i] >= WeightTable[i-1] {
			t.Fatalf("WeightTable not strictly decreasing at index %d: %d >= %d", i, WeightTable[i], WeightTable[i-1])
		}
	}
}

package bitwidth

import "testing"

func TestLength(t *testing.T) {
	cases := []struct {
		n    uint64
		want uint8
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{255, 8},
		{256, 9},
		{1<<63 - 1, 63},
		{1 << 63, 64},
	}

	for _, c := range cases {
		if got := Length(c.n); got != c.want {
			t.Errorf("Length(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

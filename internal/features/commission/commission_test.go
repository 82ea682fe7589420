package commission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		amount       int64
		wantAdmin    int64
		wantLecturer int64
	}{
		{amount: 999, wantAdmin: 200, wantLecturer: 799},
		{amount: 1000, wantAdmin: 200, wantLecturer: 800},
		{amount: 0, wantAdmin: 0, wantLecturer: 0},
		{amount: 1, wantAdmin: 0, wantLecturer: 1},
		{amount: 3, wantAdmin: 1, wantLecturer: 2},
		{amount: 5, wantAdmin: 1, wantLecturer: 4},
		{amount: 99900, wantAdmin: 19980, wantLecturer: 79920},
	}

	for _, tt := range tests {
		admin, lecturer := Split(tt.amount)
		assert.Equal(t, tt.wantAdmin, admin, "admin share of %d", tt.amount)
		assert.Equal(t, tt.wantLecturer, lecturer, "lecturer share of %d", tt.amount)
	}
}

func TestSplitIsDeterministicAndBounded(t *testing.T) {
	for amount := int64(0); amount <= 5000; amount++ {
		admin, lecturer := Split(amount)
		again, againLecturer := Split(amount)
		assert.Equal(t, admin, again)
		assert.Equal(t, lecturer, againLecturer)

		drift := admin + lecturer - amount
		if drift < -1 || drift > 1 {
			t.Fatalf("split of %d drifts by %d", amount, drift)
		}
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, Breakdown{Amount: 999, AdminShare: 200, LecturerShare: 799}, Preview(999))
}

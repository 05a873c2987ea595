package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffset(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		pageSize   int
		total      int64
		wantOffset int64
		wantPages  int
	}{
		{name: "first page", page: 0, pageSize: 25, total: 30, wantOffset: 0, wantPages: 2},
		{name: "second page", page: 1, pageSize: 25, total: 30, wantOffset: 25, wantPages: 2},
		{name: "exact multiple", page: 1, pageSize: 10, total: 20, wantOffset: 10, wantPages: 2},
		{name: "negative page clamps to zero", page: -3, pageSize: 25, total: 30, wantOffset: 0, wantPages: 2},
		{name: "empty sequence", page: 0, pageSize: 25, total: 0, wantOffset: 0, wantPages: 0},
		{name: "page far past the end", page: 1000, pageSize: 25, total: 10, wantOffset: 25000, wantPages: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.page, tt.pageSize, tt.total)
			assert.Equal(t, tt.wantOffset, p.Offset())
			assert.Equal(t, tt.wantPages, p.TotalPages())
		})
	}
}

func TestHasMore(t *testing.T) {
	assert.True(t, New(0, 25, 30).HasMore())
	assert.False(t, New(1, 25, 30).HasMore())
	assert.False(t, New(1000, 25, 10).HasMore())
	assert.False(t, New(0, 25, 25).HasMore())
}

func TestPageSizeClamp(t *testing.T) {
	p := New(2, 0, 100)
	assert.Equal(t, 1, p.PageSize)
	assert.Equal(t, int64(2), p.Offset())
}

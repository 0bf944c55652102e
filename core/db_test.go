package core_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unistock/stockroom/core"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		wantPage   int
		wantSize   int
		wantOffset uint64
	}{
		{name: "defaults", wantPage: 1, wantSize: core.DefaultPageSize},
		{name: "second page", page: 2, size: 20, wantPage: 2, wantSize: 20, wantOffset: 20},
		{name: "size capped", page: 1, size: 10_000, wantPage: 1, wantSize: core.MaxPageSize},
		{
			name: "huge page", page: math.MaxInt, size: 50,
			wantPage: math.MaxInt32/50 + 1, wantSize: 50, wantOffset: uint64(math.MaxInt32 / 50 * 50),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := core.NewPagination(tt.page, tt.size)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantSize, p.PageSize)
			assert.Equal(t, tt.wantOffset, p.Offset())
			assert.LessOrEqual(t, p.Offset(), uint64(math.MaxInt32))
		})
	}
}

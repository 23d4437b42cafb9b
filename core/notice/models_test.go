package notice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryFilter_Match(t *testing.T) {
	alpha, beta := "alpha", "beta"
	global := Notice{ID: "n1", CreatedBy: "admin"}
	ofAlpha := Notice{ID: "n2", GroupID: &alpha, CreatedBy: "mentor"}
	ofBeta := Notice{ID: "n3", GroupID: &beta, CreatedBy: "other"}

	tests := []struct {
		name   string
		filter QueryFilter
		want   []string
	}{
		{name: "empty matches all", want: []string{"n1", "n2", "n3"}},
		{name: "global only", filter: QueryFilter{Global: true}, want: []string{"n1"}},
		{name: "student of alpha", filter: QueryFilter{Global: true, GroupIDs: []string{alpha}}, want: []string{"n1", "n2"}},
		{name: "poster", filter: QueryFilter{Global: true, CreatedBy: "other"}, want: []string{"n1", "n3"}},
		{name: "group without global", filter: QueryFilter{GroupIDs: []string{beta}}, want: []string{"n3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]string, 0)
			for _, n := range []Notice{global, ofAlpha, ofBeta} {
				if tt.filter.Match(n) {
					got = append(got, n.ID)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewNotice_Clean(t *testing.T) {
	blank := "  "
	nn := NewNotice{Title: " Exams ", Content: " soon ", GroupID: &blank}
	nn.Clean()
	assert.Equal(t, NewNotice{Title: "Exams", Content: "soon", Type: TypeInfo}, nn)
}

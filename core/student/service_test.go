package student

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/tests"
)

type fakeSource struct {
	students []Student
	err      error
	calls    int
}

func (src *fakeSource) ListStudents(context.Context, core.Session) ([]Student, error) {
	src.calls++
	out := make([]Student, len(src.students))
	copy(out, src.students)
	return out, src.err
}

var (
	t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	thandi = Student{ID: "1", FirstName: "Thandi", LastName: "Nkosi", IDNumber: "9001015800081", Email: "thandi@mail.test",
		Status: "Active", HostCompany: "Acme", Programme: "Eng101", CreatedAt: t0.Add(2 * time.Hour)}
	pieter = Student{ID: "2", FirstName: "Pieter", LastName: "van Wyk", IDNumber: "9203035800082", Email: "pieter@mail.test",
		Status: "Placed", HostCompany: "Globex", Programme: "Data201", CreatedAt: t0}
	aisha = Student{ID: "3", FirstName: "Aisha", LastName: "Patel", IDNumber: "9505055800083", Email: "aisha@acme.test",
		Status: "active", HostCompany: "acme", Programme: "Eng101", CreatedAt: t0.Add(time.Hour)}
)

func names(students []Student) []string {
	out := make([]string, 0, len(students))
	for _, s := range students {
		out = append(out, s.FirstName)
	}
	return out
}

func TestApply(t *testing.T) {
	all := []Student{thandi, pieter, aisha}
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "no filter", want: []string{"Thandi", "Pieter", "Aisha"}},
		{name: "search name", filter: Filter{Search: "VAN w"}, want: []string{"Pieter"}},
		{name: "search id number", filter: Filter{Search: "95050"}, want: []string{"Aisha"}},
		{name: "search email", filter: Filter{Search: "acme"}, want: []string{"Aisha"}},
		{name: "status ignores case", filter: Filter{Status: "ACTIVE"}, want: []string{"Thandi", "Aisha"}},
		{name: "host company", filter: Filter{HostCompany: " Acme "}, want: []string{"Thandi", "Aisha"}},
		{name: "programme and status", filter: Filter{Programme: "eng101", Status: "placed"}, want: []string{}},
		{name: "no match", filter: Filter{Search: "zzz"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Apply(all, tt.filter)))
		})
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		name      string
		orderings []core.DBOrdering
		want      []string
	}{
		{name: "default by name", want: []string{"Aisha", "Pieter", "Thandi"}},
		{name: "newest first", orderings: core.ParseOrderings("-created_at", OrderFields...), want: []string{"Thandi", "Aisha", "Pieter"}},
		{
			name:      "status then name desc",
			orderings: core.ParseOrderings("status,-name", OrderFields...),
			want:      []string{"Thandi", "Aisha", "Pieter"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students := []Student{thandi, pieter, aisha}
			Sort(students, tt.orderings)
			assert.Equal(t, tt.want, names(students))
		})
	}
}

func TestPaginate(t *testing.T) {
	students := make([]Student, 45)
	for i := range students {
		students[i] = Student{FirstName: fmt.Sprintf("s%02d", i)}
	}

	tests := []struct {
		name      string
		pg        Pagination
		wantFirst string
		wantLen   int
		wantPage  int
		wantSize  int
		wantPages int
	}{
		{name: "defaults", pg: Pagination{}, wantFirst: "s00", wantLen: 20, wantPage: 1, wantSize: 20, wantPages: 3},
		{name: "last partial page", pg: Pagination{Page: 3}, wantFirst: "s40", wantLen: 5, wantPage: 3, wantSize: 20, wantPages: 3},
		{name: "past the end", pg: Pagination{Page: 9}, wantLen: 0, wantPage: 9, wantSize: 20, wantPages: 3},
		{name: "size capped", pg: Pagination{Page: 1, PageSize: 500}, wantFirst: "s00", wantLen: 45, wantPage: 1, wantSize: 100, wantPages: 1},
		{name: "custom size", pg: Pagination{Page: 2, PageSize: 10}, wantFirst: "s10", wantLen: 10, wantPage: 2, wantSize: 10, wantPages: 5},
		{name: "huge page", pg: Pagination{Page: math.MaxInt / 50, PageSize: 100}, wantLen: 0, wantPage: math.MaxInt / 50, wantSize: 100, wantPages: 1},
		{name: "max page", pg: Pagination{Page: math.MaxInt}, wantLen: 0, wantPage: math.MaxInt, wantSize: 20, wantPages: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Paginate(students, tt.pg)
			assert.Len(t, page.Data, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, page.Data[0].FirstName)
			}
			assert.Equal(t, 45, page.TotalRows)
			assert.Equal(t, tt.wantPage, page.CurrentPage)
			assert.Equal(t, tt.wantSize, page.PageSize)
			assert.Equal(t, tt.wantPages, page.TotalPages)
		})
	}

	empty := Paginate(nil, Pagination{})
	assert.Equal(t, 0, empty.TotalPages)
	assert.NotNil(t, empty.Data)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{students: []Student{thandi, pieter, aisha}}
	svc := NewService(src)

	page, err := svc.List(ctx, testutil.Session("admin-1"), Filter{Status: "active"}, nil, Pagination{PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Aisha"}, names(page.Data))
	assert.Equal(t, 2, page.TotalRows)
	assert.Equal(t, 2, page.TotalPages)

	_, err = svc.List(ctx, core.Session{}, Filter{}, nil, Pagination{})
	assert.ErrorIs(t, err, core.ErrSessionExpired)
	assert.Equal(t, 1, src.calls)

	src.err = errors.New("boom")
	_, err = svc.List(ctx, testutil.Session("admin-1"), Filter{}, nil, Pagination{})
	assert.EqualError(t, err, "listing students: boom")
}

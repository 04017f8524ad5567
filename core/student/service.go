package student

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/seta/core"
)

type (
	// Source serves the full student list.
	Source interface {
		ListStudents(ctx context.Context, sess core.Session) ([]Student, error)
	}

	ServiceInterface interface {
		List(ctx context.Context, sess core.Session, filter Filter, orderings []core.DBOrdering, pg Pagination) (Page, error)
	}

	Service struct {
		src Source
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(src Source) *Service {
	return &Service{src: src}
}

// List fetches every student then filters, sorts and paginates them in memory.
func (svc *Service) List(ctx context.Context, sess core.Session, filter Filter, orderings []core.DBOrdering, pg Pagination) (Page, error) {
	if err := sess.Valid(); err != nil {
		return Page{}, err
	}
	students, err := svc.src.ListStudents(ctx, sess)
	if err != nil {
		return Page{}, errors.Wrap(err, "listing students")
	}
	students = Apply(students, filter)
	Sort(students, orderings)
	return Paginate(students, pg), nil
}

// Apply returns the students matching every set criterion. Search matches name, id number and email.
func Apply(students []Student, filter Filter) []Student {
	filter.Clean()
	filtered := make([]Student, 0, len(students))
	for _, s := range students {
		if filter.Search != "" && !matches(filter.Search, s.Name(), s.IDNumber, s.Email) {
			continue
		}
		if filter.Status != "" && !strings.EqualFold(s.Status, filter.Status) {
			continue
		}
		if filter.HostCompany != "" && !strings.EqualFold(s.HostCompany, filter.HostCompany) {
			continue
		}
		if filter.Programme != "" && !strings.EqualFold(s.Programme, filter.Programme) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

func matches(search string, values ...string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), search) {
			return true
		}
	}
	return false
}

// Sort orders students in place; name ascending by default.
func Sort(students []Student, orderings []core.DBOrdering) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range orderings {
			if c := compare(students[i], students[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return false
	})
}

func compare(a, b Student, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
	case "id_number":
		return strings.Compare(a.IDNumber, b.IDNumber)
	case "status":
		return strings.Compare(strings.ToLower(a.Status), strings.ToLower(b.Status))
	case "host_company":
		return strings.Compare(strings.ToLower(a.HostCompany), strings.ToLower(b.HostCompany))
	case "programme":
		return strings.Compare(strings.ToLower(a.Programme), strings.ToLower(b.Programme))
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}

// Paginate slices out the requested page. A page past the end is empty.
func Paginate(students []Student, pg Pagination) Page {
	pg.Clean()
	total := len(students)
	page := Page{
		Data:        []Student{},
		TotalRows:   total,
		TotalPages:  (total + pg.PageSize - 1) / pg.PageSize,
		CurrentPage: pg.Page,
		PageSize:    pg.PageSize,
	}
	// compare pages first; (Page-1)*PageSize overflows for huge pages
	if pg.Page > page.TotalPages {
		return page
	}
	start := (pg.Page - 1) * pg.PageSize
	end := start + pg.PageSize
	if end > total {
		end = total
	}
	page.Data = students[start:end]
	return page
}
